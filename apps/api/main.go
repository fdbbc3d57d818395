package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/pkg/errors"

	echoapi "github.com/esdes/campus/apps/api/echo"
	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/entity"
	"github.com/esdes/campus/core/session"
	"github.com/esdes/campus/services/gateway"
	logsvc "github.com/esdes/campus/services/logger"
	"github.com/esdes/campus/storage/filestore"
	"github.com/esdes/campus/storage/memstore"
	redisstore "github.com/esdes/campus/storage/redis"
)

// TODO:
// - CSRF token on the cookie session once the console is served from another origin
// - refresh the access token with the stored refresh token instead of logging out on expiry
func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	gwLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "GATEWAY : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)

	// set up session store
	store, closeStore, err := openSessionStore(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up session store: %v", err), err)
	}
	defer closeStore()

	// set up remote API client
	client := gateway.NewClient(conf, gwLogger)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("api").Set(conf.API.BaseURL)
	expvar.NewString("sessions").Set(conf.Session.Store)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:     conf,
			Logger:   logger,
			Sessions: store,
			Gateway: func(token string) entity.Gateway {
				return client.WithToken(token)
			},
			Auth: client,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// openSessionStore returns the store named by the configuration and its closer.
func openSessionStore(conf *core.Config) (session.Store, func(), error) {
	noop := func() {}
	switch conf.Session.Store {
	case "", "memory":
		return memstore.New(), noop, nil
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), conf.API.Timeout)
		defer cancel()
		st, err := redisstore.Open(ctx, conf)
		if err != nil {
			return nil, noop, err
		}
		return st, func() { _ = st.Close() }, nil
	case "file":
		st, err := filestore.Open(conf.Session.File)
		if err != nil {
			return nil, noop, err
		}
		return st, noop, nil
	}
	return nil, noop, errors.Errorf("unknown session store %q", conf.Session.Store)
}
