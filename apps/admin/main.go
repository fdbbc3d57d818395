package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/entity"
	"github.com/esdes/campus/core/session"
	"github.com/esdes/campus/services/gateway"
	logsvc "github.com/esdes/campus/services/logger"
	"github.com/esdes/campus/storage/filestore"
)

// the console keeps one session per user configuration directory
const sessionID = "console"

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	// restore the session of the previous `login`
	store, err := filestore.Open(conf.Session.File)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening session file: %v", err), err)
	}
	sess := session.New(store, sessionID)
	switch err := sess.Restore(context.Background()); errors.Cause(err) {
	case nil, session.ErrNoSession:
	case session.ErrExpired, session.ErrInvalidToken:
		fmt.Fprintln(os.Stderr, "Session expirée, veuillez vous reconnecter.")
	default:
		logger.Fatal(fmt.Sprintf("restoring session: %v", err), err)
	}

	client := gateway.NewClient(conf, logger)

	// start CLI
	cli := commandLine{
		sess: sess,
		auth: client,
		gateway: func(token string) entity.Gateway {
			return client.WithToken(token)
		},
		pageSize: conf.List.PageSize,
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerreur: %s\n", err)
		}
		logger.Close()
		os.Exit(1)
	}
}
