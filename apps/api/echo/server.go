package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/entity"
	"github.com/esdes/campus/core/session"
	"github.com/esdes/campus/services/gateway"
)

type (
	// GatewayFactory returns the remote API client acting on behalf of the access token.
	GatewayFactory func(token string) entity.Gateway

	// Authenticator is the part of the remote API dealing with credentials.
	Authenticator interface {
		Login(ctx context.Context, username, password string) (gateway.TokenPair, error)
		ForgotPassword(ctx context.Context, email string) (gateway.Message, error)
		ResetPassword(ctx context.Context, email, pin, newPassword string) (gateway.Message, error)
	}

	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Sessions       session.Store
		Gateway        GatewayFactory
		Auth           Authenticator
		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	if deps.Logger == nil {
		deps.Logger = core.NopLogger{}
	}
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if len(conf.Server.AllowOrigins) > 0 {
		s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     conf.Server.AllowOrigins,
			AllowCredentials: true,
		}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	api := s.app.Group("/api", s.sessionMiddleware())
	registerAuthAPI(api, s)
	registerEntityAPI(api.Group("/admin"), session.RoleAdmin, s)
	registerEntityAPI(api.Group("/comptable"), session.RoleComptable, s)
}

// Start serves until Shutdown; a listener failure is sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"app": s.deps.Conf.AppName, "build": s.deps.Conf.Build})
}
