package echoapi

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/session"
)

const contextSessionKey = "session"

// sessionMiddleware restores the session named by the session cookie.
// Requests without a stored session get a fresh anonymous one, saved on login only.
func (s *Server) sessionMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			var sess *session.Session
			if cookie, err := ctx.Cookie(s.deps.Conf.Server.CookieName); err == nil {
				if sid, err := uuid.Parse(cookie.Value); err == nil {
					sess = session.New(s.deps.Sessions, sid.String())
					switch err := sess.Restore(ctx.Request().Context()); errors.Cause(err) {
					case nil:
					case session.ErrNoSession:
						sess = nil
					case session.ErrExpired, session.ErrInvalidToken:
						sess = nil
						s.clearCookie(ctx)
					default:
						return errors.Wrap(err, "restoring session")
					}
				}
			}
			if sess == nil {
				sess = session.New(s.deps.Sessions, uuid.NewString())
			}
			ctx.Set(contextSessionKey, sess)
			return next(ctx)
		}
	}
}

func getContextSession(ctx echo.Context) *session.Session {
	if sess, ok := ctx.Get(contextSessionKey).(*session.Session); ok {
		return sess
	}
	return session.New(nil, "")
}

func (s *Server) setCookie(ctx echo.Context, sid string) {
	ctx.SetCookie(&http.Cookie{
		Name:     s.deps.Conf.Server.CookieName,
		Value:    sid,
		Path:     "/",
		Expires:  time.Now().Add(s.deps.Conf.Session.TTL),
		HttpOnly: true,
		Secure:   !s.deps.Conf.Debug,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     s.deps.Conf.Server.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

type authApi struct {
	srv  *Server
	auth Authenticator
}

func registerAuthAPI(g *echo.Group, srv *Server) {
	api := authApi{srv: srv, auth: srv.deps.Auth}

	// TODO: rate limit `/login` & `/forgot-password` once the API exposes failed attempts
	g.POST("/login", api.login)
	g.POST("/logout", api.logout)
	g.POST("/forgot-password", api.forgotPassword)
	g.POST("/reset-password", api.resetPassword)
	g.GET("/session", api.current)
	g.GET("/route", api.route)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	pair, err := api.auth.Login(ctx.Request().Context(), core.CleanString(data.Username), data.Password)
	if err != nil {
		return err
	}
	claims, err := session.ParseClaims(pair.Access)
	if err != nil {
		return errors.Wrap(err, "reading access token")
	}
	if claims.Role() == session.RoleNone {
		return errNoRole
	}

	// a login always starts a new session id; the previous one is dropped.
	if prev := getContextSession(ctx); prev.IsAuthenticated() {
		if err := prev.Clear(ctx.Request().Context()); err != nil {
			return errors.Wrap(err, "clearing previous session")
		}
	}
	sess := session.New(api.srv.deps.Sessions, uuid.NewString())
	if err := sess.Init(ctx.Request().Context(), pair.Access, pair.Refresh); err != nil {
		return errors.Wrap(err, "initializing session")
	}
	ctx.Set(contextSessionKey, sess)
	api.srv.setCookie(ctx, sess.ID())
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *authApi) logout(ctx echo.Context) error {
	sess := getContextSession(ctx)
	if sess.IsAuthenticated() {
		if err := sess.Clear(ctx.Request().Context()); err != nil {
			return errors.Wrap(err, "clearing session")
		}
	}
	api.srv.clearCookie(ctx)
	return ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (api *authApi) current(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, newSessionResponse(getContextSession(ctx)))
}

// route tells the console router what to render for a path.
func (api *authApi) route(ctx echo.Context) error {
	d, err := getContextSession(ctx).Gate(ctx.QueryParam("path"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *authApi) forgotPassword(ctx echo.Context) error {
	var data ForgotPasswordRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ForgotPasswordRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	msg, err := api.auth.ForgotPassword(ctx.Request().Context(), core.CleanString(data.Email, true))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: msg.String()})
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data ResetPasswordRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetPasswordRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	msg, err := api.auth.ResetPassword(ctx.Request().Context(), core.CleanString(data.Email, true), data.ResetPin, data.NewPassword)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: msg.String()})
}
