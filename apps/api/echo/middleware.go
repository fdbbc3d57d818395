package echoapi

import (
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/esdes/campus/core/session"
)

const contextRouteKey = "route"

// gateMiddleware lets a request through to an entity page or a dashboard of layout
// only when the session may render it.
func gateMiddleware(layout session.Role) echo.MiddlewareFunc {
	prefix := "/" + string(layout) + "/"
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			page := ctx.Param("page")
			if page == "" {
				page = path.Base(ctx.Path())
			}
			sess := getContextSession(ctx)
			d, err := sess.Gate(prefix + page)
			if err != nil {
				return errors.Wrap(err, "gating request")
			}
			if !d.Allowed() {
				if !sess.IsAuthenticated() {
					return redirectError(http.StatusUnauthorized, d.Redirect)
				}
				return redirectError(http.StatusForbidden, d.Redirect)
			}
			if d.Route.Entity == "" && d.Route.Dashboard == "" {
				return errHttpNotFound
			}
			ctx.Set(contextRouteKey, d.Route)
			return next(ctx)
		}
	}
}

func getContextRoute(ctx echo.Context) (session.Route, error) {
	route, ok := ctx.Get(contextRouteKey).(session.Route)
	if !ok {
		return session.Route{}, errors.New("route not found in echo.Context")
	}
	return route, nil
}
