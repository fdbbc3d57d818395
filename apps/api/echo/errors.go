package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/esdes/campus/core"
	"github.com/esdes/campus/core/entity"
	"github.com/esdes/campus/core/session"
)

var (
	errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "page introuvable")
	errNoRole       = echo.NewHTTPError(http.StatusForbidden, "ce compte n'a accès à aucun espace")
)

func redirectError(code int, to string) *echo.HTTPError {
	msg := "connexion requise"
	if code == http.StatusForbidden {
		msg = "accès refusé"
	}
	return echo.NewHTTPError(code, echo.Map{"error": msg, "redirect": to})
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code     int
			message  interface{}
			internal bool
		)

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = echo.Map{"fields": fldErrs}
		case *core.ValidationError:
			code = http.StatusBadRequest
			if origErr.Fields != nil {
				message = echo.Map{"error": origErr.Error(), "fields": origErr.FieldMap()}
			} else {
				message = origErr.Error()
			}
		case *core.GatewayError:
			// client errors of the API are passed on, anything else is a bad gateway
			code = origErr.Status
			if code < 400 || code >= 500 {
				code = http.StatusBadGateway
			}
			body := echo.Map{"error": origErr.Error()}
			if len(origErr.Fields) > 0 {
				body["fields"] = origErr.Fields
			}
			message = body
		default:
			switch errors.Cause(err) {
			case entity.ErrNotFound, session.ErrUnknownRoute:
				code, message = http.StatusNotFound, err.Error()
			case entity.ErrUnknownFilter:
				code, message = http.StatusBadRequest, err.Error()
			case entity.ErrBusy:
				code, message = http.StatusConflict, err.Error()
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg
				internal = true

				args := []interface{}{errors.Wrap(err, msg)}
				if sess, ok := ctx.Get(contextSessionKey).(*session.Session); ok && sess.IsAuthenticated() {
					args = append(args, sess.Claims())
				}
				logger.Error(msg, args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if internal && ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
