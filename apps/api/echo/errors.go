package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/user"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var vErr *core.ValidationError
		var hErr *echo.HTTPError
		switch {
		case errors.As(err, &vErr):
			code = http.StatusBadRequest
			if len(vErr.Fields) > 0 {
				fldErrs := make(map[string]string, len(vErr.Fields))
				for _, fErr := range vErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = vErr.Error()
			}
		case core.IsPermissionDenied(err):
			code, message = http.StatusForbidden, errHttpForbidden.Message
		case core.IsNotFound(err):
			code, message = http.StatusNotFound, err.Error()
		case core.IsInvalidState(err):
			code, message = http.StatusConflict, err.Error()
		case errors.As(err, &hErr):
			if hErr == middleware.ErrJWTMissing {
				code, message = http.StatusUnauthorized, hErr.Message
				break
			}
			if herr, ok := hErr.Internal.(*echo.HTTPError); ok {
				hErr = herr
			}
			code, message = hErr.Code, hErr.Message
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr = user.User{ID: claims.Subject, Name: claims.Name, Email: claims.Email}
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
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
