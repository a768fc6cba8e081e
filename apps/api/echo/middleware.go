package echoapi

import (
	"github.com/labstack/echo/v4"
)

// staffMiddleware lets through admins & teachers only.
func staffMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if !usr.IsStaff() {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
