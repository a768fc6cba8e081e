package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/notification"
)

type notificationApi struct {
	svc *notification.Service
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := notificationApi{svc: deps.NotificationSvc}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.inbox)
	ng.GET("/unresolved", api.unresolved, staffMiddleware())
}

// Handlers

func (api *notificationApi) inbox(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	inbox, err := api.svc.Inbox(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying inbox")
	}
	return ctx.JSON(http.StatusOK, inbox)
}

func (api *notificationApi) unresolved(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	batch, err := api.svc.Unresolved(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "querying unresolved notifications")
	}
	return ctx.JSON(http.StatusOK, batch)
}
