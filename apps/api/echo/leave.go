package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/leave"
	"github.com/trezcool/mahudhurio/services/metrics"
)

type leaveApi struct {
	svc        *leave.Service
	metrics    *metrics.Metrics
	validate   *validator.Validate
	translator ut.Translator
}

func registerLeaveAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := leaveApi{
		svc:        deps.LeaveSvc,
		metrics:    deps.Metrics,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	lg := g.Group("/leave-requests", jwt)
	lg.POST("", api.submit)
	lg.GET("", api.query)
	lg.GET("/:id", api.retrieve)
	lg.POST("/:id/decision", api.decide, staffMiddleware())
}

// Handlers

func (api *leaveApi) submit(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data leave.NewRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}
	// guardians submit for their own students; staff submit on behalf of a guardian
	switch {
	case usr.IsStaff():
	case usr.IsParent():
		data.ParentID = usr.ID
	default:
		return core.ErrPermissionDenied
	}

	req, err := api.svc.Submit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting leave request")
	}
	api.metrics.LeaveSubmitted()
	return ctx.JSON(http.StatusCreated, req)
}

func (api *leaveApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var filter leave.QueryFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	reqs, err := api.svc.Query(ctx.Request().Context(), usr, filter)
	if err != nil {
		return errors.Wrap(err, "querying leave requests")
	}
	return ctx.JSON(http.StatusOK, reqs)
}

func (api *leaveApi) retrieve(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	req, err := api.svc.Retrieve(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "retrieving leave request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *leaveApi) decide(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data leave.DecisionRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DecisionRequest")
	}
	data.Clean()
	if err = core.ValidateStruct(api.validate, api.translator, data); err != nil {
		return err
	}

	req, err := api.svc.Decide(ctx.Request().Context(), usr, ctx.Param("id"), data.Decision)
	if err != nil {
		return errors.Wrap(err, "deciding leave request")
	}
	api.metrics.LeaveDecided(string(req.Status))
	return ctx.JSON(http.StatusOK, req)
}
