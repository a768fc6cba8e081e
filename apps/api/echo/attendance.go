package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/services/metrics"
)

const invalidDateText = "invalid date, expected YYYY-MM-DD"

type (
	attendanceApi struct {
		svc     *attendance.Service
		metrics *metrics.Metrics
	}

	// MarkRequest overrides a student's status. Version is the session version the client last saw (optional).
	MarkRequest struct {
		Status  string `json:"status"`
		Version int    `json:"version"`
	}

	// FinalizeRequest freezes a session. ClassLabel is the class name used in the alerts (defaults to the class id).
	FinalizeRequest struct {
		ClassLabel string `json:"class_label"`
		Version    int    `json:"version"`
	}

	SessionResponse struct {
		*attendance.Session
		Summary attendance.Summary `json:"summary"`
	}
)

func registerAttendanceAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := attendanceApi{svc: deps.AttendanceSvc, metrics: deps.Metrics}

	sg := g.Group("/classes/:classID/sessions/:date", jwt, staffMiddleware())
	sg.POST("", api.open)
	sg.GET("", api.retrieve)
	sg.PUT("/students/:studentID", api.mark)
	sg.POST("/finalize", api.finalize)
}

func sessionKey(ctx echo.Context) (attendance.Key, error) {
	d, err := core.ParseDate(ctx.Param("date"))
	if err != nil {
		return attendance.Key{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: invalidDateText})
	}
	return attendance.Key{ClassID: ctx.Param("classID"), Date: d}, nil
}

func newSessionResponse(s *attendance.Session) SessionResponse {
	return SessionResponse{Session: s, Summary: attendance.Summarize(s)}
}

// Handlers

func (api *attendanceApi) open(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	key, err := sessionKey(ctx)
	if err != nil {
		return err
	}

	s, err := api.svc.Open(ctx.Request().Context(), usr, key)
	if err != nil {
		return errors.Wrap(err, "opening session")
	}
	api.metrics.SessionOpened()
	return ctx.JSON(http.StatusCreated, newSessionResponse(s))
}

func (api *attendanceApi) retrieve(ctx echo.Context) error {
	key, err := sessionKey(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.Get(ctx.Request().Context(), key)
	if err != nil {
		return errors.Wrap(err, "getting session")
	}
	return ctx.JSON(http.StatusOK, newSessionResponse(s))
}

func (api *attendanceApi) mark(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	key, err := sessionKey(ctx)
	if err != nil {
		return err
	}
	var data MarkRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MarkRequest")
	}

	// unknown statuses are rejected by the service
	status, _ := attendance.ParseStatus(data.Status)
	s, err := api.svc.Mark(ctx.Request().Context(), usr, key, ctx.Param("studentID"), status, data.Version)
	if err != nil {
		return errors.Wrap(err, "marking attendance")
	}
	api.metrics.Marked(string(status))
	return ctx.JSON(http.StatusOK, newSessionResponse(s))
}

func (api *attendanceApi) finalize(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	key, err := sessionKey(ctx)
	if err != nil {
		return err
	}
	var data FinalizeRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to FinalizeRequest")
	}

	res, err := api.svc.Finalize(ctx.Request().Context(), usr, key, data.ClassLabel, data.Version)
	if err != nil {
		return errors.Wrap(err, "finalizing session")
	}
	api.metrics.Finalized()
	return ctx.JSON(http.StatusOK, res)
}
