package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/mahudhurio/core/notification"
)

const namespace = "mahudhurio"

// Metrics holds the app's prometheus collectors, on their own registry.
type Metrics struct {
	registry *prometheus.Registry

	sessionsOpened  prometheus.Counter
	marks           *prometheus.CounterVec
	finalizations   prometheus.Counter
	notifications   prometheus.Counter
	unresolved      prometheus.Counter
	leaveSubmitted  prometheus.Counter
	leaveDecisions  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var _ notification.Fanout = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sessions_opened_total",
			Help: "Attendance sessions built or rebuilt.",
		}),
		marks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "marks_total",
			Help: "Attendance overrides, by status.",
		}, []string{"status"}),
		finalizations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "finalizations_total",
			Help: "Attendance sessions finalized.",
		}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_emitted_total",
			Help: "Guardian alerts emitted by finalizations.",
		}),
		unresolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_unresolved_total",
			Help: "Alerts of students without a linked guardian.",
		}),
		leaveSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "leave_requests_submitted_total",
			Help: "Leave requests submitted.",
		}),
		leaveDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "leave_decisions_total",
			Help: "Leave requests decided, by resulting status.",
		}, []string{"status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latencies.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionsOpened, m.marks, m.finalizations, m.notifications, m.unresolved,
		m.leaveSubmitted, m.leaveDecisions, m.requestDuration,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionOpened()             { m.sessionsOpened.Inc() }
func (m *Metrics) Marked(status string)       { m.marks.WithLabelValues(status).Inc() }
func (m *Metrics) Finalized()                 { m.finalizations.Inc() }
func (m *Metrics) LeaveSubmitted()            { m.leaveSubmitted.Inc() }
func (m *Metrics) LeaveDecided(status string) { m.leaveDecisions.WithLabelValues(status).Inc() }

// Fanout counts the delivered alerts.
func (m *Metrics) Fanout(_ context.Context, batch []notification.SchoolNotification) error {
	for _, n := range batch {
		m.notifications.Inc()
		if n.Unresolved() {
			m.unresolved.Inc()
		}
	}
	return nil
}

// Middleware observes the duration of every request, by route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			code := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
			}
			m.requestDuration.
				WithLabelValues(c.Request().Method, c.Path(), strconv.Itoa(code)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}
