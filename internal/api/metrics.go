package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"change-risk/backend/internal/services"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics holds the Prometheus collectors for the REST adapter.
type Metrics struct {
	gatherer        prometheus.Gatherer
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	verdicts        *prometheus.CounterVec
}

// NewMetrics registers the HTTP collectors with reg. A collector that is
// already registered is reused.
func NewMetrics(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: gatherer,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "changerisk",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "changerisk",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "changerisk",
			Subsystem: "api",
			Name:      "assessments_completed_total",
			Help:      "Completed assessments by final risk level",
		}, []string{"risk_level"}),
	}

	m.requestTotal = registerCounter(reg, m.requestTotal)
	m.verdicts = registerCounter(reg, m.verdicts)
	if err := reg.Register(m.requestDuration); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				m.requestDuration = existing
			}
		}
	}
	return m
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// Render now so the recorded status is the one the client sees.
				c.Error(err)
			}
			status := c.Response().Status

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			labels := prometheus.Labels{
				"method": c.Request().Method,
				"route":  route,
				"status": strconv.Itoa(status),
			}
			m.requestTotal.With(labels).Inc()
			m.requestDuration.With(labels).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// RecordVerdict counts a completed assessment.
func (m *Metrics) RecordVerdict(riskLevel string) {
	m.verdicts.With(prometheus.Labels{"risk_level": riskLevel}).Inc()
}

// ObserveCompletion records the verdict of a finished assessment. It is
// registered as the assessment service's completion hook so REST and MCP
// completions are both counted.
func (m *Metrics) ObserveCompletion(a *services.Assessment) {
	m.RecordVerdict(string(a.State.RiskLevel))
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
