// Package metrics exposes Prometheus counters for job outcomes and HTTP
// traffic. Job metrics are fed from the worker's event bus; HTTP metrics
// from echo middleware.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nadimxht/stem/internal/core/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stem_jobs_total",
		Help: "Jobs reaching a terminal state, by outcome.",
	}, []string{"status"})

	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stem_job_processing_duration_seconds",
		Help:    "Wall-clock processing time of terminal jobs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"status"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stem_http_requests_total",
		Help: "HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stem_http_request_duration_seconds",
		Help:    "HTTP request duration by method and path.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// SetupSubscribers counts terminal job outcomes from the event bus.
func SetupSubscribers(bus event.Bus) {
	bus.Subscribe(event.EventJobCompleted, func(_ context.Context, e event.Event) error {
		payload, ok := e.Payload.(event.JobEvent)
		if !ok {
			return nil
		}
		jobsTotal.WithLabelValues("completed").Inc()
		jobDuration.WithLabelValues("completed").Observe(float64(payload.ProcessingSeconds))
		return nil
	})
	bus.Subscribe(event.EventJobFailed, func(_ context.Context, e event.Event) error {
		payload, ok := e.Payload.(event.JobEvent)
		if !ok {
			return nil
		}
		jobsTotal.WithLabelValues("error").Inc()
		jobDuration.WithLabelValues("error").Observe(float64(payload.ProcessingSeconds))
		return nil
	})
}

// Handler serves the Prometheus scrape endpoint.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Middleware records request counts and durations per route.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			httpRequests.WithLabelValues(
				c.Request().Method, path, strconv.Itoa(c.Response().Status),
			).Inc()
			httpDuration.WithLabelValues(c.Request().Method, path).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}
