package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postpilot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postpilot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// Dispatcher Metrics
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postpilot_sweeps_total",
			Help: "Total number of dispatcher sweeps",
		},
		[]string{"trigger"},
	)

	SweepsSkippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "postpilot_sweeps_skipped_total",
			Help: "Ticks and manual triggers skipped because a sweep was in flight",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "postpilot_sweep_duration_seconds",
			Help:    "Sweep duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Executor Metrics
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postpilot_executions_total",
			Help: "Total number of schedule executions",
		},
		[]string{"status"},
	)

	// Governor Metrics
	GovernorChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postpilot_governor_checks_total",
			Help: "Total number of governor checks",
		},
		[]string{"kind", "outcome"},
	)
)

func Handler() http.Handler {
	return promhttp.Handler()
}
