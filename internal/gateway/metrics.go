package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	selectionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferproxy",
			Subsystem: "proxy",
			Name:      "backend_selection_total",
			Help:      "Backend selections by target and method (manual or auto)",
		},
		[]string{"backend", "method"},
	)

	fallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferproxy",
			Subsystem: "proxy",
			Name:      "backend_fallback_total",
			Help:      "Fallback attempts after a retryable primary failure",
		},
		[]string{"from_backend", "to_backend"},
	)

	backendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferproxy",
			Subsystem: "proxy",
			Name:      "backend_requests_total",
			Help:      "Chat completions dispatched per backend",
		},
		[]string{"backend", "status"},
	)

	backendRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inferproxy",
			Subsystem: "proxy",
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of backend chat completions in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	tokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inferproxy",
			Subsystem: "proxy",
			Name:      "tokens_total",
			Help:      "Tokens reported by backend usage blocks",
		},
		[]string{"backend", "type"},
	)

	localModelsAvailable = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "inferproxy",
			Subsystem: "proxy",
			Name:      "local_models_available",
			Help:      "Number of models reported by the local backend",
		},
	)
)

func init() {
	prometheus.MustRegister(
		selectionTotal,
		fallbackTotal,
		backendRequestsTotal,
		backendRequestDuration,
		tokensTotal,
		localModelsAvailable,
	)
}
