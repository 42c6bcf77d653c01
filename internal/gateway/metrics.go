package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for outgoing backend calls. Exposed on the local
// status listener's /metrics endpoint.
var (
	// apiRequestsTotal counts backend calls by operation and outcome.
	// Status is the HTTP status code, or "network_error" when no response
	// was received.
	//
	// Labels: operation (predict, history, login, ...), status
	// Type: Counter
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "foodlog_api_requests_total",
			Help: "Total number of backend API requests",
		},
		[]string{"operation", "status"},
	)

	// apiRequestDuration measures backend call latency per operation.
	//
	// Labels: operation
	// Type: Histogram
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "foodlog_api_request_duration_seconds",
			Help:    "Backend API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(apiRequestsTotal, apiRequestDuration)
}
