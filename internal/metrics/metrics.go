package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	remoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog_sync",
			Name:      "remote_requests_total",
			Help:      "Total number of Admin API requests.",
		},
		[]string{"api", "operation", "status"},
	)
	remoteRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "catalog_sync",
			Name:      "remote_request_duration_seconds",
			Help:      "Histogram of Admin API request durations.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"api", "operation"},
	)
	mediaStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog_sync",
			Name:      "media_steps_total",
			Help:      "Media pipeline step outcomes.",
		},
		[]string{"step", "outcome"},
	)
	reconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "catalog_sync",
			Name:      "reconciliations_total",
			Help:      "Local mirror reconciliations by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(remoteRequestsTotal)
	prometheus.MustRegister(remoteRequestDuration)
	prometheus.MustRegister(mediaStepsTotal)
	prometheus.MustRegister(reconciliationsTotal)
}

// RecordRemoteRequest records one REST or GraphQL call. statusCode 0 means a transport failure.
func RecordRemoteRequest(api, operation string, statusCode int, duration time.Duration) {
	remoteRequestsTotal.WithLabelValues(api, operation, classifyStatus(statusCode)).Inc()
	remoteRequestDuration.WithLabelValues(api, operation).Observe(duration.Seconds())
}

// RecordMediaStep records the outcome of stage, transfer, attach or bind.
func RecordMediaStep(step string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	mediaStepsTotal.WithLabelValues(step, outcome).Inc()
}

// RecordReconciliation records a mirror sync outcome: synced, removed or failed.
func RecordReconciliation(outcome string) {
	reconciliationsTotal.WithLabelValues(outcome).Inc()
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode == 0:
		return "network_error"
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode == 429:
		return "429"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500 && statusCode < 600:
		return "5xx"
	}
	return "unknown"
}
