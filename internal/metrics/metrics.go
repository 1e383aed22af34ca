package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backend API calls made on behalf of workspaces.
	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontend_backend_requests_total",
			Help: "Total number of requests sent to the backend API",
		},
		[]string{"endpoint", "status"},
	)

	BackendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "frontend_backend_request_duration_seconds",
			Help:    "Duration of backend API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Recommendation cache behaviour. event is one of
	// hit, miss, join, invalidate, discard, error.
	RecsCacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontend_recs_cache_events_total",
			Help: "Recommendation cache events by type",
		},
		[]string{"event"},
	)

	RatingMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontend_rating_mutations_total",
			Help: "Rating submissions and removals by outcome",
		},
		[]string{"kind", "outcome"},
	)

	WorkspacesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "frontend_workspaces_active",
			Help: "Number of live browser-session workspaces",
		},
	)

	StaleResponsesDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "frontend_stale_responses_discarded_total",
			Help: "Responses dropped because a newer request superseded them",
		},
		[]string{"page"},
	)
)

// ObserveBackend records one backend round trip. status 0 means the request
// never got a response.
func ObserveBackend(endpoint string, status int, started time.Time) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	BackendRequests.WithLabelValues(endpoint, label).Inc()
	BackendDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}
