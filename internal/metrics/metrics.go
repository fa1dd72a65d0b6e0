// Package metrics provides Prometheus metrics for conduit-facade.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchTotal counts API fetches by selector kind and outcome.
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conduit_facade",
			Name:      "feed_fetch_total",
			Help:      "Total number of feed fetches against the Conduit API",
		},
		[]string{"kind", "status"},
	)

	// FetchDuration measures fetch duration.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "conduit_facade",
			Name:      "feed_fetch_duration_seconds",
			Help:      "Duration of feed fetches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// LoaderLookups counts feed loader lookups by result (hit, miss).
	LoaderLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conduit_facade",
			Name:      "loader_lookups_total",
			Help:      "Feed loader cache lookups",
		},
		[]string{"result"},
	)

	// HTTPRequests counts facade requests by route and response status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "conduit_facade",
			Name:      "http_requests_total",
			Help:      "Requests served by the facade",
		},
		[]string{"route", "method", "code"},
	)

	// CircuitState tracks the API circuit breaker (0 closed, 1 open, 2 half-open).
	CircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "conduit_facade",
			Name:      "api_circuit_state",
			Help:      "Conduit API circuit breaker state (0 = closed, 1 = open, 2 = half-open)",
		},
	)
)

// RecordFetch records one API fetch.
func RecordFetch(kind, status string, duration time.Duration) {
	FetchTotal.WithLabelValues(kind, status).Inc()
	FetchDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordLookup records a loader cache lookup.
func RecordLookup(result string) {
	LoaderLookups.WithLabelValues(result).Inc()
}

// RecordRequest records one served request.
func RecordRequest(route, method string, code int) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
}

// SetCircuitState sets the breaker gauge.
func SetCircuitState(state int) {
	CircuitState.Set(float64(state))
}
