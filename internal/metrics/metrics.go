package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for eventify. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Query cache metrics
	CacheHits    *prometheus.CounterVec
	CacheMisses  *prometheus.CounterVec
	CacheDedup   *prometheus.CounterVec
	FetchErrors  *prometheus.CounterVec
	FetchLatency *prometheus.HistogramVec
	CacheEntries prometheus.Gauge

	// Mutation metrics
	Mutations        *prometheus.CounterVec
	MutationDuration *prometheus.HistogramVec
	Rollbacks        *prometheus.CounterVec

	// Session metrics
	AuthResolutions *prometheus.CounterVec

	// API client metrics
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec

	// Mock API metrics
	MockRequests *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventify_cache_hits_total",
				Help: "Fetches served from a fresh cache entry",
			},
			[]string{"key"},
		),
		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventify_cache_misses_total",
				Help: "Fetches that ran the loader",
			},
			[]string{"key"},
		),
		CacheDedup: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventify_cache_deduplicated_total",
				Help: "Fetches that joined an in-flight load for the same key",
			},
			[]string{"key"},
		),
		FetchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventify_cache_fetch_errors_total",
				Help: "Loader failures by key and error code",
			},
			[]string{"key", "error_code"},
		),
		FetchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventify_cache_fetch_duration_seconds",
				Help:    "Loader duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"key"},
		),
		CacheEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventify_cache_entries",
				Help: "Entries currently held by the query cache",
			},
		),

		Mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventify_mutations_total",
				Help: "Settled mutations by name and outcome",
			},
			[]string{"mutation", "outcome"},
		),
		MutationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventify_mutation_duration_seconds",
				Help:    "Mutation network phase duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mutation"},
		),
		Rollbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventify_mutation_rollbacks_total",
				Help: "Optimistic edits restored after a failed mutation",
			},
			[]string{"mutation"},
		),

		AuthResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventify_auth_resolutions_total",
				Help: "Session resolutions by resulting status and path",
			},
			[]string{"status", "path"},
		),

		APIRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventify_api_requests_total",
				Help: "Requests sent to the Eventify API",
			},
			[]string{"method", "route", "status"},
		),
		APILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eventify_api_request_duration_seconds",
				Help:    "Eventify API round trip in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		MockRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventify_mockapi_requests_total",
				Help: "Requests handled by the mock API server",
			},
			[]string{"method", "route", "status"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventify_errors_total",
				Help: "Errors surfaced to the user by error code",
			},
			[]string{"error_code"},
		),
	}
}

// CacheHit records a fetch served from cache.
func (m *Metrics) CacheHit(key string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(key).Inc()
}

// CacheMiss records a fetch that ran the loader.
func (m *Metrics) CacheMiss(key string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(key).Inc()
}

// CacheDeduplicated records a fetch that shared an in-flight load.
func (m *Metrics) CacheDeduplicated(key string) {
	if m == nil {
		return
	}
	m.CacheDedup.WithLabelValues(key).Inc()
}

// FetchFinished records a loader run.
func (m *Metrics) FetchFinished(key, errorCode string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchLatency.WithLabelValues(key).Observe(d.Seconds())
	if errorCode != "" {
		m.FetchErrors.WithLabelValues(key, errorCode).Inc()
	}
}

// SetCacheEntries reports the current cache size.
func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

// MutationSettled records the outcome of a mutation.
func (m *Metrics) MutationSettled(name, outcome string, d time.Duration, rolledBack bool) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(name, outcome).Inc()
	m.MutationDuration.WithLabelValues(name).Observe(d.Seconds())
	if rolledBack {
		m.Rollbacks.WithLabelValues(name).Inc()
	}
}

// AuthResolved records a resolver transition out of Loading.
func (m *Metrics) AuthResolved(status, path string) {
	if m == nil {
		return
	}
	m.AuthResolutions.WithLabelValues(status, path).Inc()
}

// APIRequest records one API round trip; status 0 means no response.
func (m *Metrics) APIRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.APILatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// MockRequest records a request served by the mock API.
func (m *Metrics) MockRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.MockRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
}

// Error records an error surfaced to the user.
func (m *Metrics) Error(code string) {
	if m == nil || code == "" {
		return
	}
	m.Errors.WithLabelValues(code).Inc()
}

func statusLabel(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status)
}
