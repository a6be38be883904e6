// Package metrics provides Prometheus metrics for bloghub.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	// CacheRequestsTotal counts listing cache lookups by result.
	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bloghub",
			Name:      "cache_requests_total",
			Help:      "Total number of listing cache lookups",
		},
		[]string{"result"},
	)

	// CacheWriteFailuresTotal counts failed listing cache writes.
	CacheWriteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bloghub",
			Name:      "cache_write_failures_total",
			Help:      "Total number of failed listing cache writes",
		},
	)

	// CacheInvalidationsTotal counts listing namespace invalidations.
	CacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bloghub",
			Name:      "cache_invalidations_total",
			Help:      "Total number of listing cache invalidations",
		},
	)

	// CacheInvalidatedKeysTotal counts keys removed by invalidations.
	CacheInvalidatedKeysTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bloghub",
			Name:      "cache_invalidated_keys_total",
			Help:      "Total number of listing cache keys removed by invalidation",
		},
	)

	// CacheInvalidationFailuresTotal counts invalidations that returned an error.
	CacheInvalidationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bloghub",
			Name:      "cache_invalidation_failures_total",
			Help:      "Total number of failed listing cache invalidations",
		},
	)

	// HTTPRequestDuration measures HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bloghub",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordCacheLookup records one listing cache lookup.
func RecordCacheLookup(result string) {
	CacheRequestsTotal.WithLabelValues(result).Inc()
}

// RecordCacheWriteFailure records a failed listing cache write.
func RecordCacheWriteFailure() {
	CacheWriteFailuresTotal.Inc()
}

// RecordInvalidation records an invalidation and how many keys it removed.
func RecordInvalidation(deleted int64, err error) {
	CacheInvalidationsTotal.Inc()
	CacheInvalidatedKeysTotal.Add(float64(deleted))
	if err != nil {
		CacheInvalidationFailuresTotal.Inc()
	}
}

// RecordHTTPRequest records a served HTTP request.
func RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
