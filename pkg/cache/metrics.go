package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nba_cache_lookups_total",
		Help: "Provider response cache lookups by endpoint and result (hit, miss, expired)",
	}, []string{"endpoint", "result"})

	cacheSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nba_cache_skipped_total",
		Help: "Responses not cached by endpoint and reason",
	}, []string{"endpoint", "reason"})

	cacheStoredBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nba_cache_stored_bytes_total",
		Help: "Bytes written to the provider response cache by endpoint",
	}, []string{"endpoint"})

	cacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nba_cache_errors_total",
		Help: "Cache operation errors by operation",
	}, []string{"operation"})
)
