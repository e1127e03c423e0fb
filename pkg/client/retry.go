package client

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	apiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nba_api_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	apiRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nba_api_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 4, 8, 30, 60},
	}, []string{"error_class"})

	apiRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nba_api_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for transient-failure retries.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial request.
	MaxRetries int

	// BackoffFactor is the wait before the first retry; each further retry
	// doubles it.
	BackoffFactor time.Duration

	// MaxBackoff caps a single wait.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns 5 retries waiting 0.5s, 1s, 2s, 4s and 8s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    5,
		BackoffFactor: 500 * time.Millisecond,
		MaxBackoff:    30 * time.Second,
	}
}

// Backoff returns the wait before the given 1-based retry.
func (r RetryConfig) Backoff(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	backoff := time.Duration(float64(r.BackoffFactor) * math.Pow(2, float64(retry-1)))
	if r.MaxBackoff > 0 && backoff > r.MaxBackoff {
		backoff = r.MaxBackoff
	}
	return backoff
}

// parseRetryAfter reads a Retry-After header given either as delay seconds
// or as an HTTP date. Missing or unparsable values yield fallback.
func parseRetryAfter(value string, fallback time.Duration, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if at, err := http.ParseTime(value); err == nil {
		if wait := at.Sub(now); wait > 0 {
			return wait
		}
		return 0
	}

	return fallback
}
