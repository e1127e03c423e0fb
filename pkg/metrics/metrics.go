// Package metrics exposes the process metrics and health endpoints.
//
// Metrics are defined next to the code that records them and registered via
// promauto on the default registry:
//
// Rate window (pkg/ratelimit):
//   - nba_ratelimit_waits_total{window} (Counter): Acquire calls that had to sleep
//   - nba_ratelimit_wait_seconds{window} (Histogram): time slept per wait
//   - nba_ratelimit_window_requests{window} (Gauge): requests in the trailing window
//
// Provider requests (pkg/client):
//   - nba_api_requests_total{endpoint, status} (Counter)
//   - nba_api_request_duration_seconds{endpoint} (Histogram)
//   - nba_api_errors_total{class} (Counter): client, server, rate_limit, network
//   - nba_api_retries_total{error_class} (Counter)
//   - nba_api_retry_backoff_seconds{error_class} (Histogram)
//   - nba_api_retry_exhausted_total{error_class} (Counter)
//
// Response cache (pkg/cache):
//   - nba_cache_lookups_total{endpoint, result} (Counter)
//   - nba_cache_skipped_total{endpoint, reason} (Counter)
//   - nba_cache_stored_bytes_total{endpoint} (Counter)
//   - nba_cache_errors_total{operation} (Counter)
//
// Batch runs (pkg/batch):
//   - nba_batch_items_total{outcome} (Counter): success, failure
//   - nba_batch_records_total (Counter)
//   - nba_batch_duration_seconds (Histogram)
//
// Example queries:
//
//	# Item failure ratio
//	sum(rate(nba_batch_items_total{outcome="failure"}[15m])) / sum(rate(nba_batch_items_total[15m]))
//
//	# 429s per minute
//	sum(rate(nba_api_requests_total{status="429"}[1m])) * 60
//
//	# P95 provider latency
//	histogram_quantile(0.95, rate(nba_api_request_duration_seconds_bucket[5m]))
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry is the registerer every package records into.
var Registry = prometheus.DefaultRegisterer

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Handler returns a mux serving /metrics, /health and /ready. /ready runs
// every check and answers 503 on the first failure.
func Handler(checks map[string]Check) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(checks))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func readyHandler(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for name, check := range checks {
			if err := check(ctx); err != nil {
				http.Error(w, fmt.Sprintf("%s not ready: %v", name, err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

// Serve runs the metrics server on addr until ctx is done, then shuts it
// down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "metrics").Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		return nil
	}
}
