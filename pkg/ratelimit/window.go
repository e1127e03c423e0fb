package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for the request window.
var (
	rateLimitWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nba_ratelimit_waits_total",
		Help: "Total number of times a request had to wait for the rate window",
	}, []string{"window"})

	rateLimitWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nba_ratelimit_wait_seconds",
		Help:    "Time spent waiting for the rate window by window",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"window"})

	rateLimitWindowRequests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nba_ratelimit_window_requests",
		Help: "Requests recorded in the trailing window",
	}, []string{"window"})
)

const (
	windowMinute = "minute"
	windowSecond = "second"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the context-aware SleepFunc used outside of tests.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Jitter returns a random duration in [lo, hi].
func Jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
}

// Window is a sliding log of request timestamps shared by all workers.
//
// The prune-check-record sequence runs under one mutex, so concurrent callers
// can never both observe room for the last slot. Waiting happens outside the
// lock; after a wait the caller re-checks from scratch.
type Window struct {
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	stamps []time.Time

	now   func() time.Time
	sleep SleepFunc
}

// NewWindow creates a request window. Zero config fields take defaults.
func NewWindow(cfg Config, logger zerolog.Logger) *Window {
	return &Window{
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
		sleep:  Sleep,
	}
}

// SetClock replaces the time source and sleeper (for testing).
func (w *Window) SetClock(now func() time.Time, sleep SleepFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if now != nil {
		w.now = now
	}
	if sleep != nil {
		w.sleep = sleep
	}
}

// Config returns the effective configuration.
func (w *Window) Config() Config {
	return w.cfg
}

// Acquire blocks until a request can be sent without exceeding either budget,
// records the request and returns the recorded timestamp.
// It returns ctx.Err() without recording anything if ctx ends first.
func (w *Window) Acquire(ctx context.Context) (time.Time, error) {
	for {
		if err := ctx.Err(); err != nil {
			return time.Time{}, err
		}

		w.mu.Lock()
		now := w.now()
		w.prune(now)
		wait, window := w.waitFor(now)
		if wait <= 0 {
			w.stamps = append(w.stamps, now)
			snap := w.snapshotLocked(now)
			w.mu.Unlock()

			rateLimitWindowRequests.WithLabelValues(windowMinute).Set(float64(snap.InMinute))
			rateLimitWindowRequests.WithLabelValues(windowSecond).Set(float64(snap.InSecond))
			w.logger.Debug().
				Int("in_minute", snap.InMinute).
				Int("headroom", snap.Headroom()).
				Msg("Rate window granted")
			return now, nil
		}
		inMinute := len(w.stamps)
		w.mu.Unlock()

		rateLimitWaitsTotal.WithLabelValues(window).Inc()
		rateLimitWaitSeconds.WithLabelValues(window).Observe(wait.Seconds())
		w.logger.Debug().
			Str("window", window).
			Int("in_minute", inMinute).
			Dur("wait", wait).
			Msg("Rate window full, waiting")

		if err := w.sleep(ctx, wait); err != nil {
			return time.Time{}, err
		}
	}
}

// Snapshot returns the current window counts.
func (w *Window) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.prune(now)
	return w.snapshotLocked(now)
}

// snapshotLocked builds a Snapshot. Caller holds mu and has pruned.
func (w *Window) snapshotLocked(now time.Time) Snapshot {
	return Snapshot{
		InMinute:  len(w.stamps),
		InSecond:  w.countSince(now),
		PerMinute: w.cfg.PerMinute,
		PerSecond: w.cfg.PerSecond,
	}
}

// prune drops stamps that left the minute window. Caller holds mu.
func (w *Window) prune(now time.Time) {
	i := 0
	for i < len(w.stamps) && now.Sub(w.stamps[i]) >= w.cfg.MinuteWindow {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// countSince counts stamps inside the second window ending at now. Caller holds mu.
func (w *Window) countSince(now time.Time) int {
	n := 0
	for i := len(w.stamps) - 1; i >= 0; i-- {
		if now.Sub(w.stamps[i]) >= w.cfg.SecondWindow {
			break
		}
		n++
	}
	return n
}

// waitFor returns how long to wait before the next request and which window
// is the constraint. Caller holds mu and has pruned.
func (w *Window) waitFor(now time.Time) (time.Duration, string) {
	snap := w.snapshotLocked(now)
	if snap.MinuteExhausted() {
		oldest := w.stamps[0]
		wait := w.cfg.MinuteWindow - now.Sub(oldest) + Jitter(0, w.cfg.MaxBuffer)
		return wait, windowMinute
	}
	if snap.SecondExhausted() {
		return w.cfg.SecondWindow + Jitter(w.cfg.MinJitter, w.cfg.MaxJitter), windowSecond
	}
	return 0, ""
}
