package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/nba-ingest/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for batch runs.
var (
	batchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nba_batch_items_total",
		Help: "Total processed work items by outcome",
	}, []string{"outcome"})

	batchRecordsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nba_batch_records_total",
		Help: "Total records stored by successful work items",
	})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nba_batch_duration_seconds",
		Help:    "Duration of a single batch in seconds",
		Buckets: []float64{1, 2, 5, 10, 30, 60, 120, 300},
	})
)

const (
	// DefaultMaxWorkers matches a full run.
	DefaultMaxWorkers = 3

	// DefaultBatchSize matches a full run.
	DefaultBatchSize = 15

	cooldownMin       = 2 * time.Second
	cooldownMax       = 5 * time.Second
	cooldownJitterMin = 500 * time.Millisecond
	cooldownJitterMax = 2 * time.Second
)

// Processor handles one work item. It must not panic; a panic is still
// recovered and reported as a failed item.
type Processor interface {
	Process(ctx context.Context, itemID string) FetchResult
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, itemID string) FetchResult

// Process implements Processor.
func (f ProcessorFunc) Process(ctx context.Context, itemID string) FetchResult {
	return f(ctx, itemID)
}

// Config holds orchestrator configuration.
type Config struct {
	// MaxWorkers bounds concurrent items within a batch.
	MaxWorkers int

	// BatchSize is the number of consecutive items per batch.
	BatchSize int

	// RunTimeout bounds the whole run. Zero means no deadline.
	RunTimeout time.Duration

	// ItemTimeout bounds a single item including its retries. Zero means no
	// deadline.
	ItemTimeout time.Duration
}

// DefaultConfig returns the full-run configuration.
func DefaultConfig() Config {
	return Config{
		MaxWorkers: DefaultMaxWorkers,
		BatchSize:  DefaultBatchSize,
	}
}

// Orchestrator runs work items through a Processor.
type Orchestrator struct {
	processor Processor
	config    Config
	observer  Observer
	sleep     ratelimit.SleepFunc
}

// NewOrchestrator creates an orchestrator. A nil observer discards progress.
func NewOrchestrator(processor Processor, config Config, observer Observer) *Orchestrator {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultMaxWorkers
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if observer == nil {
		observer = nopObserver{}
	}

	return &Orchestrator{
		processor: processor,
		config:    config,
		observer:  observer,
		sleep:     ratelimit.Sleep,
	}
}

// SetSleeper replaces the cooldown sleeper (for testing).
func (o *Orchestrator) SetSleeper(sleep ratelimit.SleepFunc) {
	o.sleep = sleep
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.config
}

// CooldownFor returns the fixed part of the pause between batches:
// batchSize/10 seconds clamped to [2s, 5s].
func CooldownFor(batchSize int) time.Duration {
	d := time.Duration(batchSize) * time.Second / 10
	if d < cooldownMin {
		d = cooldownMin
	}
	if d > cooldownMax {
		d = cooldownMax
	}
	return d
}

// Run processes items and returns the summary once every batch has drained.
func (o *Orchestrator) Run(ctx context.Context, items []string) RunSummary {
	start := time.Now()
	summary := RunSummary{
		RunID:     uuid.NewString(),
		Total:     len(items),
		StartedAt: start,
		Errors:    []ItemError{},
	}

	if o.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.RunTimeout)
		defer cancel()
	}

	batches := partition(items, o.config.BatchSize)

	logger := log.With().
		Str("component", "batch").
		Str("run_id", summary.RunID).
		Logger()
	logger.Info().
		Int("items", len(items)).
		Int("batches", len(batches)).
		Int("max_workers", o.config.MaxWorkers).
		Int("batch_size", o.config.BatchSize).
		Msg("Starting run")

	for i, b := range batches {
		batchStart := time.Now()
		o.runBatch(ctx, i+1, len(batches), b, &summary)
		batchDuration.Observe(time.Since(batchStart).Seconds())

		logger.Debug().
			Int("batch", i+1).
			Int("items", len(b)).
			Dur("duration", time.Since(batchStart)).
			Msg("Batch complete")

		if i == len(batches)-1 || ctx.Err() != nil {
			continue
		}

		delay := CooldownFor(o.config.BatchSize) + ratelimit.Jitter(cooldownJitterMin, cooldownJitterMax)
		logger.Debug().Dur("delay", delay).Msg("Cooling down between batches")
		if err := o.sleep(ctx, delay); err != nil {
			logger.Warn().Err(err).Msg("Cooldown interrupted")
		}
	}

	summary.Elapsed = time.Since(start)

	event := logger.Info()
	if ctx.Err() != nil {
		event = logger.Warn().AnErr("ctx_err", ctx.Err())
	}
	event.
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("records", summary.TotalRecords).
		Dur("elapsed", summary.Elapsed).
		Msg("Run complete")

	return summary
}

// runBatch processes one batch with a bounded worker pool and folds results
// into summary from the calling goroutine.
func (o *Orchestrator) runBatch(ctx context.Context, index, batches int, items []string, summary *RunSummary) {
	queue := make(chan string, len(items))
	for _, id := range items {
		queue <- id
	}
	close(queue)

	results := make(chan FetchResult, len(items))

	workers := o.config.MaxWorkers
	if workers > len(items) {
		workers = len(items)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go o.worker(ctx, queue, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		summary.add(r)
		if r.Success {
			batchItemsTotal.WithLabelValues("success").Inc()
			batchRecordsTotal.Add(float64(r.RecordCount))
		} else {
			batchItemsTotal.WithLabelValues("failure").Inc()
		}

		o.observer.OnProgress(Progress{
			Batch:      index,
			Batches:    batches,
			Completed:  summary.Completed(),
			Total:      summary.Total,
			Succeeded:  summary.Succeeded,
			Failed:     summary.Failed,
			Records:    summary.TotalRecords,
			AvgRecords: float64(summary.TotalRecords) / float64(max(1, summary.Succeeded)),
			Last:       r,
		})
	}
}

// worker drains the queue. Once ctx is done the remaining items are turned
// into failed results without being processed.
func (o *Orchestrator) worker(ctx context.Context, queue <-chan string, results chan<- FetchResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for id := range queue {
		if err := ctx.Err(); err != nil {
			results <- Failed(id, fmt.Errorf("not started: %w", err))
			continue
		}
		results <- o.process(ctx, id)
	}
}

// process runs the processor for one item, recovering panics.
func (o *Orchestrator) process(ctx context.Context, id string) (result FetchResult) {
	if o.config.ItemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.ItemTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("component", "batch").
				Str("item_id", id).
				Interface("panic", r).
				Msg("Processor panicked")
			result = Failed(id, fmt.Errorf("panic: %v", r))
		}
	}()

	result = o.processor.Process(ctx, id)
	result.ItemID = id
	if !result.Success {
		result.RecordCount = 0
		if result.Error == "" {
			result.Error = "unknown error"
		}
	}
	return result
}

// partition splits items into consecutive slices of at most size.
func partition(items []string, size int) [][]string {
	if size <= 0 {
		size = len(items)
	}
	var out [][]string
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
