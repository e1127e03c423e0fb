package batch

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// noSleep records cooldowns without waiting.
type noSleep struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (n *noSleep) Sleep(ctx context.Context, d time.Duration) error {
	n.mu.Lock()
	n.sleeps = append(n.sleeps, d)
	n.mu.Unlock()
	return ctx.Err()
}

func itemIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = strconv.Itoa(i + 1)
	}
	return ids
}

func newTestOrchestrator(p Processor, cfg Config, obs Observer) (*Orchestrator, *noSleep) {
	o := NewOrchestrator(p, cfg, obs)
	s := &noSleep{}
	o.SetSleeper(s.Sleep)
	return o, s
}

func checkInvariants(t *testing.T, s RunSummary) {
	t.Helper()
	if s.Succeeded+s.Failed != s.Total {
		t.Errorf("succeeded(%d)+failed(%d) != total(%d)", s.Succeeded, s.Failed, s.Total)
	}
	if len(s.Errors) != s.Failed {
		t.Errorf("len(errors)=%d != failed=%d", len(s.Errors), s.Failed)
	}
}

func TestCooldownFor(t *testing.T) {
	tests := []struct {
		batchSize int
		expected  time.Duration
	}{
		{1, 2 * time.Second},
		{5, 2 * time.Second},
		{15, 2 * time.Second},
		{20, 2 * time.Second},
		{25, 2500 * time.Millisecond},
		{40, 4 * time.Second},
		{50, 5 * time.Second},
		{200, 5 * time.Second},
	}

	for _, tt := range tests {
		if got := CooldownFor(tt.batchSize); got != tt.expected {
			t.Errorf("CooldownFor(%d) = %v, want %v", tt.batchSize, got, tt.expected)
		}
	}
}

func TestPartition(t *testing.T) {
	got := partition(itemIDs(23), 10)
	sizes := make([]int, len(got))
	for i, b := range got {
		sizes[i] = len(b)
	}
	if want := []int{10, 10, 3}; !reflect.DeepEqual(sizes, want) {
		t.Errorf("batch sizes = %v, want %v", sizes, want)
	}
	if got[2][0] != "21" {
		t.Errorf("third batch starts at %q, want 21", got[2][0])
	}

	if got := partition(nil, 10); len(got) != 0 {
		t.Errorf("partition(nil) = %v, want empty", got)
	}
}

func TestNewOrchestrator_Defaults(t *testing.T) {
	o := NewOrchestrator(ProcessorFunc(func(ctx context.Context, id string) FetchResult {
		return Succeeded(id, 0)
	}), Config{}, nil)

	cfg := o.Config()
	if cfg.MaxWorkers != DefaultMaxWorkers || cfg.BatchSize != DefaultBatchSize {
		t.Errorf("Config() = %+v, want defaults", cfg)
	}
}

func TestRun_EndToEndCounts(t *testing.T) {
	p := ProcessorFunc(func(ctx context.Context, id string) FetchResult {
		if id == "17" {
			return Failed(id, errors.New("tank01 client error (status 404): Not Found"))
		}
		return Succeeded(id, 1)
	})

	o, sleeper := newTestOrchestrator(p, Config{MaxWorkers: 3, BatchSize: 10}, nil)
	s := o.Run(context.Background(), itemIDs(23))

	checkInvariants(t, s)
	if s.Total != 23 || s.Succeeded != 22 || s.Failed != 1 || s.TotalRecords != 22 {
		t.Errorf("summary = %+v, want {23 22 1 22}", s)
	}
	if len(s.Errors) != 1 || s.Errors[0].ItemID != "17" {
		t.Errorf("errors = %+v, want item 17", s.Errors)
	}
	if s.RunID == "" {
		t.Error("RunID is empty")
	}

	// Three batches, two cooldowns.
	if n := len(sleeper.sleeps); n != 2 {
		t.Fatalf("cooldowns = %d, want 2", n)
	}
	for _, d := range sleeper.sleeps {
		if d < 2500*time.Millisecond || d > 4*time.Second {
			t.Errorf("cooldown = %v, want within [2.5s, 4s]", d)
		}
	}
}

func TestRun_BatchesSequential(t *testing.T) {
	const batchSize = 4
	items := itemIDs(14)

	var (
		mu        sync.Mutex
		completed = map[int]int{}
		violation string
	)
	batchOf := func(id string) int {
		n, _ := strconv.Atoi(id)
		return (n - 1) / batchSize
	}
	sizeOf := func(b int) int {
		return len(partition(items, batchSize)[b])
	}

	p := ProcessorFunc(func(ctx context.Context, id string) FetchResult {
		b := batchOf(id)
		mu.Lock()
		if b > 0 && completed[b-1] != sizeOf(b-1) && violation == "" {
			violation = fmt.Sprintf("item %s started with batch %d at %d/%d", id, b-1, completed[b-1], sizeOf(b-1))
		}
		mu.Unlock()

		time.Sleep(time.Millisecond)

		mu.Lock()
		completed[b]++
		mu.Unlock()
		return Succeeded(id, 1)
	})

	o, _ := newTestOrchestrator(p, Config{MaxWorkers: 3, BatchSize: batchSize}, nil)
	s := o.Run(context.Background(), items)

	checkInvariants(t, s)
	if violation != "" {
		t.Error(violation)
	}
}

func TestRun_BoundedParallelism(t *testing.T) {
	var inFlight, peak int32

	p := ProcessorFunc(func(ctx context.Context, id string) FetchResult {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return Succeeded(id, 2)
	})

	o, _ := newTestOrchestrator(p, Config{MaxWorkers: 3, BatchSize: 10}, nil)
	s := o.Run(context.Background(), itemIDs(20))

	checkInvariants(t, s)
	if peak > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", peak)
	}
	if s.TotalRecords != 40 {
		t.Errorf("TotalRecords = %d, want 40", s.TotalRecords)
	}
}

func TestRun_Idempotent(t *testing.T) {
	p := ProcessorFunc(func(ctx context.Context, id string) FetchResult {
		n, _ := strconv.Atoi(id)
		if n%5 == 0 {
			return Failed(id, errors.New("no game stats found"))
		}
		return Succeeded(id, n%7)
	})

	o, _ := newTestOrchestrator(p, Config{MaxWorkers: 4, BatchSize: 6}, nil)
	first := o.Run(context.Background(), itemIDs(31))
	second := o.Run(context.Background(), itemIDs(31))

	checkInvariants(t, first)
	checkInvariants(t, second)
	if first.Succeeded != second.Succeeded || first.Failed != second.Failed || first.TotalRecords != second.TotalRecords {
		t.Errorf("runs differ: %+v vs %+v", first, second)
	}
	if first.RunID == second.RunID {
		t.Error("RunID should differ between runs")
	}

	ids := func(s RunSummary) []string {
		var out []string
		for _, e := range s.Errors {
			out = append(out, e.ItemID)
		}
		sort.Strings(out)
		return out
	}
	if !reflect.DeepEqual(ids(first), ids(second)) {
		t.Errorf("failed items differ: %v vs %v", ids(first), ids(second))
	}
}

func TestRun_PanicIsolated(t *testing.T) {
	p := ProcessorFunc(func(ctx context.Context, id string) FetchResult {
		if id == "3" {
			panic("boom")
		}
		return Succeeded(id, 1)
	})

	o, _ := newTestOrchestrator(p, Config{MaxWorkers: 2, BatchSize: 5}, nil)
	s := o.Run(context.Background(), itemIDs(5))

	checkInvariants(t, s)
	if s.Failed != 1 || s.Errors[0].ItemID != "3" || s.Errors[0].Error != "panic: boom" {
		t.Errorf("errors = %+v, want panic on item 3", s.Errors)
	}
}

func TestRun_NormalisesResults(t *testing.T) {
	p := ProcessorFunc(func(ctx context.Context, id string) FetchResult {
		// Wrong id, records on failure and no error text.
		return FetchResult{ItemID: "other", RecordCount: 9}
	})

	o, _ := newTestOrchestrator(p, Config{MaxWorkers: 1, BatchSize: 1}, nil)
	s := o.Run(context.Background(), []string{"a"})

	checkInvariants(t, s)
	if s.TotalRecords != 0 {
		t.Errorf("TotalRecords = %d, want 0", s.TotalRecords)
	}
	if got := s.Errors[0]; got.ItemID != "a" || got.Error != "unknown error" {
		t.Errorf("error = %+v", got)
	}
}

func TestRun_CancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var processed int32
	p := ProcessorFunc(func(ctx context.Context, id string) FetchResult {
		if atomic.AddInt32(&processed, 1) == 4 {
			cancel()
		}
		if err := ctx.Err(); err != nil {
			return Failed(id, err)
		}
		return Succeeded(id, 1)
	})

	o, sleeper := newTestOrchestrator(p, Config{MaxWorkers: 2, BatchSize: 3}, nil)
	s := o.Run(ctx, itemIDs(12))

	checkInvariants(t, s)
	if s.Total != 12 {
		t.Errorf("Total = %d, want 12", s.Total)
	}
	if got := atomic.LoadInt32(&processed); got > 6 {
		t.Errorf("processed = %d items after cancel, want at most 6", got)
	}
	if s.Failed < 6 {
		t.Errorf("Failed = %d, want at least the 6 unstarted items", s.Failed)
	}
	if n := len(sleeper.sleeps); n > 1 {
		t.Errorf("cooldowns after cancel = %d, want at most 1", n)
	}
}

func TestRun_RunTimeout(t *testing.T) {
	p := ProcessorFunc(func(ctx context.Context, id string) FetchResult {
		select {
		case <-time.After(20 * time.Millisecond):
			return Succeeded(id, 1)
		case <-ctx.Done():
			return Failed(id, ctx.Err())
		}
	})

	o, _ := newTestOrchestrator(p, Config{MaxWorkers: 1, BatchSize: 50, RunTimeout: 50 * time.Millisecond}, nil)
	s := o.Run(context.Background(), itemIDs(50))

	checkInvariants(t, s)
	if s.Succeeded >= 50 {
		t.Errorf("Succeeded = %d, want the deadline to cut the run short", s.Succeeded)
	}
}

func TestRun_ItemTimeout(t *testing.T) {
	p := ProcessorFunc(func(ctx context.Context, id string) FetchResult {
		if id != "2" {
			return Succeeded(id, 1)
		}
		<-ctx.Done()
		return Failed(id, ctx.Err())
	})

	o, _ := newTestOrchestrator(p, Config{MaxWorkers: 2, BatchSize: 3, ItemTimeout: 20 * time.Millisecond}, nil)
	s := o.Run(context.Background(), itemIDs(3))

	checkInvariants(t, s)
	if s.Failed != 1 || s.Errors[0].Error != context.DeadlineExceeded.Error() {
		t.Errorf("errors = %+v, want deadline on item 2", s.Errors)
	}
}

func TestRun_Empty(t *testing.T) {
	o, sleeper := newTestOrchestrator(ProcessorFunc(func(ctx context.Context, id string) FetchResult {
		t.Fatal("processor called for empty run")
		return FetchResult{}
	}), Config{}, nil)

	s := o.Run(context.Background(), nil)
	checkInvariants(t, s)
	if s.Total != 0 || len(sleeper.sleeps) != 0 {
		t.Errorf("summary = %+v, cooldowns = %d", s, len(sleeper.sleeps))
	}
}

func TestRun_ObserverProgress(t *testing.T) {
	var updates []Progress
	obs := ObserverFunc(func(p Progress) { updates = append(updates, p) })

	p := ProcessorFunc(func(ctx context.Context, id string) FetchResult {
		if id == "4" {
			return Failed(id, errors.New("no game stats found"))
		}
		return Succeeded(id, 3)
	})

	o, _ := newTestOrchestrator(p, Config{MaxWorkers: 2, BatchSize: 2}, obs)
	o.Run(context.Background(), itemIDs(5))

	if len(updates) != 5 {
		t.Fatalf("updates = %d, want 5", len(updates))
	}
	for i, u := range updates {
		if u.Completed != i+1 {
			t.Errorf("update %d Completed = %d", i, u.Completed)
		}
		if u.Batches != 3 || u.Total != 5 {
			t.Errorf("update %d = %+v", i, u)
		}
	}

	last := updates[4]
	if last.Batch != 3 || last.Succeeded != 4 || last.Failed != 1 || last.Records != 12 || last.AvgRecords != 3 {
		t.Errorf("last update = %+v", last)
	}
}
