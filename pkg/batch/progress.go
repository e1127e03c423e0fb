package batch

import (
	"github.com/rs/zerolog"
)

// Progress is the running state reported after every completed item.
type Progress struct {
	Batch     int // 1-based index of the current batch
	Batches   int
	Completed int
	Total     int
	Succeeded int
	Failed    int
	Records   int
	// AvgRecords is Records per successful item.
	AvgRecords float64
	Last       FetchResult
}

// Observer receives progress updates. Calls come from a single goroutine.
type Observer interface {
	OnProgress(Progress)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Progress)

// OnProgress implements Observer.
func (f ObserverFunc) OnProgress(p Progress) { f(p) }

type nopObserver struct{}

func (nopObserver) OnProgress(Progress) {}

// LogObserver logs progress every `every` items and on the last item.
func LogObserver(logger zerolog.Logger, every int) Observer {
	if every <= 0 {
		every = 1
	}
	return ObserverFunc(func(p Progress) {
		if !p.Last.Success {
			logger.Warn().
				Str("item_id", p.Last.ItemID).
				Str("error", p.Last.Error).
				Msg("Item failed")
		}
		if p.Completed%every != 0 && p.Completed != p.Total {
			return
		}
		logger.Info().
			Int("batch", p.Batch).
			Int("batches", p.Batches).
			Int("completed", p.Completed).
			Int("total", p.Total).
			Int("succeeded", p.Succeeded).
			Int("records", p.Records).
			Float64("avg_records", p.AvgRecords).
			Msg("Progress")
	})
}
