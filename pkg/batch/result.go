package batch

import (
	"fmt"
	"io"
	"time"
)

// FetchResult is the outcome of one work item.
type FetchResult struct {
	ItemID      string `json:"item_id"`
	Success     bool   `json:"success"`
	RecordCount int    `json:"record_count"`
	Error       string `json:"error,omitempty"`
}

// Failed builds a failed result for itemID.
func Failed(itemID string, err error) FetchResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return FetchResult{ItemID: itemID, Error: msg}
}

// Succeeded builds a successful result carrying records stored records.
func Succeeded(itemID string, records int) FetchResult {
	return FetchResult{ItemID: itemID, Success: true, RecordCount: records}
}

// ItemError names a failed item.
type ItemError struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// RunSummary aggregates the results of one run.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	Total        int           `json:"total"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	TotalRecords int           `json:"total_records"`
	Errors       []ItemError   `json:"errors"`
	StartedAt    time.Time     `json:"started_at"`
	Elapsed      time.Duration `json:"elapsed"`
}

// add folds one result into the summary.
func (s *RunSummary) add(r FetchResult) {
	if r.Success {
		s.Succeeded++
		s.TotalRecords += r.RecordCount
		return
	}
	s.Failed++
	s.Errors = append(s.Errors, ItemError{ItemID: r.ItemID, Error: r.Error})
}

// Completed returns how many items have produced a result.
func (s RunSummary) Completed() int {
	return s.Succeeded + s.Failed
}

// Report writes a human readable summary with at most maxErrors error lines.
func (s RunSummary) Report(w io.Writer, maxErrors int) error {
	_, err := fmt.Fprintf(w,
		"\nSummary:\nRun ID: %s\nTotal items processed: %d\nSuccessful: %d\nFailed: %d\nTotal records stored: %d\nTotal time: %.2f seconds\n",
		s.RunID, s.Total, s.Succeeded, s.Failed, s.TotalRecords, s.Elapsed.Seconds())
	if err != nil {
		return err
	}

	if len(s.Errors) == 0 {
		return nil
	}

	if _, err := fmt.Fprintf(w, "\nErrors (%d items):\n", len(s.Errors)); err != nil {
		return err
	}
	shown := s.Errors
	if maxErrors >= 0 && len(shown) > maxErrors {
		shown = shown[:maxErrors]
	}
	for _, e := range shown {
		if _, err := fmt.Fprintf(w, "- %s: %s\n", e.ItemID, e.Error); err != nil {
			return err
		}
	}
	if rest := len(s.Errors) - len(shown); rest > 0 {
		if _, err := fmt.Fprintf(w, "... and %d more errors\n", rest); err != nil {
			return err
		}
	}
	return nil
}
