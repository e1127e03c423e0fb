// Package batch drives a list of work items to completion in sequential
// batches with a bounded worker pool.
//
// Every item yields exactly one FetchResult, folded into a RunSummary by a
// single collector goroutine in completion order. A failing or panicking item
// never aborts its batch or the run. Between batches the orchestrator sleeps
// a cooldown on top of whatever the shared rate window already enforces.
//
// Example usage:
//
//	orch := batch.NewOrchestrator(pipeline, batch.Config{MaxWorkers: 3, BatchSize: 15}, observer)
//	summary := orch.Run(ctx, playerIDs)
//	summary.Report(os.Stdout, 10)
//
// Batches are strictly ordered: batch k+1 starts only after every item of
// batch k has produced its result. If the context ends, items that have not
// started are reported as failed with the context error, so
// Succeeded+Failed == Total and len(Errors) == Failed hold for every run.
package batch
