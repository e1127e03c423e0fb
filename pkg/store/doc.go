// Package store persists game logs, the player catalog, run summaries and
// the projection, injury and odds feeds.
//
// Backends:
//   - Postgres (pgx pool): the primary store; one transaction per player.
//   - SQLite (database/sql + go-sqlite3): local runs without a server.
//   - RedisWriter: hot copies of recent games plus an update stream.
//   - Memory: dry runs and tests.
//
// Fanout combines several game sinks so one item is only reported stored
// when every backend accepted it. Feeds does the same for the relational
// feed tables.
package store

import (
	"context"

	"github.com/Sternrassler/nba-ingest/pkg/batch"
)

// RunRecorder stores run summaries.
type RunRecorder interface {
	RecordRun(ctx context.Context, summary batch.RunSummary) error
}
