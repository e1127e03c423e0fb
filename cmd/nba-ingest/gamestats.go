package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/Sternrassler/nba-ingest/pkg/batch"
	"github.com/Sternrassler/nba-ingest/pkg/gamestats"
	"github.com/Sternrassler/nba-ingest/pkg/logging"
	"github.com/Sternrassler/nba-ingest/pkg/players"
	"github.com/Sternrassler/nba-ingest/pkg/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// runMode presets the item limit and parallelism of a game stats run. Zero
// values fall back to the configured batch settings.
type runMode struct {
	limit     int
	workers   int
	batchSize int
}

var runModes = map[string]runMode{
	"test":        {limit: 1, workers: 1, batchSize: 1},
	"small-batch": {limit: 10, workers: 2, batchSize: 5},
	"full":        {},
}

// sampleGames is how many games test mode prints.
const sampleGames = 3

type gameStatsOptions struct {
	mode      string
	workers   int
	batchSize int
	limit     int
	dryRun    bool
	season    string
	playerIDs []string
}

func newGameStatsCmd(global *globalOptions) *cobra.Command {
	opts := &gameStatsOptions{}

	cmd := &cobra.Command{
		Use:   "gamestats",
		Short: "Fetch game logs for every player and store them",
		Long: `Fetch each player's season game log from the provider, enrich it with
date, opponent and home flag, and store it in every configured backend.

Modes:
  test         first player only; prints a sample of the fetched games
  small-batch  first 10 players, 2 workers, batches of 5
  full         every player with the configured workers and batch size`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGameStats(cmd, global, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.mode, "mode", "full", "run mode: test, small-batch or full")
	flags.IntVar(&opts.workers, "workers", 0, "override concurrent workers per batch")
	flags.IntVar(&opts.batchSize, "batch-size", 0, "override items per batch")
	flags.IntVar(&opts.limit, "limit", 0, "process at most this many players")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "fetch but keep games in memory only")
	flags.StringVar(&opts.season, "season", "", "override the season year")
	flags.StringSliceVar(&opts.playerIDs, "players", nil, "explicit player ids instead of the stored catalog")
	return cmd
}

// resolve merges the mode preset, the configured batch settings and flags.
func (o *gameStatsOptions) resolve(cfg batch.Config) (batch.Config, int, error) {
	mode, ok := runModes[o.mode]
	if !ok {
		return batch.Config{}, 0, fmt.Errorf("unknown mode %q (want test, small-batch or full)", o.mode)
	}

	if mode.workers > 0 {
		cfg.MaxWorkers = mode.workers
	}
	if mode.batchSize > 0 {
		cfg.BatchSize = mode.batchSize
	}
	limit := mode.limit

	if o.workers > 0 {
		cfg.MaxWorkers = o.workers
	}
	if o.batchSize > 0 {
		cfg.BatchSize = o.batchSize
	}
	if o.limit > 0 {
		limit = o.limit
	}
	return cfg, limit, nil
}

func runGameStats(cmd *cobra.Command, global *globalOptions, opts *gameStatsOptions) error {
	ctx := cmd.Context()
	cfg := global.cfg
	if opts.season != "" {
		cfg.API.Season = opts.season
	}

	batchCfg, limit, err := opts.resolve(batch.Config{
		MaxWorkers:  cfg.Batch.MaxWorkers,
		BatchSize:   cfg.Batch.BatchSize,
		RunTimeout:  cfg.Batch.RunTimeout,
		ItemTimeout: cfg.Batch.ItemTimeout,
	})
	if err != nil {
		return err
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	startMetrics(ctx, cfg.Metrics.Addr, a.checks())

	var source players.Source = players.StaticSource(opts.playerIDs)
	if len(opts.playerIDs) == 0 {
		if source, err = a.source(); err != nil {
			return err
		}
	}
	ids, err := source.PlayerIDs(ctx)
	if err != nil {
		return fmt.Errorf("load player ids: %w", err)
	}
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	if len(ids) == 0 {
		return fmt.Errorf("no players to process; run 'nba-ingest players' first")
	}

	sink, err := a.sink(opts.dryRun)
	if err != nil {
		return err
	}

	// Test mode keeps an in-memory copy so a sample can be printed.
	var sample *store.Memory
	if opts.mode == "test" {
		if mem, ok := sink.(*store.Memory); ok {
			sample = mem
		} else {
			sample = store.NewMemory()
			sink = store.Fanout{sink, sample}
		}
	}

	log.Info().
		Str("component", "gamestats").
		Str("mode", opts.mode).
		Str("season", cfg.API.Season).
		Int("players", len(ids)).
		Bool("dry_run", opts.dryRun).
		Msg("Starting game stats run")

	pipeline := gamestats.NewPipeline(a.client, sink)
	orch := batch.NewOrchestrator(pipeline, batchCfg, batch.LogObserver(logging.NewLogger("progress"), 10))
	summary := orch.Run(ctx, ids)

	a.recordRun(ctx, summary)

	out := cmd.OutOrStdout()
	if sample != nil {
		printSample(out, ids[0], sample.Games(ids[0]))
	}
	if err := summary.Report(out, 10); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return nil
}

// printSample writes the first few games of a player.
func printSample(w io.Writer, playerID string, games []gamestats.Game) {
	fmt.Fprintf(w, "Player %s: %d games\n", playerID, len(games))
	for i, g := range games {
		if i == sampleGames {
			break
		}
		venue := "@"
		if g.IsHome {
			venue = "vs"
		}
		fmt.Fprintf(w, "  %s %s %s %-3s pts=%g reb=%g ast=%g fp=%g\n",
			g.GameDate.Format("2006-01-02"), g.Team, venue, g.Opponent,
			g.Points, g.Rebounds, g.Assists, g.FantasyPoints)
	}
	fmt.Fprintln(w, strings.Repeat("-", 40))
}
