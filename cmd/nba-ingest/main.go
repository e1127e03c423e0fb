// Command nba-ingest syncs the NBA player catalog and bulk-fetches per-player
// game logs from the Tank01 API into Postgres, SQLite and/or Redis. It also
// syncs the injury report, betting odds and PrizePicks projections.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/nba-ingest/internal/config"
	"github.com/Sternrassler/nba-ingest/pkg/logging"
	"github.com/Sternrassler/nba-ingest/pkg/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath  string
	logLevel    string
	pretty      bool
	metricsAddr string
	baseURL     string

	cfg *config.Config
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "nba-ingest",
		Short:         "NBA player catalog and game log ingestion",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to YAML config file")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&opts.pretty, "pretty", false, "human-readable console logs")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics, /health and /ready on this address")
	flags.StringVar(&opts.baseURL, "base-url", "", "override the provider base URL")

	root.AddCommand(
		newGameStatsCmd(opts),
		newPlayersCmd(opts),
		newProjectionsCmd(opts),
		newInjuriesCmd(opts),
		newOddsCmd(opts),
	)
	return root
}

// load reads the configuration, applies flag overrides, validates and sets
// up logging.
func (o *globalOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("pretty") {
		cfg.Log.Pretty = o.pretty
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = o.metricsAddr
	}
	if flags.Changed("base-url") {
		cfg.API.BaseURL = o.baseURL
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.Log.Level)
	logCfg.Pretty = cfg.Log.Pretty
	logCfg.Output = cmd.ErrOrStderr()
	logging.Setup(logCfg)

	o.cfg = cfg
	return nil
}

// startMetrics serves metrics in the background until ctx is done. A server
// failure is logged and does not abort the run.
func startMetrics(ctx context.Context, addr string, checks map[string]metrics.Check) {
	if addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, addr, metrics.Handler(checks)); err != nil {
			log.Error().Err(err).Str("component", "metrics").Msg("Metrics server failed")
		}
	}()
}
