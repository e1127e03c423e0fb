package main

import (
	"fmt"
	"time"

	"github.com/Sternrassler/nba-ingest/pkg/injuries"
	"github.com/Sternrassler/nba-ingest/pkg/odds"
	"github.com/Sternrassler/nba-ingest/pkg/projections"
	"github.com/spf13/cobra"
)

func newProjectionsCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "projections",
		Short: "Sync PrizePicks NBA projections and prune started lines",
		Long: `Delete stored projections whose game has started, then fetch the current
PrizePicks NBA board and upsert every line that has not started yet. The
feed is public; no Tank01 credentials are needed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openPublicApp(ctx, global.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			startMetrics(ctx, global.cfg.Metrics.Addr, a.checks())

			feeds, err := a.feeds()
			if err != nil {
				return err
			}
			pp, err := a.prizePicks()
			if err != nil {
				return err
			}

			result, err := projections.Sync(ctx, pp, feeds, projections.Options{PerPage: global.cfg.PrizePicks.PerPage})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Projections pruned:  %d\n", result.Deleted)
			fmt.Fprintf(out, "Projections fetched: %d\n", result.Fetched)
			fmt.Fprintf(out, "Projections stored:  %d\n", result.Stored)
			fmt.Fprintf(out, "Projections skipped: %d\n", result.Skipped+result.Expired)
			return nil
		},
	}
}

func newInjuriesCmd(global *globalOptions) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "injuries",
		Short: "Sync the injury report, keeping the latest entry per player",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, global.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			startMetrics(ctx, global.cfg.Metrics.Addr, a.checks())

			feeds, err := a.feeds()
			if err != nil {
				return err
			}

			result, err := injuries.Sync(ctx, a.client, feeds, days)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Injury reports fetched: %d\n", result.Fetched)
			fmt.Fprintf(out, "Players stored:         %d\n", result.Stored)
			fmt.Fprintf(out, "Reports skipped:        %d\n", result.Skipped)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", injuries.DefaultDays, "report window in days")
	return cmd
}

func newOddsCmd(global *globalOptions) *cobra.Command {
	var (
		date string
		days int
	)

	cmd := &cobra.Command{
		Use:   "odds",
		Short: "Sync betting lines for one or more game dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			from := time.Now()
			if date != "" {
				t, err := time.Parse(odds.DateLayout, date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: want YYYYMMDD", date)
				}
				from = t
			}

			a, err := openApp(ctx, global.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			startMetrics(ctx, global.cfg.Metrics.Addr, a.checks())

			feeds, err := a.feeds()
			if err != nil {
				return err
			}

			result, err := odds.Sync(ctx, a.client, feeds, odds.Dates(from, days)...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Dates synced:  %d\n", result.Dates)
			fmt.Fprintf(out, "Games fetched: %d\n", result.Games)
			fmt.Fprintf(out, "Lines stored:  %d\n", result.Stored)
			fmt.Fprintf(out, "Games skipped: %d\n", result.Skipped)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&date, "date", "", "first game date as YYYYMMDD (default today)")
	flags.IntVar(&days, "days", 1, "number of consecutive dates")
	return cmd
}
