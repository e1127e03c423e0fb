package main

import (
	"fmt"

	"github.com/Sternrassler/nba-ingest/pkg/players"
	"github.com/spf13/cobra"
)

func newPlayersCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "Sync the provider player catalog into the relational stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, global.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			startMetrics(ctx, global.cfg.Metrics.Addr, a.checks())

			catalog, err := a.catalog()
			if err != nil {
				return err
			}

			result, err := players.Sync(ctx, a.client, catalog)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Players fetched: %d\n", result.Fetched)
			fmt.Fprintf(out, "Players stored:  %d\n", result.Stored)
			fmt.Fprintf(out, "Players skipped: %d\n", result.Skipped)
			return nil
		},
	}
}
