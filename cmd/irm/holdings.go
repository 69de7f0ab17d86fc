package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/irm/internal/ledger"
	"github.com/sawpanic/irm/internal/report"
)

func newHoldingsCmd() *cobra.Command {
	holdingsCmd := &cobra.Command{
		Use:   "holdings",
		Short: "Show an owner's portfolio",
		Long:  "Prints the Portfolio node header and every HOLDS position joined with ledger share counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, _ := cmd.Flags().GetString("owner")

			d, err := loadDeps(cmd)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			return runHoldings(ctx, d, owner, cmd.OutOrStdout())
		},
	}

	holdingsCmd.Flags().String("owner", "", "Portfolio owner (default from config, Admin)")
	return holdingsCmd
}

func runHoldings(ctx context.Context, d *deps, owner string, out io.Writer) error {
	if owner == "" {
		owner = d.cfg.Trace.DefaultOwner
	}

	info, err := d.graph.Portfolio(ctx, owner)
	if err != nil {
		log.Warn().Err(err).Str("owner", owner).Msg("portfolio header unavailable")
		info = nil
	}
	holdings, err := ledger.NewBook(d.graph, d.ledger).Holdings(ctx, owner)
	if err != nil {
		log.Warn().Err(err).Str("owner", owner).Msg("portfolio unavailable")
		holdings = nil
	}

	w := report.NewWriter(out, report.Options{Color: report.ColorEnabled(os.Stdout)})
	if err := w.Holdings(owner, info, holdings); err != nil {
		return fmt.Errorf("write holdings: %w", err)
	}
	return nil
}
