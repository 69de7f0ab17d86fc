package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sawpanic/irm/internal/report"
)

func newQueryCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "query <cypher>",
		Short:   "Run a raw Cypher statement against the graph",
		Example: `  irm query "MATCH (a:Asset {ticker: 'VIX'}) RETURN a.value"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps(cmd)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			return runQuery(ctx, d, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}
}

// runQuery fails loudly, unlike trace: the caller asked for exactly this
// statement.
func runQuery(ctx context.Context, d *deps, cypher string, out io.Writer) error {
	res, err := d.graph.Query(ctx, cypher)
	if err != nil {
		return err
	}
	if err := report.NewWriter(out, report.Options{}).Query(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
