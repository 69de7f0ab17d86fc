package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/irm/internal/ledger"
	"github.com/sawpanic/irm/internal/regime"
	"github.com/sawpanic/irm/internal/report"
	"github.com/sawpanic/irm/internal/tracer"
)

type traceOptions struct {
	ticker    string
	delta     float64
	owner     string
	json      bool
	stats     bool
	breakdown bool
	color     bool
}

func newTraceCmd() *cobra.Command {
	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "Trace a shock through the dependency graph",
		Long: `Applies a percentage shock to one node, propagates it breadth-first along
the graph's dependency edges and aggregates the impacts on the owner's holdings
into an estimated NAV shock.`,
		Example: `  irm trace --ticker US10Y --delta 10
  irm trace --ticker VIX --delta 150 --owner Admin --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := traceOptionsFrom(cmd.Flags())
			opts.color = !opts.json && report.ColorEnabled(os.Stdout)

			d, err := loadDeps(cmd)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, cancel := commandContext(cmd)
			defer cancel()
			return runTrace(ctx, d, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	traceCmd.Flags().String("ticker", "", "Source ticker or node name (e.g. US10Y)")
	traceCmd.Flags().Float64("delta", 1.0, "Initial shock in percent (e.g. 1.0 for +1%)")
	traceCmd.Flags().String("owner", "", "Portfolio owner (default from config, Admin)")
	traceCmd.Flags().Bool("json", false, "Emit the report as JSON")
	traceCmd.Flags().Bool("stats", false, "Print traversal and store counters after the report")
	traceCmd.Flags().Bool("breakdown", false, "Show beta, mu, gamma and decay on every edge line")
	_ = traceCmd.MarkFlagRequired("ticker")

	return traceCmd
}

func traceOptionsFrom(flags *pflag.FlagSet) traceOptions {
	var opts traceOptions
	opts.ticker, _ = flags.GetString("ticker")
	opts.delta, _ = flags.GetFloat64("delta")
	opts.owner, _ = flags.GetString("owner")
	opts.json, _ = flags.GetBool("json")
	opts.stats, _ = flags.GetBool("stats")
	opts.breakdown, _ = flags.GetBool("breakdown")
	return opts
}

// runTrace normalizes the shock, traces it, aggregates it onto the owner's
// holdings and writes the report to out. Counters go to errOut. A cancelled
// trace still reports what it found and then returns the cancellation.
func runTrace(ctx context.Context, d *deps, opts traceOptions, out, errOut io.Writer) error {
	ticker := strings.TrimSpace(opts.ticker)
	if ticker == "" {
		return fmt.Errorf("--ticker is required")
	}
	owner := opts.owner
	if owner == "" {
		owner = d.cfg.Trace.DefaultOwner
	}

	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Logger()

	provider := regime.NewGraphProvider(d.graph, d.cfg.Trace.RegimeTicker, d.cfg.Trace.RegimeFallback)
	shock := tracer.NewNormalizer(d.graph, provider, provider.Ticker()).Normalize(ctx, ticker, opts.delta)
	if shock.Converted {
		logger.Info().
			Float64("delta_pct", shock.Delta).
			Float64("absolute", shock.Normalized).
			Str("metric_type", shock.MetricType).
			Msg("Metric correction: relative shock converted to absolute point change")
	}

	holdings, err := ledger.NewBook(d.graph, d.ledger).Holdings(ctx, owner)
	if err != nil {
		logger.Warn().Err(err).Str("owner", owner).Msg("portfolio unavailable")
		holdings = nil
	}
	if len(holdings) == 0 && opts.json {
		logger.Warn().Str("owner", owner).Msg("portfolio not found or empty")
	}

	start := time.Now()
	trace, traceErr := tracer.NewEngine(d.graph, d.cfg.Trace.Params).WithLogger(logger).Run(ctx, shock)
	d.metrics.ObserveTrace(trace, time.Since(start), traceErr)
	if traceErr != nil {
		logger.Warn().Err(traceErr).Int("impacts", len(trace.Impacts)).Msg("trace interrupted, reporting partial results")
	}

	sum := tracer.Aggregate(trace.Impacts, holdings, trace.Shock)
	d.metrics.ObserveNAVShock(sum.Total)
	d.observeStores()

	w := report.NewWriter(out, report.Options{Color: opts.color, Breakdown: opts.breakdown})
	if opts.json {
		err = w.JSON(report.NewDocument(runID, owner, trace, sum))
	} else {
		err = w.Trace(trace, owner, holdings, sum)
	}
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	logger.Info().
		Str("source", shock.Ticker).
		Int("impacts", len(trace.Impacts)).
		Int("holdings", len(holdings)).
		Float64("nav_shock_pct", sum.Total).
		Msg("Trace completed")

	if opts.stats {
		if err := d.metrics.WriteText(errOut); err != nil {
			return fmt.Errorf("write stats: %w", err)
		}
	}
	return traceErr
}
