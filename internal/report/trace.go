package report

import (
	"strings"

	"github.com/sawpanic/irm/internal/ledger"
	"github.com/sawpanic/irm/internal/tracer"
)

// TraceHeader prints the trace banner and, for converted shocks, the metric
// correction notice.
func (w *Writer) TraceHeader(shock tracer.Shock) error {
	if shock.Converted {
		w.printf("[*] Metric Correction: Converting %s%% relative shock to %s absolute point change (Source: %s)\n",
			round(shock.Delta, 4), round(shock.Normalized, 4), shock.MetricType)
	}
	w.printf("[*] Starting Trace: %s with Delta: %s%%\n", shock.Ticker, round(shock.Normalized, 4))
	w.printf("[*] Market Context - Base VIX: %s", round(shock.BaseVIX, 2))
	if shock.VIX != shock.BaseVIX {
		w.printf(" (shocked: %s)", round(shock.VIX, 2))
	}
	w.printf("\n")
	w.rule("-")
	return w.err
}

// Impacts prints one line per traversed edge in trace order.
func (w *Writer) Impacts(impacts []tracer.Impact) error {
	for _, imp := range impacts {
		id := imp.EdgeID
		if id == "" {
			id = "None"
		}
		w.printf("[%d] %s (%s ID:%s): %s  (%s)",
			imp.Depth, imp.PathString(), imp.EdgeType, id,
			w.colorize(imp.StepImpact, round(imp.StepImpact, 4)+"%"), imp.Label)
		if w.opts.Breakdown {
			w.printf("  Beta:%s * Mu:%s * Gamma:%s * Decay:%s",
				round(imp.Beta, 4), round(imp.Mu, 4), round(imp.Gamma, 4), round(imp.Decay, 2))
			if imp.Pruned {
				w.printf(" [pruned]")
			}
		}
		w.printf("\n")
	}
	return w.err
}

// EmptyPortfolio prints the warning shown when owner holds nothing.
func (w *Writer) EmptyPortfolio(owner string) error {
	w.printf("[!] Warning: Portfolio for '%s' not found or empty.\n", owner)
	return w.err
}

// Summary prints the per-holding exposure table and the NAV shock line.
func (w *Writer) Summary(sum tracer.Summary) error {
	w.printf("\n%s PORTFOLIO IMPACT SUMMARY %s\n", strings.Repeat("=", 20), strings.Repeat("=", 20))
	for _, e := range sum.Exposures {
		w.printf("%-5s | Weight: %5s%% | Absolute Impact: %s | Weighted PNL Contribution: %7s%%\n",
			e.Ticker, fixed(e.Weight*100, 1),
			w.colorize(e.Impact, pad(fixed(e.Impact, 2), 7)+"%"),
			fixed(e.Contribution, 2))
	}
	w.rule("-")
	w.printf("ESTIMATED TOTAL PORTFOLIO NAV SHOCK: %s\n", w.colorize(sum.Total, pad(fixed(sum.Total, 2), 7)+"%"))
	w.rule("=")
	return w.err
}

// Trace prints a complete text report.
func (w *Writer) Trace(trace *tracer.Trace, owner string, holdings []ledger.Holding, sum tracer.Summary) error {
	if len(holdings) == 0 {
		w.EmptyPortfolio(owner)
	}
	w.TraceHeader(trace.Shock)
	w.Impacts(trace.Impacts)
	return w.Summary(sum)
}
