package report

import (
	"github.com/sawpanic/irm/internal/graph"
	"github.com/sawpanic/irm/internal/ledger"
)

// Holdings prints the portfolio header and its positions.
func (w *Writer) Holdings(owner string, info *graph.PortfolioInfo, holdings []ledger.Holding) error {
	if info != nil {
		w.printf("Portfolio: %s (owner %s)\n", info.Name, owner)
		if info.Strategy != "" {
			w.printf("Strategy:  %s\n", info.Strategy)
		}
		if info.TotalValue != 0 {
			w.printf("NAV:       %s %s\n", fixed(info.TotalValue, 2), info.Currency)
		}
	} else {
		w.printf("Portfolio: (owner %s)\n", owner)
	}

	if len(holdings) == 0 {
		return w.EmptyPortfolio(owner)
	}

	w.rule("-")
	w.printf("%-8s | %12s | %12s | %8s\n", "Ticker", "Shares", "Avg Cost", "Weight")
	w.rule("-")
	total := 0.0
	for _, h := range holdings {
		total += h.WeightPct
		w.printf("%-8s | %12s | %12s | %7s%%\n",
			h.Ticker, round(h.Shares, 4), fixed(h.AvgCost, 2), fixed(h.WeightPct*100, 1))
	}
	w.rule("-")
	w.printf("%-8s | %12s | %12s | %7s%%\n", "TOTAL", "", "", fixed(total*100, 1))
	return w.err
}
