package tracer

import (
	"math"

	"github.com/sawpanic/irm/internal/graph"
	"github.com/sawpanic/irm/internal/ledger"
)

// Exposure is one portfolio ticker's share of the NAV shock.
type Exposure struct {
	Ticker       string  `json:"ticker"`
	Weight       float64 `json:"weight"`
	Impact       float64 `json:"absolute_impact"`
	Contribution float64 `json:"weighted_contribution"`
}

// Summary is the portfolio-level result of a trace.
type Summary struct {
	Exposures []Exposure `json:"exposures"`
	Total     float64    `json:"total"`
}

// Aggregate reduces impacts onto the held tickers. Each ticker keeps the
// single record of largest magnitude across all paths reaching it; parallel
// paths are never compounded. A held source ticker is seeded with the
// normalized shock itself. Exposures follow the holdings order.
func Aggregate(impacts []Impact, holdings []ledger.Holding, shock Shock) Summary {
	best := make(map[string]float64, len(holdings))
	for _, h := range holdings {
		best[graph.Canonical(h.Ticker)] = 0
	}

	source := graph.Canonical(shock.Ticker)
	if _, held := best[source]; held {
		best[source] = shock.Normalized
	}

	for _, imp := range impacts {
		to := graph.Canonical(imp.To)
		current, held := best[to]
		if !held {
			continue
		}
		if math.Abs(imp.StepImpact) > math.Abs(current) {
			best[to] = imp.StepImpact
		}
	}

	summary := Summary{Exposures: make([]Exposure, 0, len(holdings))}
	for _, h := range holdings {
		ticker := graph.Canonical(h.Ticker)
		impact := best[ticker]
		contribution := impact * h.WeightPct
		summary.Exposures = append(summary.Exposures, Exposure{
			Ticker:       ticker,
			Weight:       h.WeightPct,
			Impact:       impact,
			Contribution: contribution,
		})
		summary.Total += contribution
	}
	return summary
}
