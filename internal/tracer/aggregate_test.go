package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/irm/internal/ledger"
)

func impactAt(to string, step float64) Impact {
	return Impact{To: to, StepImpact: step}
}

func TestAggregate_MaxMagnitudeWins(t *testing.T) {
	impacts := []Impact{impactAt("B", -3), impactAt("B", 1), impactAt("B", 2.5)}
	holdings := []ledger.Holding{{Ticker: "B", WeightPct: 0.5}}

	sum := Aggregate(impacts, holdings, shockOf("A", 1, 20))
	require.Len(t, sum.Exposures, 1)
	assert.Equal(t, -3.0, sum.Exposures[0].Impact)
	assert.Equal(t, -1.5, sum.Exposures[0].Contribution)
	assert.Equal(t, -1.5, sum.Total)
}

func TestAggregate_SourceSeeded(t *testing.T) {
	holdings := []ledger.Holding{{Ticker: "nvda", WeightPct: 0.2}, {Ticker: "QQQ", WeightPct: 0.8}}
	impacts := []Impact{impactAt("QQQ", 2), impactAt("NVDA", 3)}

	sum := Aggregate(impacts, holdings, shockOf("NVDA", -10, 20))
	require.Len(t, sum.Exposures, 2)
	assert.Equal(t, "NVDA", sum.Exposures[0].Ticker)
	assert.Equal(t, -10.0, sum.Exposures[0].Impact, "the direct shock outweighs the feedback loop")
	assert.InDelta(t, -2.0+1.6, sum.Total, 1e-12)
}

func TestAggregate_UnheldIgnored(t *testing.T) {
	holdings := []ledger.Holding{{Ticker: "B", WeightPct: 1.0}, {Ticker: "C", WeightPct: 0.25}}
	impacts := []Impact{impactAt("X", 100), impactAt("B", -0.4)}

	sum := Aggregate(impacts, holdings, shockOf("A", 1, 20))
	require.Len(t, sum.Exposures, 2)
	assert.Equal(t, -0.4, sum.Exposures[0].Impact)
	assert.Equal(t, 0.0, sum.Exposures[1].Impact, "unreached holdings are listed with zero")
	assert.Equal(t, -0.4, sum.Total, "negative totals are not clamped")
}

func TestAggregate_EmptyPortfolio(t *testing.T) {
	sum := Aggregate([]Impact{impactAt("B", 5)}, nil, shockOf("A", 1, 20))
	assert.Empty(t, sum.Exposures)
	assert.Zero(t, sum.Total)
}

func TestAggregate_EndToEnd(t *testing.T) {
	g := newFakeGraph().link("A", "B", 2.0).link("B", "C", 1.0).link("A", "C", -0.5)
	trace := run(t, g, shockOf("A", 1, 20))

	holdings := []ledger.Holding{{Ticker: "B", WeightPct: 0.6}, {Ticker: "C", WeightPct: 0.4}}
	sum := Aggregate(trace.Impacts, holdings, trace.Shock)

	// C is reached at -0.4 directly and at 1.024 through B
	assert.InDelta(t, 1.6, sum.Exposures[0].Impact, 1e-12)
	assert.InDelta(t, 1.024, sum.Exposures[1].Impact, 1e-12)
	assert.InDelta(t, 1.6*0.6+1.024*0.4, sum.Total, 1e-12)
}
