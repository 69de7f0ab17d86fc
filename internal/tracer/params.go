// Package tracer propagates a shock on one graph node through the dependency
// graph and reduces the resulting impacts into a portfolio NAV shock.
//
// Impact per hop: incoming * (beta * mu * gamma) * decay^depth, where beta is
// the edge's linear sensitivity, mu the percentile-driven state modifier,
// gamma the volatility regime amplifier and decay the per-hop attenuation.
package tracer

import (
	"fmt"
	"math"

	"github.com/sawpanic/irm/internal/regime"
)

// Params are the fixed engine constants of one trace.
type Params struct {
	DecayFactor float64 `yaml:"decay_factor"`
	// A hop leaving a node at depth d is attenuated by
	// DecayFactor^(d+DecayHopOffset). With offset 1 the first hop already
	// decays; offset 0 leaves it undecayed.
	DecayHopOffset int     `yaml:"decay_hop_offset"`
	MaxDepth       int     `yaml:"max_depth"`
	PruneThreshold float64 `yaml:"prune_threshold"`

	GammaBands    regime.Bands `yaml:"gamma_bands"`
	ElevatedGamma float64      `yaml:"elevated_gamma"`
	ExtremeGamma  float64      `yaml:"extreme_gamma"`

	// A live shock shifts the shocked node's own percentile by
	// delta/PercentileShockScale, clamped to [PercentileFloor, PercentileCeil].
	PercentileShockScale float64 `yaml:"percentile_shock_scale"`
	PercentileFloor      float64 `yaml:"percentile_floor"`
	PercentileCeil       float64 `yaml:"percentile_ceil"`
}

// DefaultParams returns the production constants.
func DefaultParams() Params {
	return Params{
		DecayFactor:          0.8,
		DecayHopOffset:       1,
		MaxDepth:             5,
		PruneThreshold:       0.05,
		GammaBands:           regime.DefaultBands(),
		ElevatedGamma:        1.5,
		ExtremeGamma:         2.5,
		PercentileShockScale: 200,
		PercentileFloor:      0.01,
		PercentileCeil:       0.99,
	}
}

// Validate rejects parameter sets that would not terminate or make no sense.
func (p Params) Validate() error {
	if p.DecayFactor <= 0 || p.DecayFactor > 1 {
		return fmt.Errorf("decay_factor must be in (0, 1], got %v", p.DecayFactor)
	}
	if p.DecayHopOffset < 0 {
		return fmt.Errorf("decay_hop_offset cannot be negative")
	}
	if p.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be at least 1, got %d", p.MaxDepth)
	}
	if p.PruneThreshold < 0 {
		return fmt.Errorf("prune_threshold cannot be negative")
	}
	if p.GammaBands.Lower > p.GammaBands.Upper {
		return fmt.Errorf("gamma_bands lower %v exceeds upper %v", p.GammaBands.Lower, p.GammaBands.Upper)
	}
	if p.PercentileShockScale == 0 {
		return fmt.Errorf("percentile_shock_scale cannot be zero")
	}
	if p.PercentileFloor > p.PercentileCeil {
		return fmt.Errorf("percentile_floor %v exceeds percentile_ceil %v", p.PercentileFloor, p.PercentileCeil)
	}
	return nil
}

// Decay returns the attenuation of a hop leaving a node at depth.
func (p Params) Decay(depth int) float64 {
	return math.Pow(p.DecayFactor, float64(depth+p.DecayHopOffset))
}

// Gamma returns the amplifier for a gamma-sensitive edge at volatility vix.
func (p Params) Gamma(vix float64) float64 {
	switch regime.Classify(vix, p.GammaBands) {
	case regime.Extreme:
		return p.ExtremeGamma
	case regime.Elevated:
		return p.ElevatedGamma
	default:
		return 1.0
	}
}
