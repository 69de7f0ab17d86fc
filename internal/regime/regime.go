// Package regime supplies the market volatility regime that amplifies
// gamma-sensitive edges during a trace.
package regime

// Regime represents the current volatility regime classification
type Regime int

const (
	Calm Regime = iota
	Elevated
	Extreme
)

func (r Regime) String() string {
	switch r {
	case Calm:
		return "calm"
	case Elevated:
		return "elevated"
	case Extreme:
		return "extreme"
	default:
		return "unknown"
	}
}

// Bands are the volatility index levels separating the regimes. Elevated
// covers [Lower, Upper] inclusive; Extreme is strictly above Upper.
type Bands struct {
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}

// DefaultBands returns the VIX 30/45 split.
func DefaultBands() Bands {
	return Bands{Lower: 30, Upper: 45}
}

// Classify places a volatility index value into its regime.
func Classify(vix float64, b Bands) Regime {
	switch {
	case vix > b.Upper:
		return Extreme
	case vix >= b.Lower:
		return Elevated
	default:
		return Calm
	}
}

// Shocked returns the regime value in effect when the volatility index itself
// is shocked by deltaPct percent.
func Shocked(base, deltaPct float64) float64 {
	return base * (1 + deltaPct/100)
}
