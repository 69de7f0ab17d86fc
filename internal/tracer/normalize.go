package tracer

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/irm/internal/graph"
	"github.com/sawpanic/irm/internal/regime"
)

// NodeReader looks up a single graph node; nil, nil means not found.
type NodeReader interface {
	Node(ctx context.Context, ticker string) (*graph.Node, error)
}

// Shock is a normalized trace input.
type Shock struct {
	Ticker     string  `json:"ticker"`
	Delta      float64 `json:"delta"`            // user delta, percent
	Normalized float64 `json:"normalized_delta"` // delta in the source node's unit
	MetricType string  `json:"metric_type,omitempty"`
	Converted  bool    `json:"converted"` // true when Normalized is an absolute point change
	BaseVIX    float64 `json:"base_vix"`
	VIX        float64 `json:"vix"` // regime value used for gamma
}

// Normalizer converts a user percentage delta into the unit the shocked
// node's outgoing betas are expressed in.
type Normalizer struct {
	nodes       NodeReader
	regime      regime.Provider
	regimeIndex string
}

// NewNormalizer creates a normalizer. regimeTicker names the node holding
// the volatility index.
func NewNormalizer(nodes NodeReader, provider regime.Provider, regimeTicker string) *Normalizer {
	if regimeTicker == "" {
		regimeTicker = regime.DefaultTicker
	}
	return &Normalizer{nodes: nodes, regime: provider, regimeIndex: graph.Canonical(regimeTicker)}
}

// Normalize resolves the shock for ticker. Rate and volatility nodes take the
// delta relative to their level and yield an absolute point change; every
// other node keeps the plain percentage. An unresolvable source node keeps
// the raw delta.
func (n *Normalizer) Normalize(ctx context.Context, ticker string, delta float64) Shock {
	shock := Shock{
		Ticker:     graph.Canonical(ticker),
		Delta:      delta,
		Normalized: delta,
	}

	node, err := n.nodes.Node(ctx, shock.Ticker)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("ticker", shock.Ticker).Msg("source node unavailable, using raw delta")
	case node == nil:
		log.Debug().Str("ticker", shock.Ticker).Msg("source node not found, using raw delta")
	default:
		shock.MetricType = node.MetricType
		if absoluteMetric(node.MetricType) && node.Value != nil {
			shock.Normalized = *node.Value * (delta / 100)
			shock.Converted = true
		}
	}

	shock.BaseVIX = n.regime.Current(ctx)
	shock.VIX = shock.BaseVIX
	if shock.Ticker == n.regimeIndex {
		shock.VIX = regime.Shocked(shock.BaseVIX, delta)
	}
	return shock
}

func absoluteMetric(metricType string) bool {
	return metricType == graph.MetricRate || metricType == graph.MetricVolatility
}
