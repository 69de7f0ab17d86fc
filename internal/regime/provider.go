package regime

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/irm/internal/graph"
)

const (
	// DefaultTicker is the node carrying the volatility index.
	DefaultTicker = "VIX"
	// DefaultFallback is used whenever the index cannot be read.
	DefaultFallback = 20.0
)

// Provider supplies the current volatility index value.
type Provider interface {
	Current(ctx context.Context) float64
}

// NodeReader looks up a single graph node.
type NodeReader interface {
	Node(ctx context.Context, ticker string) (*graph.Node, error)
}

// GraphProvider reads the index from the value of its graph node.
type GraphProvider struct {
	nodes    NodeReader
	ticker   string
	fallback float64
}

// NewGraphProvider creates a provider reading ticker's value.
func NewGraphProvider(nodes NodeReader, ticker string, fallback float64) *GraphProvider {
	if ticker == "" {
		ticker = DefaultTicker
	}
	return &GraphProvider{nodes: nodes, ticker: graph.Canonical(ticker), fallback: fallback}
}

// Ticker returns the index node identifier.
func (p *GraphProvider) Ticker() string {
	return p.ticker
}

// Current returns the index value, or the fallback when the node is missing,
// has no value, or the store is unavailable.
func (p *GraphProvider) Current(ctx context.Context) float64 {
	node, err := p.nodes.Node(ctx, p.ticker)
	if err != nil {
		log.Warn().Err(err).Str("ticker", p.ticker).Float64("fallback", p.fallback).
			Msg("volatility index unavailable, using fallback")
		return p.fallback
	}
	if node == nil || node.Value == nil {
		log.Debug().Str("ticker", p.ticker).Msg("volatility index has no value, using fallback")
		return p.fallback
	}
	return *node.Value
}

// Static is a fixed-value provider.
type Static float64

// Current returns the fixed value.
func (s Static) Current(context.Context) float64 {
	return float64(s)
}
