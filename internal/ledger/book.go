package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/irm/internal/graph"
)

// Holding is one position of a portfolio snapshot.
type Holding struct {
	Ticker    string  `json:"ticker"`
	WeightPct float64 `json:"weight_pct"`
	Shares    float64 `json:"shares"`
	AvgCost   float64 `json:"avg_cost"`
}

// WeightSource lists the HOLDS edges of a portfolio.
type WeightSource interface {
	Weights(ctx context.Context, owner string) ([]graph.Weight, error)
}

// Book joins graph weights with ledger lots.
type Book struct {
	weights WeightSource
	lots    Ledger
}

// NewBook creates a book. A nil ledger yields zero lots.
func NewBook(weights WeightSource, lots Ledger) *Book {
	if lots == nil {
		lots = Empty{}
	}
	return &Book{weights: weights, lots: lots}
}

// Holdings returns owner's positions in HOLDS-edge order. A ticker held
// through several edges keeps its first position and its last weight. A
// ledger failure for one ticker leaves that position's lot at zero.
func (b *Book) Holdings(ctx context.Context, owner string) ([]Holding, error) {
	weights, err := b.weights.Weights(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load weights for %s: %w", owner, err)
	}

	holdings := make([]Holding, 0, len(weights))
	index := make(map[string]int, len(weights))
	for _, w := range weights {
		ticker := graph.Canonical(w.Ticker)
		if ticker == "" {
			continue
		}
		if i, ok := index[ticker]; ok {
			holdings[i].WeightPct = w.WeightPct
			continue
		}
		index[ticker] = len(holdings)

		lot, err := b.lots.Lot(ctx, owner, ticker)
		if err != nil {
			log.Warn().Err(err).Str("owner", owner).Str("ticker", ticker).Msg("ledger lot unavailable")
			lot = Lot{}
		}

		holdings = append(holdings, Holding{
			Ticker:    ticker,
			WeightPct: w.WeightPct,
			Shares:    lot.Shares,
			AvgCost:   lot.AvgCost,
		})
	}
	return holdings, nil
}
