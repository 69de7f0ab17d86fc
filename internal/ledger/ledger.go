// Package ledger reads per-owner holdings lots kept outside the graph and
// joins them with the portfolio weights stored on HOLDS edges.
package ledger

import (
	"context"
	"fmt"
)

// DefaultKeyPrefix is the redis key namespace for holdings hashes.
const DefaultKeyPrefix = "irm:portfolio"

// Lot is the share count and average cost of one holding.
type Lot struct {
	Shares  float64 `json:"shares" db:"shares"`
	AvgCost float64 `json:"avg_cost" db:"avg_cost"`
}

// Ledger returns the lot of owner's position in ticker. A position the
// ledger has never seen is a zero Lot, not an error.
type Ledger interface {
	Lot(ctx context.Context, owner, ticker string) (Lot, error)
}

// Empty is the ledger used when no backend is reachable.
type Empty struct{}

// Lot always returns a zero lot.
func (Empty) Lot(context.Context, string, string) (Lot, error) {
	return Lot{}, nil
}

// HoldingKey is the redis hash key of one holding.
func HoldingKey(prefix, owner, ticker string) string {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return fmt.Sprintf("%s:%s:holdings:%s", prefix, owner, ticker)
}
