// Package graph is the read facade over the FalkorDB ontology graph: assets,
// macro indicators and hub valuation nodes joined by attributed edges.
package graph

import "strings"

// ModifierMetric selects which percentile feeds an edge's state modifier.
type ModifierMetric string

const (
	SourcePercentile    ModifierMetric = "source_percentile"
	TargetPercentile    ModifierMetric = "target_percentile"
	TargetPEPercentile  ModifierMetric = "target_pe_percentile"
	TargetERPPercentile ModifierMetric = "target_erp_percentile"
)

// Metric types that carry a level rather than a price.
const (
	MetricPrice      = "price"
	MetricRate       = "rate"
	MetricVolatility = "volatility"
)

// Node is the subset of node state the tracer reads.
type Node struct {
	ID            string   `json:"id"`
	Labels        []string `json:"labels,omitempty"`
	MetricType    string   `json:"metric_type,omitempty"`
	Value         *float64 `json:"value,omitempty"`
	Percentile    *float64 `json:"percentile,omitempty"`
	PEPercentile  *float64 `json:"pe_percentile,omitempty"`
	ERPPercentile *float64 `json:"erp_percentile,omitempty"`
}

// Edge is one outgoing relationship together with the percentiles of both of
// its endpoints, as returned by a neighbor lookup.
type Edge struct {
	ID              string         `json:"id,omitempty"`
	Type            string         `json:"type"`
	From            string         `json:"from"`
	To              string         `json:"to"`
	TargetLabel     string         `json:"target_label,omitempty"`
	BaseBeta        *float64       `json:"base_beta,omitempty"`
	GammaSensitive  bool           `json:"gamma_sensitive"`
	ModifierMetric  ModifierMetric `json:"modifier_metric,omitempty"`
	ThresholdConfig string         `json:"threshold_config,omitempty"`

	SourcePercentile    *float64 `json:"source_percentile,omitempty"`
	TargetPercentile    *float64 `json:"target_percentile,omitempty"`
	TargetPEPercentile  *float64 `json:"target_pe_percentile,omitempty"`
	TargetERPPercentile *float64 `json:"target_erp_percentile,omitempty"`
}

// Weight is a HOLDS edge from a portfolio to an asset.
type Weight struct {
	Ticker    string  `json:"ticker"`
	WeightPct float64 `json:"weight_pct"`
}

// PortfolioInfo is the header of a Portfolio node.
type PortfolioInfo struct {
	Owner      string  `json:"owner"`
	Name       string  `json:"name"`
	Strategy   string  `json:"strategy"`
	TotalValue float64 `json:"total_value"`
	Currency   string  `json:"currency"`
}

// Canonical normalises a node identifier for comparison and lookup.
func Canonical(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
