package tracer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sawpanic/irm/internal/graph"
)

// Rule maps the half-open percentile band [Min, Max) to multiplier Mu.
// Absent bounds are unbounded; an absent Mu is neutral.
type Rule struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
	Mu  *float64 `json:"mu,omitempty"`
}

func (r Rule) matches(p float64) bool {
	lo, hi := math.Inf(-1), math.Inf(1)
	if r.Min != nil {
		lo = *r.Min
	}
	if r.Max != nil {
		hi = *r.Max
	}
	return lo <= p && p < hi
}

func (r Rule) mu() float64 {
	if r.Mu == nil {
		return 1.0
	}
	return *r.Mu
}

// ParseRules decodes an edge's threshold_config. An empty config yields no
// rules and no error. Rules are decoded one at a time: when one is malformed
// the rules before it are returned together with the error, since evaluation
// stops there.
//
// A bound must be a JSON number; a missing bound is open but an explicit null
// is malformed. Mu may also be a numeric string. A Mu that cannot be read is
// left nil and resolves as neutral.
func ParseRules(raw string) ([]Rule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}

	rules := make([]Rule, 0, len(items))
	for i, item := range items {
		r, err := decodeRule(item)
		if err != nil {
			return rules, fmt.Errorf("threshold rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func decodeRule(item json.RawMessage) (Rule, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return Rule{}, fmt.Errorf("not an object: %s", item)
	}

	var r Rule
	var err error
	if r.Min, err = decodeBound(fields, "min"); err != nil {
		return Rule{}, err
	}
	if r.Max, err = decodeBound(fields, "max"); err != nil {
		return Rule{}, err
	}
	r.Mu = decodeMu(fields["mu"])
	return r, nil
}

func decodeBound(fields map[string]json.RawMessage, name string) (*float64, error) {
	raw, ok := fields[name]
	if !ok {
		return nil, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || string(raw) == "null" {
		return nil, fmt.Errorf("%s is not a number: %s", name, raw)
	}
	return &v, nil
}

func decodeMu(raw json.RawMessage) *float64 {
	if raw == nil {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil && string(raw) != "null" {
		return &v
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return nil
	}
	return &v
}

// ResolveRules returns the Mu of the first rule whose band contains
// percentile, or 1.0 when percentile is absent or nothing matches.
func ResolveRules(percentile *float64, rules []Rule) float64 {
	if percentile == nil || math.IsNaN(*percentile) {
		return 1.0
	}
	for _, r := range rules {
		if r.matches(*percentile) {
			return r.mu()
		}
	}
	return 1.0
}

// Resolve evaluates a raw threshold_config against percentile. Rules are
// tried in order up to the first malformed one; reaching it, or a config
// that is not a JSON list, resolves as neutral.
func Resolve(percentile *float64, thresholdConfig string) float64 {
	if percentile == nil {
		return 1.0
	}
	rules, _ := ParseRules(thresholdConfig)
	return ResolveRules(percentile, rules)
}

// referencePercentile selects the percentile an edge's modifier reads.
// atSource is true when the hop starts at the shocked node, whose static
// percentile is shifted by the live shock.
func (p Params) referencePercentile(e graph.Edge, atSource bool, delta float64) *float64 {
	switch e.ModifierMetric {
	case graph.SourcePercentile:
		if e.SourcePercentile == nil || !atSource {
			return e.SourcePercentile
		}
		shifted := clamp(*e.SourcePercentile+delta/p.PercentileShockScale, p.PercentileFloor, p.PercentileCeil)
		return &shifted
	case graph.TargetERPPercentile:
		return e.TargetERPPercentile
	case graph.TargetPEPercentile:
		return e.TargetPEPercentile
	default:
		return e.TargetPercentile
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
