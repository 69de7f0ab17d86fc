package tracer

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/irm/internal/graph"
)

// NeighborReader lists the outgoing edges of a node in store order.
type NeighborReader interface {
	Neighbors(ctx context.Context, ticker string) ([]graph.Edge, error)
}

// Impact is one traversed edge of a trace.
type Impact struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	EdgeType   string   `json:"edge_type"`
	EdgeID     string   `json:"edge_id,omitempty"`
	Label      string   `json:"label,omitempty"`
	Depth      int      `json:"depth"`
	StepImpact float64  `json:"step_impact"`
	Path       []string `json:"path"`

	Beta  float64 `json:"beta"`
	Mu    float64 `json:"mu"`
	Gamma float64 `json:"gamma"`
	Decay float64 `json:"decay"`

	// Pruned marks a record whose magnitude ended its path.
	Pruned bool `json:"pruned,omitempty"`
}

// PathString renders the path as "A -> B -> C".
func (i Impact) PathString() string {
	return strings.Join(i.Path, " -> ")
}

// Stats counts what a trace did.
type Stats struct {
	Expanded    int `json:"expanded"`     // queue items whose neighbors were read
	DepthCapped int `json:"depth_capped"` // queue items at max depth, not expanded
	Recorded    int `json:"recorded"`     // impact records emitted
	CycleSkips  int `json:"cycle_skips"`  // edges back into the current path
	Pruned      int `json:"pruned"`       // records too small to propagate
	LookupFails int `json:"lookup_fails"` // neighbor reads that failed
}

// Trace is the output of one traversal.
type Trace struct {
	Shock   Shock    `json:"shock"`
	Impacts []Impact `json:"impacts"`
	Stats   Stats    `json:"stats"`
}

type itemState int

const (
	statePending itemState = iota
	stateExpanded
	statePruned
)

type queueItem struct {
	ticker string
	impact float64
	depth  int
	path   []string
	state  itemState
}

// onPath reports whether ticker is a full segment of the path.
func (q *queueItem) onPath(ticker string) bool {
	for _, p := range q.path {
		if p == ticker {
			return true
		}
	}
	return false
}

// extend returns a copy of the path with ticker appended.
func (q *queueItem) extend(ticker string) []string {
	path := make([]string, len(q.path), len(q.path)+1)
	copy(path, q.path)
	return append(path, ticker)
}

// Engine runs breadth-first impact propagation over a read-only graph.
type Engine struct {
	graph  NeighborReader
	params Params
	logger zerolog.Logger
}

// NewEngine creates an engine. Params are used as given; call
// Params.Validate first when they come from user configuration.
func NewEngine(g NeighborReader, params Params) *Engine {
	return &Engine{graph: g, params: params, logger: log.Logger}
}

// WithLogger returns a copy of the engine logging to l.
func (e *Engine) WithLogger(l zerolog.Logger) *Engine {
	cp := *e
	cp.logger = l
	return &cp
}

// Params returns the engine constants.
func (e *Engine) Params() Params {
	return e.params
}

// Run traces shock through the graph. Impacts are returned in breadth-first
// order, edges expanded in the order the graph returns them. A path never
// revisits a ticker already on it, but the same ticker may be reached again
// through a disjoint path. Failed neighbor reads count as no neighbors. The
// only error is ctx cancellation, returned with the partial trace.
func (e *Engine) Run(ctx context.Context, shock Shock) (*Trace, error) {
	p := e.params
	source := graph.Canonical(shock.Ticker)
	trace := &Trace{Shock: shock, Impacts: []Impact{}}

	queue := []*queueItem{{
		ticker: source,
		impact: shock.Normalized,
		depth:  0,
		path:   []string{source},
		state:  statePending,
	}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return trace, err
		}

		item := queue[0]
		queue = queue[1:]

		if item.depth >= p.MaxDepth {
			trace.Stats.DepthCapped++
			continue
		}

		edges, err := e.graph.Neighbors(ctx, item.ticker)
		item.state = stateExpanded
		trace.Stats.Expanded++
		if err != nil {
			trace.Stats.LookupFails++
			e.logger.Warn().Err(err).Str("ticker", item.ticker).Int("depth", item.depth).
				Msg("neighbor lookup failed, treating as leaf")
			continue
		}

		decay := p.Decay(item.depth)
		for _, edge := range edges {
			target := graph.Canonical(edge.To)
			if item.onPath(target) {
				trace.Stats.CycleSkips++
				continue
			}

			beta := 1.0
			if edge.BaseBeta != nil {
				beta = *edge.BaseBeta
			}
			gamma := 1.0
			if edge.GammaSensitive {
				gamma = p.Gamma(shock.VIX)
			}
			ref := p.referencePercentile(edge, item.ticker == source, shock.Delta)
			mu := Resolve(ref, edge.ThresholdConfig)

			step := item.impact * (beta * mu * gamma) * decay
			next := &queueItem{
				ticker: target,
				impact: step,
				depth:  item.depth + 1,
				path:   item.extend(target),
				state:  statePending,
			}
			if math.Abs(step) <= p.PruneThreshold {
				next.state = statePruned
			}

			trace.Impacts = append(trace.Impacts, Impact{
				From:       item.ticker,
				To:         target,
				EdgeType:   edge.Type,
				EdgeID:     edge.ID,
				Label:      edge.TargetLabel,
				Depth:      next.depth,
				StepImpact: step,
				Path:       next.path,
				Beta:       beta,
				Mu:         mu,
				Gamma:      gamma,
				Decay:      decay,
				Pruned:     next.state == statePruned,
			})
			trace.Stats.Recorded++

			if next.state == statePruned {
				trace.Stats.Pruned++
				continue
			}
			queue = append(queue, next)
		}
	}

	e.logger.Debug().Str("source", source).Int("impacts", len(trace.Impacts)).
		Int("expanded", trace.Stats.Expanded).Int("pruned", trace.Stats.Pruned).Msg("trace complete")
	return trace, nil
}
