package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sawpanic/irm/internal/net/circuit"
	"github.com/sawpanic/irm/internal/net/ratelimit"
)

// DefaultGraph is the graph key the ontology lives under.
const DefaultGraph = "Graph-001"

const storeName = "graph"

// Graph commands. The facade lookups are reads and go through RO_QUERY so a
// replica can serve them and the server rejects any write.
const (
	cmdQuery   = "GRAPH.QUERY"
	cmdROQuery = "GRAPH.RO_QUERY"
)

// ErrDisabled is returned by every call on a store whose connection failed.
var ErrDisabled = errors.New("graph store disabled")

// Querier is the part of a redis client the store needs.
type Querier interface {
	Do(ctx context.Context, args ...interface{}) *redis.Cmd
}

// QueryObserver is notified after every store round trip.
type QueryObserver interface {
	ObserveQuery(store string, elapsed time.Duration, err error)
}

// Store issues read queries against one named FalkorDB graph.
type Store struct {
	q        Querier
	name     string
	breaker  *circuit.Breaker
	limiter  *ratelimit.Limiter
	observer QueryObserver
	disabled bool
}

// Option configures a Store.
type Option func(*Store)

// WithBreaker routes every query through b.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Store) { s.breaker = b }
}

// WithLimiter throttles queries through l.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(s *Store) { s.limiter = l }
}

// WithObserver reports query latency and outcome to o.
func WithObserver(o QueryObserver) Option {
	return func(s *Store) { s.observer = o }
}

// NewStore creates a store over q for the named graph.
func NewStore(q Querier, graphName string, opts ...Option) *Store {
	if graphName == "" {
		graphName = DefaultGraph
	}
	s := &Store{q: q, name: graphName}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Disabled returns a store that answers ErrDisabled to everything.
func Disabled() *Store {
	return &Store{name: DefaultGraph, disabled: true}
}

// Enabled reports whether the store has a live connection.
func (s *Store) Enabled() bool {
	return !s.disabled
}

// Name returns the graph key.
func (s *Store) Name() string {
	return s.name
}

// Query runs an arbitrary cypher statement with GRAPH.QUERY and decodes the
// reply.
func (s *Store) Query(ctx context.Context, cypher string) (*Result, error) {
	return s.run(ctx, cmdQuery, cypher)
}

func (s *Store) readQuery(ctx context.Context, cypher string) (*Result, error) {
	return s.run(ctx, cmdROQuery, cypher)
}

func (s *Store) run(ctx context.Context, command, cypher string) (*Result, error) {
	if s.disabled {
		return nil, ErrDisabled
	}
	if err := s.limiter.Wait(ctx, storeName); err != nil {
		return nil, fmt.Errorf("graph query throttled: %w", err)
	}

	var raw interface{}
	call := func(ctx context.Context) error {
		var err error
		raw, err = s.q.Do(ctx, command, s.name, cypher).Result()
		return err
	}

	start := time.Now()
	var err error
	if s.breaker != nil {
		err = s.breaker.Call(ctx, call)
	} else {
		err = call(ctx)
	}
	if s.observer != nil {
		s.observer.ObserveQuery(storeName, time.Since(start), err)
	}
	if err != nil {
		return nil, fmt.Errorf("graph query: %w", err)
	}

	res, err := parseResult(raw)
	if err != nil {
		return nil, fmt.Errorf("decode graph reply: %w", err)
	}
	return res, nil
}

// Neighbors returns the outgoing edges of ticker in the order the graph
// returns them. Rows without a target identifier are dropped.
func (s *Store) Neighbors(ctx context.Context, ticker string) ([]Edge, error) {
	res, err := s.readQuery(ctx, NeighborsQuery(ticker))
	if err != nil {
		return nil, err
	}

	from := Canonical(ticker)
	edges := make([]Edge, 0, len(res.Rows))
	for _, row := range res.Rows {
		target := Canonical(asString(cell(row, 0)))
		if target == "" {
			continue
		}
		edges = append(edges, Edge{
			From:                from,
			To:                  target,
			Type:                asString(cell(row, 1)),
			BaseBeta:            asFloat(cell(row, 2)),
			GammaSensitive:      asBool(cell(row, 3)),
			TargetLabel:         asString(cell(row, 4)),
			TargetPercentile:    asFloat(cell(row, 5)),
			ModifierMetric:      ModifierMetric(asString(cell(row, 6))),
			ThresholdConfig:     asString(cell(row, 7)),
			SourcePercentile:    asFloat(cell(row, 8)),
			TargetPEPercentile:  asFloat(cell(row, 9)),
			TargetERPPercentile: asFloat(cell(row, 10)),
			ID:                  asString(cell(row, 11)),
		})
	}
	return edges, nil
}

// Node looks up a single node. It returns nil, nil when no node matches.
func (s *Store) Node(ctx context.Context, ticker string) (*Node, error) {
	res, err := s.readQuery(ctx, NodeQuery(ticker))
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, nil
	}

	row := res.Rows[0]
	return &Node{
		ID:            Canonical(asString(cell(row, 0))),
		Labels:        asStrings(cell(row, 1)),
		MetricType:    asString(cell(row, 2)),
		Value:         asFloat(cell(row, 3)),
		Percentile:    asFloat(cell(row, 4)),
		PEPercentile:  asFloat(cell(row, 5)),
		ERPPercentile: asFloat(cell(row, 6)),
	}, nil
}

// Weights returns owner's HOLDS edges in graph order. Rows with a missing
// ticker or weight are skipped.
func (s *Store) Weights(ctx context.Context, owner string) ([]Weight, error) {
	res, err := s.readQuery(ctx, WeightsQuery(owner))
	if err != nil {
		return nil, err
	}

	weights := make([]Weight, 0, len(res.Rows))
	for _, row := range res.Rows {
		ticker := Canonical(asString(cell(row, 0)))
		w := asFloat(cell(row, 1))
		if ticker == "" || w == nil {
			continue
		}
		weights = append(weights, Weight{Ticker: ticker, WeightPct: *w})
	}
	return weights, nil
}

// Portfolio reads the Portfolio node of owner, nil when absent.
func (s *Store) Portfolio(ctx context.Context, owner string) (*PortfolioInfo, error) {
	res, err := s.readQuery(ctx, PortfolioQuery(owner))
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return nil, nil
	}

	row := res.Rows[0]
	info := &PortfolioInfo{
		Owner:    owner,
		Name:     asString(cell(row, 0)),
		Strategy: asString(cell(row, 1)),
		Currency: asString(cell(row, 3)),
	}
	if v := asFloat(cell(row, 2)); v != nil {
		info.TotalValue = *v
	}
	return info, nil
}
