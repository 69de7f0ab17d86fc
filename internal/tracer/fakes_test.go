package tracer

import (
	"context"
	"errors"

	"github.com/sawpanic/irm/internal/graph"
)

// fakeGraph is an in-memory adjacency list that records every lookup.
type fakeGraph struct {
	edges   map[string][]graph.Edge
	nodes   map[string]*graph.Node
	fail    map[string]bool
	queries []string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		edges: make(map[string][]graph.Edge),
		nodes: make(map[string]*graph.Node),
		fail:  make(map[string]bool),
	}
}

func (f *fakeGraph) add(e graph.Edge) *fakeGraph {
	if e.Type == "" {
		e.Type = "DRIVES"
	}
	f.edges[e.From] = append(f.edges[e.From], e)
	return f
}

func (f *fakeGraph) link(from, to string, beta float64) *fakeGraph {
	return f.add(graph.Edge{From: from, To: to, BaseBeta: ptr(beta)})
}

func (f *fakeGraph) Neighbors(_ context.Context, ticker string) ([]graph.Edge, error) {
	f.queries = append(f.queries, ticker)
	if f.fail[ticker] {
		return nil, errors.New("query timeout")
	}
	return f.edges[ticker], nil
}

func (f *fakeGraph) Node(_ context.Context, ticker string) (*graph.Node, error) {
	if f.fail[ticker] {
		return nil, errors.New("query timeout")
	}
	return f.nodes[ticker], nil
}

func ptr(f float64) *float64 { return &f }

func shockOf(ticker string, delta, vix float64) Shock {
	return Shock{Ticker: ticker, Delta: delta, Normalized: delta, BaseVIX: vix, VIX: vix}
}
