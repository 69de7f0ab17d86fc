package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/irm/internal/config"
	"github.com/sawpanic/irm/internal/graph"
	"github.com/sawpanic/irm/internal/ledger"
	"github.com/sawpanic/irm/internal/metrics"
	"github.com/sawpanic/irm/internal/net/circuit"
	"github.com/sawpanic/irm/internal/net/ratelimit"
)

type fakeGraph struct {
	edges     map[string][]graph.Edge
	nodes     map[string]*graph.Node
	weights   map[string][]graph.Weight
	portfolio map[string]*graph.PortfolioInfo
	result    *graph.Result
	queries   []string
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		edges:     make(map[string][]graph.Edge),
		nodes:     make(map[string]*graph.Node),
		weights:   make(map[string][]graph.Weight),
		portfolio: make(map[string]*graph.PortfolioInfo),
	}
}

func (f *fakeGraph) Neighbors(_ context.Context, ticker string) ([]graph.Edge, error) {
	return f.edges[ticker], nil
}

func (f *fakeGraph) Node(_ context.Context, ticker string) (*graph.Node, error) {
	return f.nodes[ticker], nil
}

func (f *fakeGraph) Weights(_ context.Context, owner string) ([]graph.Weight, error) {
	return f.weights[owner], nil
}

func (f *fakeGraph) Portfolio(_ context.Context, owner string) (*graph.PortfolioInfo, error) {
	return f.portfolio[owner], nil
}

func (f *fakeGraph) Query(_ context.Context, cypher string) (*graph.Result, error) {
	f.queries = append(f.queries, cypher)
	if f.result == nil {
		return nil, errors.New("syntax error")
	}
	return f.result, nil
}

type fakeLedger map[string]ledger.Lot

func (l fakeLedger) Lot(_ context.Context, _, ticker string) (ledger.Lot, error) {
	return l[ticker], nil
}

func beta(v float64) *float64 { return &v }

// macroGraph: a 10% move in the 10y yield (4.5 -> +0.45pt) drives equities.
func macroGraph() *fakeGraph {
	g := newFakeGraph()
	g.nodes["US10Y"] = &graph.Node{ID: "US10Y", MetricType: graph.MetricRate, Value: beta(4.5)}
	g.nodes["VIX"] = &graph.Node{ID: "VIX", MetricType: graph.MetricVolatility, Value: beta(18)}
	g.edges["US10Y"] = []graph.Edge{
		{ID: "e1", From: "US10Y", To: "QQQ", Type: "PRESSURES", TargetLabel: "Asset", BaseBeta: beta(-4)},
	}
	g.edges["QQQ"] = []graph.Edge{
		{ID: "e2", From: "QQQ", To: "NVDA", Type: "DRIVES", TargetLabel: "Asset", BaseBeta: beta(1.5)},
	}
	g.weights["Admin"] = []graph.Weight{{Ticker: "NVDA", WeightPct: 0.5}, {Ticker: "TLT", WeightPct: 0.5}}
	g.portfolio["Admin"] = &graph.PortfolioInfo{Owner: "Admin", Name: "Core", Currency: "USD", TotalValue: 1000}
	return g
}

func testDeps(g graphReader) *deps {
	return &deps{
		cfg:     config.Default(),
		graph:   g,
		ledger:  fakeLedger{"NVDA": {Shares: 10, AvgCost: 100}},
		metrics: metrics.NewRegistry(),
	}
}

func TestRunTrace_Text(t *testing.T) {
	var out, errOut bytes.Buffer
	err := runTrace(context.Background(), testDeps(macroGraph()),
		traceOptions{ticker: "us10y", delta: 10}, &out, &errOut)
	require.NoError(t, err)

	// 0.45 * -4 * 0.8 = -1.44 ; -1.44 * 1.5 * 0.64 = -1.3824
	report := out.String()
	assert.Contains(t, report, "[*] Metric Correction: Converting 10% relative shock to 0.45 absolute point change (Source: rate)")
	assert.Contains(t, report, "[1] US10Y -> QQQ (PRESSURES ID:e1): -1.44%  (Asset)")
	assert.Contains(t, report, "[2] US10Y -> QQQ -> NVDA (DRIVES ID:e2): -1.3824%  (Asset)")
	assert.Contains(t, report, "NVDA  | Weight:  50.0% | Absolute Impact:   -1.38% | Weighted PNL Contribution:   -0.69%")
	assert.Contains(t, report, "TLT   | Weight:  50.0% | Absolute Impact:    0.00%")
	assert.Contains(t, report, "ESTIMATED TOTAL PORTFOLIO NAV SHOCK:   -0.69%")
	assert.Empty(t, errOut.String())
}

func TestRunTrace_JSONAndStats(t *testing.T) {
	var out, errOut bytes.Buffer
	err := runTrace(context.Background(), testDeps(macroGraph()),
		traceOptions{ticker: "US10Y", delta: 10, json: true, stats: true}, &out, &errOut)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Equal(t, "US10Y", doc["source"])
	assert.Equal(t, "Admin", doc["owner"])
	assert.InDelta(t, 0.45, doc["normalized_delta"], 1e-12)
	assert.Equal(t, 18.0, doc["vix"])
	assert.Len(t, doc["impacts"], 2)
	assert.Len(t, doc["exposures"], 2)
	assert.InDelta(t, -0.6912, doc["total"], 1e-9)
	assert.NotEmpty(t, doc["run_id"])

	assert.Contains(t, errOut.String(), "irm_traces_total")
	assert.Contains(t, errOut.String(), `{event="recorded"}`)
}

func TestRunTrace_StatsReportStores(t *testing.T) {
	d := testDeps(macroGraph())
	d.breakers = map[string]*circuit.Breaker{
		"graph":  newBreaker("graph", d.cfg.Limits),
		"ledger": newBreaker("ledger", d.cfg.Limits),
	}
	d.limiter = ratelimit.NewLimiter(50, 4)
	require.NoError(t, d.limiter.Wait(context.Background(), "graph"))
	_ = d.breakers["ledger"].Call(context.Background(), func(context.Context) error {
		return errors.New("connection refused")
	})

	var out, errOut bytes.Buffer
	err := runTrace(context.Background(), d,
		traceOptions{ticker: "US10Y", delta: 10, stats: true}, &out, &errOut)
	require.NoError(t, err)

	stats := errOut.String()
	assert.Regexp(t, `irm_breaker_healthy\s+\{store="graph"\}\s+1\n`, stats)
	assert.Regexp(t, `irm_breaker_healthy\s+\{store="ledger"\}\s+0\n`, stats)
	assert.Regexp(t, `irm_breaker_success_rate\s+\{store="ledger"\}\s+0\n`, stats)
	assert.Contains(t, stats, "irm_limiter_tokens_available")
}

func TestNewBreaker(t *testing.T) {
	fail := func(context.Context) error { return errors.New("connection refused") }

	defaults := newBreaker("graph", config.LimitsSection{})
	for i := 0; i < 2; i++ {
		_ = defaults.Call(context.Background(), fail)
	}
	assert.Equal(t, circuit.StateClosed, defaults.State(), "default threshold is three failures")
	_ = defaults.Call(context.Background(), fail)
	assert.Equal(t, circuit.StateOpen, defaults.State())

	strict := newBreaker("ledger", config.LimitsSection{BreakerFailures: 1, BreakerCooldown: time.Minute})
	_ = strict.Call(context.Background(), fail)
	assert.Equal(t, circuit.StateOpen, strict.State())
}

func TestRunTrace_EmptyPortfolio(t *testing.T) {
	var out bytes.Buffer
	err := runTrace(context.Background(), testDeps(macroGraph()),
		traceOptions{ticker: "US10Y", delta: 10, owner: "Nobody"}, &out, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "[!] Warning: Portfolio for 'Nobody' not found or empty.")
	assert.Contains(t, out.String(), "[2] US10Y -> QQQ -> NVDA")
	assert.Contains(t, out.String(), "ESTIMATED TOTAL PORTFOLIO NAV SHOCK:    0.00%")
}

func TestRunTrace_DisabledStore(t *testing.T) {
	var out bytes.Buffer
	err := runTrace(context.Background(), testDeps(graph.Disabled()),
		traceOptions{ticker: "SPY", delta: -5}, &out, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Contains(t, out.String(), "[!] Warning: Portfolio for 'Admin' not found or empty.")
	assert.Contains(t, out.String(), "Base VIX: 20")
	assert.Contains(t, out.String(), "ESTIMATED TOTAL PORTFOLIO NAV SHOCK:    0.00%")
}

func TestRunTrace_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := runTrace(ctx, testDeps(macroGraph()), traceOptions{ticker: "US10Y", delta: 10}, &out, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, out.String(), "ESTIMATED TOTAL PORTFOLIO NAV SHOCK")
}

func TestRunTrace_BlankTicker(t *testing.T) {
	err := runTrace(context.Background(), testDeps(macroGraph()), traceOptions{ticker: "  "}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunHoldings(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runHoldings(context.Background(), testDeps(macroGraph()), "", &out))

	assert.Contains(t, out.String(), "Portfolio: Core (owner Admin)")
	assert.Contains(t, out.String(), "NVDA     |           10 |       100.00 |    50.0%")
	assert.Contains(t, out.String(), "TOTAL    |              |              |   100.0%")
}

func TestRunQuery(t *testing.T) {
	g := macroGraph()
	g.result = &graph.Result{Header: []string{"a.value"}, Rows: [][]interface{}{{"18"}}}

	var out bytes.Buffer
	require.NoError(t, runQuery(context.Background(), testDeps(g), "MATCH (a) RETURN a.value", &out))
	assert.Equal(t, []string{"MATCH (a) RETURN a.value"}, g.queries)
	assert.True(t, strings.HasPrefix(out.String(), "a.value\n"))
	assert.Contains(t, out.String(), "(1 rows)")

	g.result = nil
	assert.Error(t, runQuery(context.Background(), testDeps(g), "MATCH", &bytes.Buffer{}))
}

func TestOpenDeps(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.URL = "http://not-redis"
	_, err := openDeps(context.Background(), cfg)
	assert.Error(t, err, "malformed URLs are fatal")

	cfg = config.Default()
	cfg.Redis.URL = "redis://127.0.0.1:1"
	cfg.Redis.DialTimeout = 200 * time.Millisecond
	d, err := openDeps(context.Background(), cfg)
	require.NoError(t, err, "unreachable servers downgrade instead of failing")
	defer d.Close()

	store, ok := d.graph.(*graph.Store)
	require.True(t, ok)
	assert.False(t, store.Enabled())
	assert.Equal(t, ledger.Empty{}, d.ledger)
	assert.NotNil(t, d.limiter)
	assert.Empty(t, d.breakers, "no breakers without a live connection")
}

func TestCommandTree(t *testing.T) {
	testCases := []struct {
		args   []string
		expect []string
	}{
		{[]string{"--help"}, []string{"trace", "holdings", "query", "--config", "--log-level"}},
		{[]string{"trace", "--help"}, []string{"--ticker", "--delta", "--owner", "--json", "--stats", "--breakdown"}},
		{[]string{"holdings", "--help"}, []string{"--owner"}},
	}

	for _, tc := range testCases {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			root := newRootCmd()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&out)
			root.SetArgs(tc.args)
			require.NoError(t, root.Execute())
			for _, want := range tc.expect {
				assert.Contains(t, out.String(), want)
			}
		})
	}

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"trace"})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ticker"`)
}

func TestTraceOptionsFrom(t *testing.T) {
	cmd := newTraceCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--ticker", "VIX", "--delta=-12.5", "--json", "--breakdown"}))

	opts := traceOptionsFrom(cmd.Flags())
	assert.Equal(t, "VIX", opts.ticker)
	assert.Equal(t, -12.5, opts.delta)
	assert.Equal(t, "", opts.owner)
	assert.True(t, opts.json)
	assert.True(t, opts.breakdown)
	assert.False(t, opts.stats)

	require.NoError(t, cmd.ParseFlags(nil))
	assert.Equal(t, 1.0, traceOptionsFrom(newTraceCmd().Flags()).delta)
}
