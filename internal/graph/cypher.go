package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Params are bound through FalkorDB's "CYPHER k=v" query prefix.
type Params map[string]interface{}

// withParams prefixes query with its parameters in a stable key order.
func withParams(query string, params Params) string {
	if len(params) == 0 {
		return query
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("CYPHER")
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, literal(params[k]))
	}
	b.WriteByte(' ')
	b.WriteString(query)
	return b.String()
}

func literal(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strconv.Quote(fmt.Sprint(t))
	}
}

const neighborsQuery = "MATCH (n)-[r]->(m) WHERE toUpper(COALESCE(n.ticker, n.name)) = $ticker " +
	"RETURN COALESCE(m.ticker, m.name), type(r), r.base_beta, r.gamma_sensitive, " +
	"labels(m)[0], m.percentile, r.modifier_metric, r.threshold_config, n.percentile, " +
	"m.pe_percentile, m.erp_percentile, r.id"

const nodeQuery = "MATCH (n) WHERE toUpper(COALESCE(n.ticker, n.name)) = $ticker " +
	"RETURN COALESCE(n.ticker, n.name), labels(n), n.metric_type, n.value, " +
	"n.percentile, n.pe_percentile, n.erp_percentile LIMIT 1"

const weightsQuery = "MATCH (p:Portfolio {owner: $owner})-[r:HOLDS]->(m) RETURN m.ticker, r.weight_pct"

const portfolioQuery = "MATCH (p:Portfolio {owner: $owner}) " +
	"RETURN p.name, p.strategy, p.total_value, p.currency LIMIT 1"

// NeighborsQuery is the outgoing-edge lookup for ticker.
func NeighborsQuery(ticker string) string {
	return withParams(neighborsQuery, Params{"ticker": Canonical(ticker)})
}

// NodeQuery is the single node lookup for ticker.
func NodeQuery(ticker string) string {
	return withParams(nodeQuery, Params{"ticker": Canonical(ticker)})
}

// WeightsQuery lists the HOLDS edges of owner's portfolio.
func WeightsQuery(owner string) string {
	return withParams(weightsQuery, Params{"owner": owner})
}

// PortfolioQuery reads the header of owner's portfolio.
func PortfolioQuery(owner string) string {
	return withParams(portfolioQuery, Params{"owner": owner})
}
