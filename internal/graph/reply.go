package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// Result is a decoded GRAPH.QUERY reply.
type Result struct {
	Header []string
	Rows   [][]interface{}
	Stats  []string
}

// Empty reports whether the query returned no rows.
func (r *Result) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// parseResult decodes the verbose reply shape. Queries with a RETURN clause
// answer [header, rows, stats]; write-only queries answer [stats].
func parseResult(raw interface{}) (*Result, error) {
	parts, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected reply type %T", raw)
	}

	res := &Result{}
	switch len(parts) {
	case 0:
		return res, nil
	case 1:
		res.Stats = stringList(parts[0])
		return res, nil
	case 3:
	default:
		return nil, fmt.Errorf("unexpected reply length %d", len(parts))
	}

	header, ok := parts[0].([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected header type %T", parts[0])
	}
	for _, col := range header {
		res.Header = append(res.Header, columnName(col))
	}

	rows, ok := parts[1].([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected rows type %T", parts[1])
	}
	for i, row := range rows {
		cells, ok := row.([]interface{})
		if !ok {
			return nil, fmt.Errorf("row %d: unexpected type %T", i, row)
		}
		res.Rows = append(res.Rows, cells)
	}

	res.Stats = stringList(parts[2])
	return res, nil
}

// columnName accepts both "name" and the compact [type, "name"] header form.
func columnName(col interface{}) string {
	if pair, ok := col.([]interface{}); ok && len(pair) > 0 {
		return asString(pair[len(pair)-1])
	}
	return asString(col)
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, asString(item))
	}
	return out
}

func asString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// asFloat returns nil for null or unparseable values.
func asFloat(v interface{}) *float64 {
	var f float64
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		f = t
	case int64:
		f = float64(t)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	case []byte:
		return asFloat(string(t))
	default:
		return nil
	}
	return &f
}

func asBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	default:
		return strings.EqualFold(asString(v), "true")
	}
}

func asStrings(v interface{}) []string {
	if items, ok := v.([]interface{}); ok {
		return stringList(items)
	}
	if s := asString(v); s != "" {
		return []string{s}
	}
	return nil
}

// cell returns row[i] or nil when the row is short.
func cell(row []interface{}, i int) interface{} {
	if i < len(row) {
		return row[i]
	}
	return nil
}
