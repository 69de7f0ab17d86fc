package report

import (
	"fmt"
	"strings"

	"github.com/sawpanic/irm/internal/graph"
)

// Query prints a raw query result: header, rows, then server statistics.
func (w *Writer) Query(res *graph.Result) error {
	if len(res.Header) > 0 {
		w.printf("%s\n", strings.Join(res.Header, " | "))
		w.rule("-")
	}
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = formatCell(c)
		}
		w.printf("%s\n", strings.Join(cells, " | "))
	}
	if len(res.Header) > 0 {
		w.printf("(%d rows)\n", len(res.Rows))
	}
	for _, s := range res.Stats {
		w.printf("%s\n", s)
	}
	return w.err
}

func formatCell(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return "null"
	case []interface{}:
		parts := make([]string, len(c))
		for i, e := range c {
			parts[i] = formatCell(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(c)
	}
}
