// Package report renders traces, portfolios and raw query results for the
// terminal.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

const (
	ansiRed    = "\033[91m"
	ansiYellow = "\033[93m"
	ansiGreen  = "\033[92m"
	ansiReset  = "\033[0m"

	ruleWidth = 66
)

// Options control text rendering.
type Options struct {
	Color     bool // ANSI colour on impact values
	Breakdown bool // append beta, mu, gamma and decay to every edge line
}

// Writer renders reports to an output stream.
type Writer struct {
	out  io.Writer
	opts Options
	err  error
}

// NewWriter creates a report writer.
func NewWriter(out io.Writer, opts Options) *Writer {
	return &Writer{out: out, opts: opts}
}

// ColorEnabled reports whether f is a terminal that should get colour.
func ColorEnabled(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// printf writes and remembers the first failure; later writes are no-ops.
func (w *Writer) printf(format string, args ...interface{}) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.out, format, args...)
}

func (w *Writer) rule(ch string) {
	w.printf("%s\n", strings.Repeat(ch, ruleWidth))
}

// colorize wraps s in the colour band of v: red below -5, yellow below 0,
// green above 0.
func (w *Writer) colorize(v float64, s string) string {
	if !w.opts.Color {
		return s
	}
	code := ansiReset
	switch {
	case v < -5:
		code = ansiRed
	case v < 0:
		code = ansiYellow
	case v > 0:
		code = ansiGreen
	}
	return code + s + ansiReset
}

// round renders v to places decimals with trailing zeros trimmed.
func round(v float64, places int32) string {
	return decimal.NewFromFloat(v).Round(places).String()
}

// fixed renders v with exactly places decimals.
func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// pad right-aligns s in width columns.
func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}
