package ledger

import (
	"context"
	"time"

	"github.com/sawpanic/irm/internal/graph"
	"github.com/sawpanic/irm/internal/net/circuit"
)

const storeName = "ledger"

// guard bounds, breaks and reports every ledger read.
type guard struct {
	timeout  time.Duration
	breaker  *circuit.Breaker
	observer graph.QueryObserver
}

// Option configures a ledger backend.
type Option func(*guard)

// WithBreaker routes every read through b.
func WithBreaker(b *circuit.Breaker) Option {
	return func(g *guard) { g.breaker = b }
}

// WithObserver reports read latency and outcome to o under the "ledger" store.
func WithObserver(o graph.QueryObserver) Option {
	return func(g *guard) { g.observer = o }
}

func newGuard(timeout time.Duration, opts []Option) guard {
	g := guard{timeout: timeout}
	for _, opt := range opts {
		opt(&g)
	}
	return g
}

func (g guard) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	var err error
	if g.breaker != nil {
		err = g.breaker.Call(ctx, fn)
	} else {
		err = fn(ctx)
	}
	if g.observer != nil {
		g.observer.ObserveQuery(storeName, time.Since(start), err)
	}
	return err
}
