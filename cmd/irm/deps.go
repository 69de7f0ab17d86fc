package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/irm/internal/config"
	"github.com/sawpanic/irm/internal/graph"
	"github.com/sawpanic/irm/internal/ledger"
	"github.com/sawpanic/irm/internal/metrics"
	"github.com/sawpanic/irm/internal/net/circuit"
	"github.com/sawpanic/irm/internal/net/ratelimit"
)

// graphReader is what the commands need from the graph store.
type graphReader interface {
	Neighbors(ctx context.Context, ticker string) ([]graph.Edge, error)
	Node(ctx context.Context, ticker string) (*graph.Node, error)
	Weights(ctx context.Context, owner string) ([]graph.Weight, error)
	Portfolio(ctx context.Context, owner string) (*graph.PortfolioInfo, error)
	Query(ctx context.Context, cypher string) (*graph.Result, error)
}

// deps are the stores and instruments shared by every command.
type deps struct {
	cfg      *config.Config
	graph    graphReader
	ledger   ledger.Ledger
	metrics  *metrics.Registry
	breakers map[string]*circuit.Breaker
	limiter  *ratelimit.Limiter
	closers  []func() error
}

// observeStores copies breaker and limiter state into the registry.
func (d *deps) observeStores() {
	for name, b := range d.breakers {
		d.metrics.ObserveBreaker(name, b.Stats())
	}
	if d.limiter != nil {
		d.metrics.ObserveLimiter(d.limiter.Stats())
	}
}

// newBreaker starts from the store defaults and applies the configured limits.
func newBreaker(name string, limits config.LimitsSection) *circuit.Breaker {
	bc := circuit.DefaultConfig(name)
	if limits.BreakerFailures > 0 {
		bc.FailureThreshold = limits.BreakerFailures
	}
	if limits.BreakerCooldown > 0 {
		bc.Timeout = limits.BreakerCooldown
	}
	if limits.QueryTimeout > 0 {
		bc.RequestTimeout = limits.QueryTimeout
	}
	return circuit.NewBreaker(bc)
}

func (d *deps) Close() {
	for _, c := range d.closers {
		if err := c(); err != nil {
			log.Debug().Err(err).Msg("close failed")
		}
	}
}

// loadDeps reads the configuration named by --config and connects the stores.
func loadDeps(cmd *cobra.Command) (*deps, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return openDeps(cmd.Context(), cfg)
}

// openDeps connects the stores. A malformed URL is fatal; a server that
// cannot be reached leaves the store disabled and the trace runs empty.
func openDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL %q: %w", config.Redact(cfg.Redis.URL), err)
	}
	opts.DialTimeout = cfg.Redis.DialTimeout

	d := &deps{
		cfg:      cfg,
		metrics:  metrics.NewRegistry(),
		ledger:   ledger.Empty{},
		breakers: make(map[string]*circuit.Breaker),
		limiter:  ratelimit.NewLimiter(cfg.Limits.QPS, cfg.Limits.Burst),
	}

	client := redis.NewClient(opts)
	d.closers = append(d.closers, client.Close)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", opts.Addr).Msg("graph database unreachable, running with no graph data")
		d.graph = graph.Disabled()
		return d, nil
	}

	d.breakers["graph"] = newBreaker("graph", cfg.Limits)
	d.breakers["ledger"] = newBreaker("ledger", cfg.Limits)
	d.graph = graph.NewStore(client, cfg.Redis.Graph,
		graph.WithBreaker(d.breakers["graph"]),
		graph.WithLimiter(d.limiter),
		graph.WithObserver(d.metrics),
	)
	ledgerOpts := []ledger.Option{
		ledger.WithBreaker(d.breakers["ledger"]),
		ledger.WithObserver(d.metrics),
	}

	switch cfg.Ledger.Backend {
	case config.BackendPostgres:
		pg, err := ledger.OpenPostgres(ctx, cfg.Ledger.Postgres, ledgerOpts...)
		if err != nil {
			log.Warn().Err(err).Str("dsn", config.Redact(cfg.Ledger.Postgres.DSN)).
				Msg("postgres ledger unavailable, share counts will read as zero")
			break
		}
		d.ledger = pg
		d.closers = append(d.closers, pg.Close)
	default:
		d.ledger = ledger.NewRedisLedger(client, cfg.Ledger.KeyPrefix, cfg.Limits.QueryTimeout, d.limiter, ledgerOpts...)
	}

	log.Debug().Str("graph", cfg.Redis.Graph).Str("ledger", cfg.Ledger.Backend).
		Dur("query_timeout", cfg.Limits.QueryTimeout).Msg("stores connected")
	return d, nil
}

// commandContext is cancelled on interrupt so a long trace stops cleanly
// with the impacts found so far.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
