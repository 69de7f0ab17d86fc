// Package config loads the irm configuration: a YAML file layered under
// environment overrides and validated before use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/irm/internal/graph"
	"github.com/sawpanic/irm/internal/ledger"
	"github.com/sawpanic/irm/internal/regime"
	"github.com/sawpanic/irm/internal/tracer"
)

// DefaultPath is read when --config is not given.
const DefaultPath = "irm.yaml"

// Ledger backends
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config is the full application configuration.
type Config struct {
	Redis  RedisSection  `yaml:"redis"`
	Ledger LedgerSection `yaml:"ledger"`
	Limits LimitsSection `yaml:"limits"`
	Trace  TraceSection  `yaml:"trace"`
}

// RedisSection locates the FalkorDB/Redis server.
type RedisSection struct {
	URL         string        `yaml:"url"`
	Graph       string        `yaml:"graph"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// LedgerSection selects where share counts and cost basis are read from.
type LedgerSection struct {
	Backend   string                `yaml:"backend"`
	KeyPrefix string                `yaml:"key_prefix"`
	Postgres  ledger.PostgresConfig `yaml:"postgres"`
}

// LimitsSection bounds every store round trip.
type LimitsSection struct {
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	QPS             float64       `yaml:"qps"`
	Burst           int           `yaml:"burst"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// TraceSection holds the engine constants and the trace defaults.
type TraceSection struct {
	tracer.Params  `yaml:",inline"`
	RegimeTicker   string  `yaml:"regime_ticker"`
	RegimeFallback float64 `yaml:"regime_fallback"`
	DefaultOwner   string  `yaml:"default_owner"`
}

// Default returns the production configuration.
func Default() *Config {
	return &Config{
		Redis: RedisSection{
			URL:         "redis://localhost:6379",
			Graph:       graph.DefaultGraph,
			DialTimeout: 5 * time.Second,
		},
		Ledger: LedgerSection{
			Backend:   BackendRedis,
			KeyPrefix: ledger.DefaultKeyPrefix,
			Postgres:  ledger.DefaultPostgresConfig(),
		},
		Limits: LimitsSection{
			QueryTimeout:    5 * time.Second,
			QPS:             0,
			Burst:           1,
			BreakerFailures: 3,
			BreakerCooldown: 60 * time.Second,
		},
		Trace: TraceSection{
			Params:         tracer.DefaultParams(),
			RegimeTicker:   regime.DefaultTicker,
			RegimeFallback: regime.DefaultFallback,
			DefaultOwner:   "Admin",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. Malformed
// numeric values are rejected rather than ignored.
func applyEnvOverrides(cfg *Config) error {
	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis.URL = url
	}
	if name := os.Getenv("IRM_GRAPH"); name != "" {
		cfg.Redis.Graph = name
	}
	if backend := os.Getenv("IRM_LEDGER_BACKEND"); backend != "" {
		cfg.Ledger.Backend = strings.ToLower(backend)
	}
	if dsn := os.Getenv("PG_DSN"); dsn != "" {
		cfg.Ledger.Postgres.DSN = dsn
	}

	if timeout := os.Getenv("IRM_QUERY_TIMEOUT"); timeout != "" {
		val, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("IRM_QUERY_TIMEOUT: %w", err)
		}
		cfg.Limits.QueryTimeout = val
	}
	if qps := os.Getenv("IRM_QPS"); qps != "" {
		val, err := strconv.ParseFloat(qps, 64)
		if err != nil {
			return fmt.Errorf("IRM_QPS: %w", err)
		}
		cfg.Limits.QPS = val
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("redis url is required")
	}
	if c.Redis.Graph == "" {
		return fmt.Errorf("redis graph name is required")
	}
	if c.Redis.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be positive")
	}

	switch c.Ledger.Backend {
	case BackendRedis:
	case BackendPostgres:
		if c.Ledger.Postgres.DSN == "" {
			return fmt.Errorf("postgres DSN is required when the ledger backend is postgres")
		}
		if c.Ledger.Postgres.MaxIdleConns > c.Ledger.Postgres.MaxOpenConns {
			return fmt.Errorf("max_idle_conns cannot exceed max_open_conns")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend)
	}

	if c.Limits.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive")
	}
	if c.Limits.QPS < 0 {
		return fmt.Errorf("qps cannot be negative")
	}
	if c.Limits.BreakerFailures <= 0 {
		return fmt.Errorf("breaker_failures must be positive")
	}

	if c.Trace.DefaultOwner == "" {
		return fmt.Errorf("default_owner is required")
	}
	return c.Trace.Params.Validate()
}
