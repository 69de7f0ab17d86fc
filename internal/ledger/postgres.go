package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresConfig holds database connection configuration
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
}

// DefaultPostgresConfig returns reasonable defaults for a CLI-sized pool
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    5 * time.Second,
	}
}

const lotQuery = `
	SELECT shares, avg_cost
	FROM portfolio_holdings
	WHERE owner = $1 AND ticker = $2`

// PostgresLedger reads lots from the portfolio_holdings table.
type PostgresLedger struct {
	db    *sqlx.DB
	guard guard
}

// NewPostgresLedger wraps an open connection.
func NewPostgresLedger(db *sqlx.DB, timeout time.Duration, opts ...Option) *PostgresLedger {
	return &PostgresLedger{db: db, guard: newGuard(timeout, opts)}
}

// OpenPostgres connects and pings the database.
func OpenPostgres(ctx context.Context, config PostgresConfig, opts ...Option) (*PostgresLedger, error) {
	if config.DSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sqlx.Open("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewPostgresLedger(db, config.QueryTimeout, opts...), nil
}

// Lot returns the stored lot, or a zero lot when the row does not exist.
func (l *PostgresLedger) Lot(ctx context.Context, owner, ticker string) (Lot, error) {
	var lot Lot
	err := l.guard.do(ctx, func(ctx context.Context) error {
		err := l.db.QueryRowxContext(ctx, lotQuery, owner, ticker).StructScan(&lot)
		if errors.Is(err, sql.ErrNoRows) {
			lot = Lot{}
			return nil
		}
		return err
	})
	if err != nil {
		return Lot{}, fmt.Errorf("failed to read lot %s/%s: %w", owner, ticker, err)
	}
	return lot, nil
}

// Close closes the database connection
func (l *PostgresLedger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}
