package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/irm/internal/graph"
	"github.com/sawpanic/irm/internal/net/circuit"
)

func TestHoldingKey(t *testing.T) {
	assert.Equal(t, "irm:portfolio:Admin:holdings:QQQM", HoldingKey("", "Admin", "QQQM"))
	assert.Equal(t, "x:Bob:holdings:NVDA", HoldingKey("x", "Bob", "NVDA"))
}

func TestRedisLedger_Lot(t *testing.T) {
	db, mock := redismock.NewClientMock()
	l := NewRedisLedger(db, "", time.Second, nil)
	ctx := context.Background()

	t.Run("fields_present", func(t *testing.T) {
		mock.ExpectHGetAll("irm:portfolio:Admin:holdings:QQQM").
			SetVal(map[string]string{"shares": "120", "avg_cost": "180.5"})

		lot, err := l.Lot(ctx, "Admin", "QQQM")
		require.NoError(t, err)
		assert.Equal(t, Lot{Shares: 120, AvgCost: 180.5}, lot)
	})

	t.Run("missing_hash_is_zero", func(t *testing.T) {
		mock.ExpectHGetAll("irm:portfolio:Admin:holdings:NVDA").SetVal(map[string]string{})

		lot, err := l.Lot(ctx, "Admin", "NVDA")
		require.NoError(t, err)
		assert.Equal(t, Lot{}, lot)
	})

	t.Run("garbage_field_is_zero", func(t *testing.T) {
		mock.ExpectHGetAll("irm:portfolio:Admin:holdings:TLT").
			SetVal(map[string]string{"shares": "ten", "avg_cost": "92"})

		lot, err := l.Lot(ctx, "Admin", "TLT")
		require.NoError(t, err)
		assert.Equal(t, Lot{Shares: 0, AvgCost: 92}, lot)
	})

	t.Run("redis_error", func(t *testing.T) {
		mock.ExpectHGetAll("irm:portfolio:Admin:holdings:GLD").SetErr(errors.New("LOADING"))

		_, err := l.Lot(ctx, "Admin", "GLD")
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

type recordingObserver struct {
	stores []string
	errs   int
}

func (o *recordingObserver) ObserveQuery(store string, _ time.Duration, err error) {
	o.stores = append(o.stores, store)
	if err != nil {
		o.errs++
	}
}

func TestRedisLedger_BreakerAndObserver(t *testing.T) {
	db, mock := redismock.NewClientMock()
	obs := &recordingObserver{}
	breaker := circuit.NewBreaker(circuit.Config{Name: "ledger", FailureThreshold: 2, Timeout: time.Minute})
	l := NewRedisLedger(db, "", time.Second, nil, WithBreaker(breaker), WithObserver(obs))
	ctx := context.Background()

	mock.ExpectHGetAll("irm:portfolio:Admin:holdings:QQQM").SetVal(map[string]string{"shares": "3"})
	failure := errors.New("connection refused")
	mock.ExpectHGetAll("irm:portfolio:Admin:holdings:NVDA").SetErr(failure)
	mock.ExpectHGetAll("irm:portfolio:Admin:holdings:NVDA").SetErr(failure)

	lot, err := l.Lot(ctx, "Admin", "QQQM")
	require.NoError(t, err)
	assert.Equal(t, 3.0, lot.Shares)

	for i := 0; i < 2; i++ {
		_, err = l.Lot(ctx, "Admin", "NVDA")
		assert.ErrorIs(t, err, failure)
	}
	assert.Equal(t, circuit.StateOpen, breaker.State())

	_, err = l.Lot(ctx, "Admin", "NVDA")
	assert.ErrorIs(t, err, circuit.ErrCircuitOpen)

	assert.Equal(t, []string{"ledger", "ledger", "ledger", "ledger"}, obs.stores)
	assert.Equal(t, 3, obs.errs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLedger_Lot(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()

	obs := &recordingObserver{}
	breaker := circuit.NewBreaker(circuit.Config{Name: "ledger", FailureThreshold: 5, Timeout: time.Minute})
	l := NewPostgresLedger(sqlx.NewDb(raw, "sqlmock"), time.Second, WithBreaker(breaker), WithObserver(obs))
	ctx := context.Background()

	mock.ExpectQuery(`SELECT shares, avg_cost\s+FROM portfolio_holdings`).
		WithArgs("Admin", "QQQM").
		WillReturnRows(sqlmock.NewRows([]string{"shares", "avg_cost"}).AddRow(10.0, 400.25))

	lot, err := l.Lot(ctx, "Admin", "QQQM")
	require.NoError(t, err)
	assert.Equal(t, Lot{Shares: 10, AvgCost: 400.25}, lot)

	mock.ExpectQuery(`SELECT shares, avg_cost\s+FROM portfolio_holdings`).
		WithArgs("Admin", "NONE").
		WillReturnRows(sqlmock.NewRows([]string{"shares", "avg_cost"}))

	lot, err = l.Lot(ctx, "Admin", "NONE")
	require.NoError(t, err)
	assert.Equal(t, Lot{}, lot)

	mock.ExpectQuery(`SELECT shares, avg_cost\s+FROM portfolio_holdings`).
		WithArgs("Admin", "ERR").
		WillReturnError(errors.New("relation does not exist"))

	_, err = l.Lot(ctx, "Admin", "ERR")
	assert.Error(t, err)

	// A missing row is not a failure.
	assert.Len(t, obs.stores, 3)
	assert.Equal(t, 1, obs.errs)
	assert.Equal(t, int64(1), breaker.Stats().TotalFailures)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakeWeights struct {
	weights []graph.Weight
	err     error
}

func (f fakeWeights) Weights(context.Context, string) ([]graph.Weight, error) {
	return f.weights, f.err
}

type fakeLedger map[string]Lot

func (f fakeLedger) Lot(_ context.Context, _ string, ticker string) (Lot, error) {
	if ticker == "BAD" {
		return Lot{}, errors.New("boom")
	}
	return f[ticker], nil
}

func TestBook_Holdings(t *testing.T) {
	book := NewBook(fakeWeights{weights: []graph.Weight{
		{Ticker: "qqqm", WeightPct: 0.30},
		{Ticker: "BAD", WeightPct: 0.10},
		{Ticker: "NVDA", WeightPct: 0.25},
		{Ticker: "QQQM", WeightPct: 0.35},
	}}, fakeLedger{"QQQM": {Shares: 5, AvgCost: 100}})

	holdings, err := book.Holdings(context.Background(), "Admin")
	require.NoError(t, err)
	require.Len(t, holdings, 3)

	assert.Equal(t, Holding{Ticker: "QQQM", WeightPct: 0.35, Shares: 5, AvgCost: 100}, holdings[0])
	assert.Equal(t, Holding{Ticker: "BAD", WeightPct: 0.10}, holdings[1])
	assert.Equal(t, "NVDA", holdings[2].Ticker)
}

func TestBook_WeightError(t *testing.T) {
	book := NewBook(fakeWeights{err: graph.ErrDisabled}, nil)
	_, err := book.Holdings(context.Background(), "Admin")
	assert.ErrorIs(t, err, graph.ErrDisabled)
}
