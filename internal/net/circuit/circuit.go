package circuit

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrRequestTimeout is returned when a request times out
	ErrRequestTimeout = errors.New("request timeout")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Circuit is closed, requests allowed
	StateOpen                  // Circuit is open, requests blocked
	StateHalfOpen              // Circuit is half-open, limited requests allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config represents circuit breaker configuration
type Config struct {
	Name             string
	FailureThreshold int           // Consecutive failures to open circuit
	SuccessThreshold int           // Requests allowed through while half-open
	Timeout          time.Duration // Time to wait before transitioning to half-open
	RequestTimeout   time.Duration // Individual request timeout
}

// DefaultConfig mirrors the store defaults: three strikes, one minute cool-down.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          60 * time.Second,
		RequestTimeout:   5 * time.Second,
	}
}

// Breaker guards calls to a single backing store.
type Breaker struct {
	config Config
	cb     *gobreaker.CircuitBreaker
}

// NewBreaker creates a new circuit breaker with the specified configuration
func NewBreaker(config Config) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 3
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}

	st := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: uint32(config.SuccessThreshold),
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.FailureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &Breaker{config: config, cb: gobreaker.NewCircuitBreaker(st)}
}

// Call executes fn if the breaker allows it. fn receives a context bounded by
// RequestTimeout; a deadline hit inside fn is reported as ErrRequestTimeout.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	callCtx := ctx
	if b.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.config.RequestTimeout)
		defer cancel()
	}

	_, err := b.cb.Execute(func() (interface{}, error) {
		err := fn(callCtx)
		if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrRequestTimeout
		}
		return nil, err
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns the current circuit breaker state
func (b *Breaker) State() State {
	switch b.cb.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Stats returns current circuit breaker statistics
func (b *Breaker) Stats() Stats {
	counts := b.cb.Counts()

	successRate := float64(0)
	if counts.Requests > 0 {
		successRate = float64(counts.TotalSuccesses) / float64(counts.Requests)
	}

	return Stats{
		State:               b.State(),
		TotalRequests:       int64(counts.Requests),
		TotalSuccesses:      int64(counts.TotalSuccesses),
		TotalFailures:       int64(counts.TotalFailures),
		ConsecutiveFailures: int(counts.ConsecutiveFailures),
		SuccessRate:         successRate,
	}
}

// Stats represents circuit breaker statistics
type Stats struct {
	State               State   `json:"state"`
	TotalRequests       int64   `json:"total_requests"`
	TotalSuccesses      int64   `json:"total_successes"`
	TotalFailures       int64   `json:"total_failures"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	SuccessRate         float64 `json:"success_rate"`
}

// IsHealthy returns true if the circuit breaker indicates healthy service
func (s *Stats) IsHealthy() bool {
	return s.State == StateClosed && (s.TotalRequests == 0 || s.SuccessRate >= 0.9)
}
