package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter provides per-store query rate limiting using token bucket algorithm.
// A non-positive rate disables limiting.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	qps      float64 // Queries per second
	burst    int     // Burst capacity
}

// NewLimiter creates a new rate limiter with the specified QPS and burst capacity
func NewLimiter(qps float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		qps:      qps,
		burst:    burst,
	}
}

// getLimiter returns or creates a rate limiter for the specified store
func (l *Limiter) getLimiter(store string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[store]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[store]; exists {
		return limiter
	}

	limit := rate.Inf
	if l.qps > 0 {
		limit = rate.Limit(l.qps)
	}
	limiter = rate.NewLimiter(limit, l.burst)
	l.limiters[store] = limiter
	return limiter
}

// Wait blocks until a query against the specified store is allowed or ctx is cancelled
func (l *Limiter) Wait(ctx context.Context, store string) error {
	if l == nil {
		return nil
	}
	return l.getLimiter(store).Wait(ctx)
}

// Stats returns the configured limit and available tokens per store
func (l *Limiter) Stats() map[string]LimiterStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make(map[string]LimiterStats, len(l.limiters))
	for store, limiter := range l.limiters {
		stats[store] = LimiterStats{
			Store:           store,
			QPS:             float64(limiter.Limit()),
			Burst:           limiter.Burst(),
			TokensAvailable: limiter.Tokens(),
		}
	}
	return stats
}

// LimiterStats represents statistics for a single store limiter
type LimiterStats struct {
	Store           string  `json:"store"`
	QPS             float64 `json:"qps"`
	Burst           int     `json:"burst"`
	TokensAvailable float64 `json:"tokens_available"`
}
