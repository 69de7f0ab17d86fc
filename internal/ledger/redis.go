package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sawpanic/irm/internal/net/ratelimit"
)

// RedisLedger reads holdings hashes with fields "shares" and "avg_cost".
type RedisLedger struct {
	client  redis.Cmdable
	prefix  string
	limiter *ratelimit.Limiter
	guard   guard
}

// NewRedisLedger creates a ledger over client. A zero timeout means the
// caller's context alone bounds each read.
func NewRedisLedger(client redis.Cmdable, prefix string, timeout time.Duration, limiter *ratelimit.Limiter, opts ...Option) *RedisLedger {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisLedger{client: client, prefix: prefix, limiter: limiter, guard: newGuard(timeout, opts)}
}

// Lot reads one holdings hash. Fields that are absent or unparseable read as 0.
func (l *RedisLedger) Lot(ctx context.Context, owner, ticker string) (Lot, error) {
	if err := l.limiter.Wait(ctx, storeName); err != nil {
		return Lot{}, fmt.Errorf("ledger read throttled: %w", err)
	}

	key := HoldingKey(l.prefix, owner, ticker)
	var fields map[string]string
	err := l.guard.do(ctx, func(ctx context.Context) error {
		var err error
		fields, err = l.client.HGetAll(ctx, key).Result()
		return err
	})
	if err != nil {
		return Lot{}, fmt.Errorf("read %s: %w", key, err)
	}

	return Lot{
		Shares:  parseField(fields, "shares"),
		AvgCost: parseField(fields, "avg_cost"),
	}, nil
}

func parseField(fields map[string]string, name string) float64 {
	v, err := strconv.ParseFloat(fields[name], 64)
	if err != nil {
		return 0
	}
	return v
}
