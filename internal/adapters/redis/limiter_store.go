package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimiterStore backs the rate limiter with shared counters so every
// instance enforces the same budgets.
type LimiterStore struct {
	client *redis.Client
}

func NewLimiterStore(client *redis.Client) *LimiterStore {
	return &LimiterStore{client: client}
}

// IncrWindow bumps the window counter, starting the window on first use,
// and returns the new count with the time left in the window.
func (s *LimiterStore) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	remaining := ttl.Val()
	if remaining < 0 {
		remaining = window
	}
	return incr.Val(), remaining, nil
}

func (s *LimiterStore) SetPenalty(ctx context.Context, key string, ttl time.Duration) error {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	return s.client.Set(ctx, key, 1, ttl).Err()
}

// PenaltyTTL returns the remaining penalty, or zero when none is active.
func (s *LimiterStore) PenaltyTTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
