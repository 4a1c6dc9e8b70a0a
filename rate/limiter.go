package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps any Redis transport failure or timeout.
var ErrStoreUnavailable = errors.New("rate limit store unavailable")

const keyPrefix = "ratelimit:"

const defaultTimeout = 3 * time.Second

// Result reports the state of a fixed window after one increment.
type Result struct {
	Count     int64
	Remaining int64
}

// Limiter maintains fixed-window counters keyed by caller+action. It is
// safe for concurrent use.
type Limiter struct {
	redis   redis.UniversalClient
	timeout time.Duration
}

// New creates a Limiter over the given Redis client. timeout bounds every
// Redis call; zero or negative selects a 3s default.
func New(client redis.UniversalClient, timeout time.Duration) *Limiter {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Limiter{redis: client, timeout: timeout}
}

// Allow atomically increments the counter for key and returns the current
// count plus the remaining budget, never less than zero. It does not
// reject; callers compare Remaining against their policy.
func (l *Limiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (Result, error) {
	if key == "" {
		return Result{}, errors.New("empty rate limit key")
	}
	if limit <= 0 || window <= 0 {
		return Result{}, errors.New("invalid rate limit parameters")
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	counterKey := keyPrefix + key
	count, err := l.redis.Incr(ctx, counterKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, counterKey, window).Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{Count: count, Remaining: remaining}, nil
}

// Reset clears the counter for key. Used after a successful recovery action
// so the caller starts a fresh window.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.redis.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
