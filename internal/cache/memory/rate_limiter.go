package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avelinor/wagerbot/internal/domain"
)

const waitPollInterval = 50 * time.Millisecond

// RateLimiter implements domain.RateLimiter with an in-process sliding
// window per key.
type RateLimiter struct {
	mu    sync.Mutex
	hits  map[string][]time.Time
	clock func() time.Time
}

// NewRateLimiter creates an empty RateLimiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		hits:  make(map[string][]time.Time),
		clock: time.Now,
	}
}

// Allow reports whether a request for key is permitted under the sliding
// window, counting it if so.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock()
	cutoff := now.Add(-window)

	kept := rl.hits[key][:0]
	for _, t := range rl.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		rl.hits[key] = kept
		return false, nil
	}

	rl.hits[key] = append(kept, now)
	return true, nil
}

// Wait blocks until a request for key is allowed at a default rate of one
// per second, honouring context cancellation.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("memory: rate limit wait %s: %w", key, ctx.Err())
		default:
		}

		allowed, err := rl.Allow(ctx, key, 1, time.Second)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		timer := time.NewTimer(waitPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("memory: rate limit wait %s: %w", key, ctx.Err())
		case <-timer.C:
		}
	}
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
