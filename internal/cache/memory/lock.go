// Package memory implements the cache capability interfaces in process
// memory. It backs tests and the single-node mode that runs without Redis;
// deployments that share state across processes use the redis package
// instead.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/avelinor/wagerbot/internal/domain"
)

// LockManager implements domain.LockManager with an in-process mutex table.
type LockManager struct {
	mu    sync.Mutex
	held  map[string]time.Time // key -> expiry
	clock func() time.Time
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

// Acquire obtains the lock for key if it is free or its TTL has lapsed. It
// returns domain.ErrLockHeld when another holder has it. The returned unlock
// function is safe to call multiple times.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.clock()
	if expiry, ok := lm.held[key]; ok && expiry.After(now) {
		return nil, domain.ErrLockHeld
	}
	lm.held[key] = now.Add(ttl)

	released := false
	unlock := func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		if released {
			return
		}
		released = true
		delete(lm.held, key)
	}
	return unlock, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
