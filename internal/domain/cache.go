package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides the per-prediction mutual-exclusion scope that
// serializes state transitions. The lock is held for the duration of a
// transition decision, never across settlement transfers.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// PredictionCache is a short-TTL read cache in front of the prediction store.
// Writers invalidate on every lifecycle transition, so a stale entry can only
// lag by the TTL on reads that race a transition.
type PredictionCache interface {
	Set(ctx context.Context, p Prediction) error
	Get(ctx context.Context, id string) (Prediction, error)
	Invalidate(ctx context.Context, id string) error
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams. Market lifecycle events
// (bet placed, locked, resolved, refunded) are published here and fanned out
// to WebSocket clients.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
