package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avelinor/wagerbot/internal/domain"
	"github.com/redis/go-redis/v9"
)

const predictionTTL = 5 * time.Minute

// PredictionCache implements domain.PredictionCache using Redis hashes with
// JSON-serialized prediction data.
//
// Key schema:
//
//	prediction:{id} - hash with field "data" containing JSON
type PredictionCache struct {
	rdb *redis.Client
}

// NewPredictionCache creates a PredictionCache backed by the given Client.
func NewPredictionCache(c *Client) *PredictionCache {
	return &PredictionCache{rdb: c.Underlying()}
}

func predictionKey(id string) string { return "prediction:" + id }

// Set stores a prediction in the cache with a 5-minute TTL.
func (pc *PredictionCache) Set(ctx context.Context, p domain.Prediction) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("redis: marshal prediction %s: %w", p.ID, err)
	}

	key := predictionKey(p.ID)

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, predictionTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set prediction %s: %w", p.ID, err)
	}
	return nil
}

// Get retrieves a prediction by its ID from the cache.
// It returns domain.ErrNotFound when the key does not exist.
func (pc *PredictionCache) Get(ctx context.Context, id string) (domain.Prediction, error) {
	data, err := pc.rdb.HGet(ctx, predictionKey(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Prediction{}, domain.ErrNotFound
		}
		return domain.Prediction{}, fmt.Errorf("redis: get prediction %s: %w", id, err)
	}

	var p domain.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Prediction{}, fmt.Errorf("redis: unmarshal prediction %s: %w", id, err)
	}
	return p, nil
}

// Invalidate removes a prediction from the cache.
func (pc *PredictionCache) Invalidate(ctx context.Context, id string) error {
	if err := pc.rdb.Del(ctx, predictionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate prediction %s: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.PredictionCache = (*PredictionCache)(nil)
