package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/donaldgifford/meli-harvester/internal/sink"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// SnapshotCache stores the latest extraction result under one key with a TTL.
type SnapshotCache struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache. A zero ttl keeps the key forever.
func NewSnapshotCache(rdb redis.Cmdable, key string, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{rdb: rdb, key: key, ttl: ttl}
}

// Save replaces the cached snapshot.
func (c *SnapshotCache) Save(ctx context.Context, result *domain.ExtractionResult) error {
	const op = "cache.SnapshotCache.Save"

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.rdb.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Latest returns the cached snapshot, or sink.ErrNoResult once it expired.
func (c *SnapshotCache) Latest(ctx context.Context) (*domain.ExtractionResult, error) {
	const op = "cache.SnapshotCache.Latest"

	data, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sink.ErrNoResult
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result domain.ExtractionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &result, nil
}
