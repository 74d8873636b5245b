package population

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"multiverse-server/internal/cosmos"

	"github.com/redis/go-redis/v9"
)

const statisticsKeyPrefix = "multiverse:statistics:"

// RedisCache stores statistics as JSON strings with a fixed TTL.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "statistics_cache"),
	}
}

func statisticsKey(id string) string {
	return statisticsKeyPrefix + id
}

func (c *RedisCache) GetStatistics(ctx context.Context, id string) (*cosmos.Statistics, bool, error) {
	data, err := c.client.Get(ctx, statisticsKey(id)).Bytes()
	if err != nil {
		if stderrors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cached statistics: %w", err)
	}

	var stats cosmos.Statistics
	if err := json.Unmarshal(data, &stats); err != nil {
		c.logger.Warn("Discarding malformed cached statistics", "population_id", id, "error", err)
		return nil, false, nil
	}
	return &stats, true, nil
}

func (c *RedisCache) SetStatistics(ctx context.Context, id string, stats *cosmos.Statistics) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode statistics: %w", err)
	}
	if err := c.client.Set(ctx, statisticsKey(id), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache statistics: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, statisticsKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate statistics: %w", err)
	}
	return nil
}

// MemoryCache is the in-process fallback used when Redis is disabled.
type MemoryCache struct {
	mu    sync.RWMutex
	stats map[string]cosmos.Statistics
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{stats: make(map[string]cosmos.Statistics)}
}

func (c *MemoryCache) GetStatistics(_ context.Context, id string) (*cosmos.Statistics, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats, ok := c.stats[id]
	if !ok {
		return nil, false, nil
	}
	return &stats, true, nil
}

func (c *MemoryCache) SetStatistics(_ context.Context, id string, stats *cosmos.Statistics) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats[id] = *stats
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.stats, id)
	return nil
}
