package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	CatalogKeyPrefix = "catalog:v:"
	CatalogVersion   = "catalog:version"
	DefaultTTL       = 10 * time.Minute
)

// CatalogCache caches catalog projections under a versioned key. Bumping the
// version orphans every cached entry at once; orphans expire by TTL.
// A nil *CatalogCache is valid and always misses.
type CatalogCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCatalogCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogCache{redis: rdb, ttl: ttl, logger: logger}
}

// Get decodes the entry stored under name into dst and reports a hit.
func (c *CatalogCache) Get(ctx context.Context, name string, dst interface{}) bool {
	if c == nil {
		return false
	}
	version, err := c.version(ctx)
	if err != nil {
		c.logger.Debug("catalog cache unavailable", zap.Error(err))
		return false
	}

	raw, err := c.redis.Get(ctx, c.key(version, name)).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("failed to decode cached catalog entry", zap.String("name", name), zap.Error(err))
		return false
	}
	return true
}

// Set stores v under name for the current version. Failures are logged only.
func (c *CatalogCache) Set(ctx context.Context, name string, v interface{}) {
	if c == nil {
		return
	}
	version, err := c.version(ctx)
	if err != nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("failed to encode catalog entry", zap.String("name", name), zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, c.key(version, name), payload, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache catalog entry", zap.String("name", name), zap.Error(err))
	}
}

// Invalidate bumps the catalog version.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if c == nil {
		return nil
	}
	v, err := c.redis.Incr(ctx, CatalogVersion).Result()
	if err != nil {
		return fmt.Errorf("failed to invalidate catalog cache: %w", err)
	}
	c.logger.Debug("catalog cache invalidated", zap.Int64("version", v))
	return nil
}

func (c *CatalogCache) version(ctx context.Context) (int64, error) {
	v, err := c.redis.Get(ctx, CatalogVersion).Int64()
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, err
	}
	// SETNX so two first readers agree on the initial version.
	if err := c.redis.SetNX(ctx, CatalogVersion, 1, 0).Err(); err != nil {
		return 0, err
	}
	return c.redis.Get(ctx, CatalogVersion).Int64()
}

func (c *CatalogCache) key(version int64, name string) string {
	return fmt.Sprintf("%s%d:%s", CatalogKeyPrefix, version, name)
}
