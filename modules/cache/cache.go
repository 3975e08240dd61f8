// Package cache provides a Redis cache-aside layer for per-owner task
// statistics.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	domain "github.com/example/task-tracker/domain/task"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Cache stores task statistics in Redis. Failures are logged and counted,
// then reported as a miss so callers fall back to the store.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger types.Logger
	stats  *Stats
}

// Stats tracks cache statistics.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Sets          uint64 `json:"sets"`
	Invalidations uint64 `json:"invalidations"`
	Errors        uint64 `json:"errors"`
}

// StatsSnapshot returns a snapshot of the current statistics.
type StatsSnapshot struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Sets          uint64  `json:"sets"`
	Invalidations uint64  `json:"invalidations"`
	Errors        uint64  `json:"errors"`
	HitRate       float64 `json:"hit_rate"`
	TotalGets     uint64  `json:"total_gets"`
}

// New creates a cache over client. A nil client gives a cache that always
// misses.
func New(client *redis.Client, prefix string, ttl time.Duration, logger types.Logger) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
		stats:  &Stats{},
	}
}

// Key returns the Redis key holding ownerID's statistics.
func (c *Cache) Key(ownerID string) string {
	return c.prefix + "stats:" + ownerID
}

// Get returns the cached statistics for ownerID.
func (c *Cache) Get(ctx context.Context, ownerID string) (*domain.Stats, bool) {
	if c.client == nil {
		atomic.AddUint64(&c.stats.Misses, 1)
		return nil, false
	}

	data, err := c.client.Get(ctx, c.Key(ownerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddUint64(&c.stats.Misses, 1)
			return nil, false
		}
		c.fail("cache get failed", ownerID, err)
		return nil, false
	}

	var st domain.Stats
	if err := json.Unmarshal(data, &st); err != nil {
		c.fail("cache unmarshal failed", ownerID, err)
		return nil, false
	}

	atomic.AddUint64(&c.stats.Hits, 1)
	return &st, true
}

// Set stores st for ownerID for the configured TTL, or for maxAge when that
// is shorter.
func (c *Cache) Set(ctx context.Context, ownerID string, st *domain.Stats, maxAge time.Duration) {
	if c.client == nil || st == nil {
		return
	}
	ttl := c.ttl
	if maxAge > 0 && maxAge < ttl {
		ttl = maxAge
	}

	data, err := json.Marshal(st)
	if err != nil {
		c.fail("cache marshal failed", ownerID, err)
		return
	}
	if err := c.client.Set(ctx, c.Key(ownerID), data, ttl).Err(); err != nil {
		c.fail("cache set failed", ownerID, err)
		return
	}
	atomic.AddUint64(&c.stats.Sets, 1)
}

// Invalidate drops the cached statistics for ownerID.
func (c *Cache) Invalidate(ctx context.Context, ownerID string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, c.Key(ownerID)).Err(); err != nil {
		c.fail("cache invalidate failed", ownerID, err)
		return
	}
	atomic.AddUint64(&c.stats.Invalidations, 1)
}

func (c *Cache) fail(msg, ownerID string, err error) {
	atomic.AddUint64(&c.stats.Errors, 1)
	c.logger.Warn(msg, "owner", ownerID, "error", err)
}

// GetStats returns the current cache statistics.
func (c *Cache) GetStats() StatsSnapshot {
	hits := atomic.LoadUint64(&c.stats.Hits)
	misses := atomic.LoadUint64(&c.stats.Misses)
	totalGets := hits + misses

	var hitRate float64
	if totalGets > 0 {
		hitRate = float64(hits) / float64(totalGets) * 100
	}

	return StatsSnapshot{
		Hits:          hits,
		Misses:        misses,
		Sets:          atomic.LoadUint64(&c.stats.Sets),
		Invalidations: atomic.LoadUint64(&c.stats.Invalidations),
		Errors:        atomic.LoadUint64(&c.stats.Errors),
		HitRate:       hitRate,
		TotalGets:     totalGets,
	}
}

// Enabled reports whether the cache talks to Redis.
func (c *Cache) Enabled() bool {
	return c.client != nil
}

// Ping checks if the Redis connection is healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
