package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/task-tracker/config"
	domain "github.com/example/task-tracker/domain/task"
	"github.com/example/task-tracker/modules/task"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Module owns the Redis connection and serves as the task service's stats
// cache. Until Start succeeds, and whenever Redis is not configured or not
// reachable, it behaves as an empty cache.
type Module struct {
	cfg    config.CacheConfig
	logger types.Logger
	cache  atomic.Pointer[Cache]
}

var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)
var _ task.StatsCache = (*Module)(nil)

// NewModule creates a cache module for cfg.
func NewModule(cfg config.CacheConfig, logger types.Logger) *Module {
	m := &Module{
		cfg:    cfg,
		logger: logger.WithModule("cache"),
	}
	m.cache.Store(New(nil, cfg.Prefix, cfg.TTL, m.logger))
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "cache"
}

// Start connects to Redis when an address is configured. A failed
// connection leaves the cache disabled rather than failing startup.
func (m *Module) Start(ctx context.Context) error {
	if m.cfg.RedisAddr == "" {
		m.logger.Info("redis not configured, stats cache disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         m.cfg.RedisAddr,
		Password:     m.cfg.Password,
		DB:           m.cfg.DB,
		PoolSize:     20,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		m.logger.Warn("redis unreachable, stats cache disabled", "addr", m.cfg.RedisAddr, "error", err)
		client.Close()
		return nil
	}

	m.cache.Store(New(client, m.cfg.Prefix, m.cfg.TTL, m.logger))
	m.logger.Info("connected to redis", "addr", m.cfg.RedisAddr, "prefix", m.cfg.Prefix, "ttl", m.cfg.TTL)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if err := m.cache.Load().Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	m.logger.Info("module stopped")
	return nil
}

// Get implements task.StatsCache.
func (m *Module) Get(ctx context.Context, ownerID string) (*domain.Stats, bool) {
	return m.cache.Load().Get(ctx, ownerID)
}

// Set implements task.StatsCache.
func (m *Module) Set(ctx context.Context, ownerID string, st *domain.Stats, maxAge time.Duration) {
	m.cache.Load().Set(ctx, ownerID, st, maxAge)
}

// Invalidate implements task.StatsCache.
func (m *Module) Invalidate(ctx context.Context, ownerID string) {
	m.cache.Load().Invalidate(ctx, ownerID)
}

// GetCache returns the active cache.
func (m *Module) GetCache() *Cache {
	return m.cache.Load()
}

// Health reports the Redis connection and hit/miss counters. A disabled
// cache is healthy.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	c := m.cache.Load()
	snapshot := c.GetStats()
	details := map[string]any{
		"enabled":  c.Enabled(),
		"hits":     snapshot.Hits,
		"misses":   snapshot.Misses,
		"errors":   snapshot.Errors,
		"hit_rate": snapshot.HitRate,
	}

	if err := c.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
			Details: details,
		}
	}
	msg := "operational"
	if !c.Enabled() {
		msg = "disabled"
	}
	return mono.HealthStatus{Healthy: true, Message: msg, Details: details}
}
