// Package cache is a two-tier response cache: an in-memory expirable LRU
// (L1) in front of an optional Redis instance (L2). Values are stored as
// JSON so both tiers hold the same bytes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/tubedeck/internal/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options configures a Cache.
type Options struct {
	// RedisURL enables L2 when non-empty, e.g. "redis://localhost:6379/0".
	RedisURL   string
	TTL        time.Duration
	MaxEntries int
}

// Cache implements L1 (memory) + L2 (Redis) caching.
type Cache struct {
	l1      *expirable.LRU[string, []byte]
	rdb     *redis.Client // nil if Redis unavailable
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New builds a Cache. An invalid or unreachable Redis disables L2 with a
// warning rather than failing startup.
func New(ctx context.Context, opts Options, logger *zap.Logger, m *metrics.Metrics) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 1000
	}

	c := &Cache{
		l1:      expirable.NewLRU[string, []byte](opts.MaxEntries, nil, opts.TTL),
		ttl:     opts.TTL,
		logger:  logger,
		metrics: m,
	}

	if opts.RedisURL != "" {
		ropts, err := redis.ParseURL(opts.RedisURL)
		if err != nil {
			logger.Warn("cache: invalid redis URL, L2 disabled", zap.Error(err))
		} else {
			rdb := redis.NewClient(ropts)
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				logger.Warn("cache: redis unreachable, L2 disabled", zap.Error(err))
				_ = rdb.Close()
			} else {
				c.rdb = rdb
				logger.Info("cache: L2 redis connected", zap.String("addr", ropts.Addr))
			}
		}
	}

	logger.Info("cache: initialized",
		zap.Duration("ttl", opts.TTL),
		zap.Bool("redis", c.rdb != nil),
		zap.Int("max_entries", opts.MaxEntries),
	)
	return c
}

// Key builds a deterministic cache key from parts.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("td:%x", hash[:12])
}

// Get tries L1, then L2. An L2 hit repopulates L1.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	if data, ok := c.l1.Get(key); ok {
		c.metrics.CacheLookup("l1")
		return data, true
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			c.l1.Add(key, data)
			c.metrics.CacheLookup("l2")
			return data, true
		case !errors.Is(err, redis.Nil):
			c.logger.Debug("cache: L2 get failed", zap.String("key", key), zap.Error(err))
		}
	}

	c.metrics.CacheLookup("miss")
	return nil, false
}

// Set stores data in both tiers.
func (c *Cache) Set(ctx context.Context, key string, data []byte) {
	if c == nil {
		return
	}
	c.l1.Add(key, data)
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Debug("cache: L2 set failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Delete removes key from both tiers.
func (c *Cache) Delete(ctx context.Context, key string) {
	if c == nil {
		return
	}
	c.l1.Remove(key)
	if c.rdb != nil {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			c.logger.Debug("cache: L2 delete failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Len reports the number of live L1 entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.l1.Len()
}

// Close releases the Redis connection, if any.
func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// LoadJSON decodes a cached value of type T. A miss or decode error
// returns false.
func LoadJSON[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var out T
	data, ok := c.Get(ctx, key)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

// StoreJSON marshals v and caches it under key.
func StoreJSON[T any](ctx context.Context, c *Cache, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(ctx, key, data)
}
