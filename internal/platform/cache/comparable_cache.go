// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cardsignal_backend/internal/feature/pricing/domain/entity"
	"cardsignal_backend/internal/feature/pricing/usecase"
)

// Purger is implemented by cache backends that can drop dead rows.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// CachingComparableCache decorates a ComparableCache with Redis.
// Reads go to Redis first and fall back to the inner cache; writes go to both.
type CachingComparableCache struct {
	inner     usecase.ComparableCache
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
	now       func() time.Time
}

var _ usecase.ComparableCache = (*CachingComparableCache)(nil)

// record is the JSON document stored under each key.
// CreatedAt is checked on read so an entry never outlives ttl even if the key TTL drifts.
type record struct {
	Set       entity.ComparableSet `json:"set"`
	CreatedAt time.Time            `json:"created_at"`
}

// NewCachingComparableCache decorates a ComparableCache with Redis caching.
// If ttl is 0, it defaults to 24 hours. If namespace is empty, it uses "comparables".
func NewCachingComparableCache(rdb *redis.Client, ttl time.Duration, inner usecase.ComparableCache, namespace string) *CachingComparableCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if namespace == "" {
		namespace = "comparables"
	}
	return &CachingComparableCache{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
		now:       time.Now,
	}
}

// Get returns a live entry, checking Redis first and then the inner cache.
func (c *CachingComparableCache) Get(ctx context.Context, fp string) (entity.ComparableSet, bool, error) {
	// Bypass cache if Redis is not configured
	if c.rdb == nil {
		return c.inner.Get(ctx, fp)
	}

	key := c.cacheKey(fp)

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var rec record
		if err := json.Unmarshal(b, &rec); err == nil {
			if c.now().Sub(rec.CreatedAt) <= c.ttl {
				return rec.Set, true, nil
			}
		} else {
			// Delete corrupted cache entry
			_ = c.rdb.Del(ctx, key).Err()
		}
	}

	// 2) Fallback to the inner cache
	set, ok, err := c.inner.Get(ctx, fp)
	if err != nil || !ok {
		return set, ok, err
	}

	// 3) Backfill with the remaining lifetime (best effort)
	if !set.FetchedAt.IsZero() {
		if remaining := c.ttl - c.now().Sub(set.FetchedAt); remaining > 0 {
			c.store(ctx, key, record{Set: set, CreatedAt: set.FetchedAt}, remaining)
		}
	}
	return set, true, nil
}

// Put writes to the inner cache and then to Redis.
func (c *CachingComparableCache) Put(ctx context.Context, fp string, set entity.ComparableSet) error {
	if err := c.inner.Put(ctx, fp, set); err != nil {
		return err
	}
	if c.rdb == nil {
		return nil
	}
	c.store(ctx, c.cacheKey(fp), record{Set: set, CreatedAt: c.now()}, c.ttl)
	return nil
}

// PurgeExpired drops dead rows from the inner cache when it supports it.
// Redis keys expire on their own.
func (c *CachingComparableCache) PurgeExpired(ctx context.Context) (int64, error) {
	p, ok := c.inner.(Purger)
	if !ok {
		return 0, nil
	}
	return p.PurgeExpired(ctx)
}

// Flush deletes every key in the namespace.
func (c *CachingComparableCache) Flush(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.deleteByPattern(ctx, c.namespace+":*")
}

func (c *CachingComparableCache) store(ctx context.Context, key string, rec record, ttl time.Duration) {
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, b, ttl).Err(); err != nil {
		slog.Warn("redis comparable cache set failed", "key", key, "error", err)
	}
}

// cacheKey generates a cache key for a fingerprint.
func (c *CachingComparableCache) cacheKey(fp string) string {
	return fmt.Sprintf("%s:%s", c.namespace, safe(fp))
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingComparableCache) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
