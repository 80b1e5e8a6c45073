// Package adapters はpricingフィーチャーのキャッシュ実装を提供します。
package adapters

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"cardsignal_backend/internal/feature/pricing/domain/entity"
	"cardsignal_backend/internal/feature/pricing/usecase"
)

// shardCount はメモリキャッシュの分割数です。
const shardCount = 32

type memoryEntry struct {
	set       entity.ComparableSet
	createdAt time.Time
}

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// memoryComparableCache はプロセス内で比較販売を保持するキャッシュです。
// 指紋ごとにシャードを分けるため、異なる指紋の読み書きは互いにブロックしません。
type memoryComparableCache struct {
	ttl    time.Duration
	shards [shardCount]*memoryShard
	now    func() time.Time
}

var _ usecase.ComparableCache = (*memoryComparableCache)(nil)

// NewMemoryComparableCache はメモリキャッシュを生成します。ttlが0以下の場合は24時間です。
func NewMemoryComparableCache(ttl time.Duration) *memoryComparableCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	c := &memoryComparableCache{ttl: ttl, now: time.Now}
	for i := range c.shards {
		c.shards[i] = &memoryShard{entries: map[string]memoryEntry{}}
	}
	return c
}

func (c *memoryComparableCache) shard(fp string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(fp))
	return c.shards[h.Sum32()%shardCount]
}

// Get はTTL内のエントリを返します。期限切れのエントリは存在しないものとして扱います。
func (c *memoryComparableCache) Get(_ context.Context, fp string) (entity.ComparableSet, bool, error) {
	s := c.shard(fp)
	s.mu.RLock()
	e, ok := s.entries[fp]
	s.mu.RUnlock()
	if !ok || c.now().Sub(e.createdAt) > c.ttl {
		return entity.ComparableSet{}, false, nil
	}
	return e.set, true, nil
}

// Put はエントリを作成時刻とともに書き込みます。
func (c *memoryComparableCache) Put(_ context.Context, fp string, set entity.ComparableSet) error {
	s := c.shard(fp)
	s.mu.Lock()
	s.entries[fp] = memoryEntry{set: set, createdAt: c.now()}
	s.mu.Unlock()
	return nil
}

// PurgeExpired は期限切れのエントリを削除し、削除件数を返します。
func (c *memoryComparableCache) PurgeExpired(_ context.Context) (int64, error) {
	now := c.now()
	var n int64
	for _, s := range c.shards {
		s.mu.Lock()
		for fp, e := range s.entries {
			if now.Sub(e.createdAt) > c.ttl {
				delete(s.entries, fp)
				n++
			}
		}
		s.mu.Unlock()
	}
	return n, nil
}
