package cache

import (
	"context"
	"slices"
	"time"

	basecache "github.com/riskibarqy/korfbal-live/internal/platform/cache"
)

// MemoryBreakdownCache keeps rendered breakdowns in process memory. The store
// TTL applies to every entry; the per-call ttl is ignored.
type MemoryBreakdownCache struct {
	store *basecache.Store[[]byte]
}

func NewMemoryBreakdownCache(ttl time.Duration, opts ...basecache.Option) *MemoryBreakdownCache {
	return &MemoryBreakdownCache{store: basecache.NewStore[[]byte](ttl, opts...)}
}

func (c *MemoryBreakdownCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok := c.store.Get(ctx, key)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(value), true, nil
}

func (c *MemoryBreakdownCache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	c.store.Set(ctx, key, slices.Clone(value))
	return nil
}

func (c *MemoryBreakdownCache) Delete(ctx context.Context, key string) error {
	c.store.Delete(ctx, key)
	return nil
}
