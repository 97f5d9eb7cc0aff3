package store

import (
	"context"
	"time"

	"studyspend/internal/cache"
	"studyspend/internal/core"
)

const settingsCacheSize = 1024

// CachedSettings is a write-through cache in front of the settings table.
// Settings are read on every dashboard render, so hits matter.
type CachedSettings struct {
	store *Store
	cache *cache.LRU[core.Period]
}

func NewCachedSettings(s *Store, ttl time.Duration) *CachedSettings {
	return &CachedSettings{
		store: s,
		cache: cache.NewLRU[core.Period](settingsCacheSize, ttl),
	}
}

func (c *CachedSettings) GetSettings(ctx context.Context, ownerID string) (core.Period, error) {
	if p, ok := c.cache.Get(ownerID); ok {
		return p, nil
	}
	p, err := c.store.GetSettings(ctx, ownerID)
	if err != nil {
		return core.Period{}, err
	}
	c.cache.Set(ownerID, p)
	return p, nil
}

func (c *CachedSettings) SaveSettings(ctx context.Context, ownerID string, p core.Period) error {
	if err := c.store.SaveSettings(ctx, ownerID, p); err != nil {
		// A failed write may have landed; drop the entry instead of
		// guessing.
		c.cache.Delete(ownerID)
		return err
	}
	c.cache.Set(ownerID, p)
	return nil
}

// SweepExpired lets the cache sweeper evict stale entries.
func (c *CachedSettings) SweepExpired() int {
	return c.cache.SweepExpired()
}
