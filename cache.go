package viewcounter

import (
	"context"
	"sync"
	"time"

	"github.com/eringen/viewcounter/counter"
)

// TopCache holds a sorted snapshot of every counter for the top-pages
// endpoint, so dashboard polling does not scan the whole store each time.
// Single-slug reads never go through it.
type TopCache struct {
	mu      sync.RWMutex
	pages   []counter.PageViews
	total   int64
	fetched time.Time
	ttl     time.Duration
	store   counter.Store
}

// NewTopCache creates a TopCache backed by the given store. A ttl <= 0
// disables caching.
func NewTopCache(s counter.Store, ttl time.Duration) *TopCache {
	return &TopCache{store: s, ttl: ttl}
}

func (c *TopCache) valid() bool {
	return c.pages != nil && c.ttl > 0 && time.Since(c.fetched) < c.ttl
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *TopCache) Invalidate() {
	c.mu.Lock()
	c.pages = nil
	c.total = 0
	c.mu.Unlock()
}

func (c *TopCache) load(ctx context.Context) error {
	if c.valid() {
		return nil
	}
	pages, err := c.store.List(ctx)
	if err != nil {
		return err
	}
	if pages == nil {
		pages = []counter.PageViews{}
	}
	counter.SortByViews(pages)
	c.pages = pages
	c.total = counter.Total(pages)
	c.fetched = time.Now()
	return nil
}

// ensureLoaded returns the cached snapshot after ensuring it is fresh.
// It tries a read lock first; only takes a write lock if a reload is needed.
func (c *TopCache) ensureLoaded(ctx context.Context) ([]counter.PageViews, int64, error) {
	c.mu.RLock()
	if c.valid() {
		pages, total := c.pages, c.total
		c.mu.RUnlock()
		return pages, total, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, 0, err
	}
	return c.pages, c.total, nil
}

// Top returns the sum of all counters and at most limit pages, most viewed
// first. limit <= 0 returns every page.
func (c *TopCache) Top(ctx context.Context, limit int) (int64, []counter.PageViews, error) {
	pages, total, err := c.ensureLoaded(ctx)
	if err != nil {
		return 0, nil, err
	}
	if limit > 0 && len(pages) > limit {
		pages = pages[:limit]
	}
	out := make([]counter.PageViews, len(pages))
	copy(out, pages)
	return total, out, nil
}
