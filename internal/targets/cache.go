package targets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

type cacheEntry struct {
	target   *cultivation.WeeklyTarget
	loadedAt time.Time
}

// CachedSource keeps weekly target rows in memory for a fixed validity.
// Misses (no row) are cached too.
type CachedSource struct {
	source        Source
	cacheValidity time.Duration
	now           func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewCachedSource wraps a source with a cache
func NewCachedSource(source Source, validity time.Duration) *CachedSource {
	return &CachedSource{
		source:        source,
		cacheValidity: validity,
		now:           time.Now,
		entries:       make(map[string]cacheEntry),
	}
}

// GetWeeklyTarget returns a copy of the cached row, loading it on a miss
func (c *CachedSource) GetWeeklyTarget(ctx context.Context, strainID int64, phase cultivation.Phase, week int) (*cultivation.WeeklyTarget, error) {
	key := fmt.Sprintf("%d:%s:%d", strainID, phase, week)

	c.mu.Lock()
	entry, ok := c.entries[key]
	c.mu.Unlock()

	if ok && c.now().Sub(entry.loadedAt) < c.cacheValidity {
		return copyTarget(entry.target), nil
	}

	target, err := c.source.GetWeeklyTarget(ctx, strainID, phase, week)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[key] = cacheEntry{target: copyTarget(target), loadedAt: c.now()}
	c.mu.Unlock()

	return target, nil
}

// Invalidate drops every cached row of a strain
func (c *CachedSource) Invalidate(strainID int64) {
	prefix := fmt.Sprintf("%d:", strainID)

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

func copyTarget(t *cultivation.WeeklyTarget) *cultivation.WeeklyTarget {
	if t == nil {
		return nil
	}
	c := *t
	for _, m := range cultivation.AllMetrics {
		c.SetRange(m, t.RangeFor(m).Clone())
	}
	return &c
}
