// Package cache holds the document-wide media cache and the invalidation
// clock every consumer compares against before trusting cached data.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

// DefaultCapacity bounds the number of cached key sets.
const DefaultCapacity = 20

// Entry is one cached resolution result.
type Entry struct {
	Data       domain.ContentMap
	InsertedAt time.Time
	// Generation is the invalidation timestamp observed before the data was fetched.
	Generation int64

	seq uint64
}

// Key builds the deterministic cache key: prefix plus the sorted,
// comma-joined key list.
func Key(prefix string, keys []string) string {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return prefix + ":" + strings.Join(sorted, ",")
}

// MediaCache is a bounded map of resolved media, evicting the oldest
// insertion first. Reads do not refresh an entry's position.
type MediaCache struct {
	clock    *Clock
	capacity int
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry
	seq     uint64
}

// NewMediaCache creates a cache; capacity <= 0 uses DefaultCapacity.
func NewMediaCache(capacity int, clock *Clock) *MediaCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MediaCache{
		clock:    clock,
		capacity: capacity,
		now:      time.Now,
		entries:  make(map[string]*Entry),
	}
}

// Get returns a copy of the entry stored under key.
func (c *MediaCache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	out := *e
	out.Data = e.Data.Clone()
	return out, true
}

// Fresh returns the entry only when no invalidation happened since it was fetched.
func (c *MediaCache) Fresh(key string) (Entry, bool) {
	e, ok := c.Get(key)
	if !ok {
		return Entry{}, false
	}
	if e.Generation < c.clock.Current() {
		return Entry{}, false
	}
	return e, true
}

// Put stores data under key, evicting the oldest entry when full.
func (c *MediaCache) Put(key string, data domain.ContentMap, generation int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.entries[key] = &Entry{
		Data:       data.Clone(),
		InsertedAt: c.now(),
		Generation: generation,
		seq:        c.seq,
	}

	for len(c.entries) > c.capacity {
		c.evictOldest()
	}
}

func (c *MediaCache) evictOldest() {
	var (
		oldestKey string
		oldest    *Entry
	)
	for k, e := range c.entries {
		if oldest == nil || e.InsertedAt.Before(oldest.InsertedAt) ||
			(e.InsertedAt.Equal(oldest.InsertedAt) && e.seq < oldest.seq) {
			oldestKey, oldest = k, e
		}
	}
	delete(c.entries, oldestKey)
}

// Invalidate drops one entry.
func (c *MediaCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll clears every entry and bumps the invalidation clock, which
// persists the new timestamp and broadcasts it. It returns the new timestamp.
func (c *MediaCache) InvalidateAll() int64 {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()

	return c.clock.Bump()
}

// Len returns the number of cached entries.
func (c *MediaCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
