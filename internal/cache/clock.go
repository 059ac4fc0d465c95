package cache

import (
	"sync"
	"time"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

// Broadcaster is the durable cross-tab channel the clock writes through.
type Broadcaster interface {
	Timestamp() int64
	Persist(ts int64) error
	Publish(name string, ev domain.Event)
}

// Clock owns the invalidation timestamp: a wall-clock derived, strictly
// increasing value shared by every tab through durable storage.
type Clock struct {
	b      Broadcaster
	source string
	now    func() time.Time

	mu   sync.Mutex
	last int64 // newest value bumped here, kept even if persisting failed
}

// NewClock creates a clock; source tags the events it publishes.
func NewClock(b Broadcaster, source string) *Clock {
	return &Clock{b: b, source: source, now: time.Now}
}

// SetNow overrides the wall clock (tests).
func (c *Clock) SetNow(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Current returns the newest known timestamp.
func (c *Clock) Current() int64 {
	durable := c.b.Timestamp()
	c.mu.Lock()
	defer c.mu.Unlock()
	return max(durable, c.last)
}

// Bump advances the timestamp, persists it and publishes a
// media-cache-updated event. It returns the new value.
func (c *Clock) Bump() int64 {
	c.mu.Lock()
	next := c.now().UnixMilli()
	if cur := max(c.b.Timestamp(), c.last); next <= cur {
		next = cur + 1
	}
	c.last = next
	// A failed write only costs other tabs this notification.
	_ = c.b.Persist(next)
	c.mu.Unlock()

	c.b.Publish(domain.EventMediaCacheUpdated, domain.Event{Timestamp: next, Source: c.source})
	return next
}
