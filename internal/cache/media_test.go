package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/jantomson/steelbuckle-sub000/internal/bus"
	"github.com/jantomson/steelbuckle-sub000/internal/domain"
	"github.com/jantomson/steelbuckle-sub000/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, capacity int) (*MediaCache, *bus.Bus, *Clock) {
	t.Helper()
	b := bus.New(store.NewMemory(), nil)
	clock := NewClock(b, "test")
	return NewMediaCache(capacity, clock), b, clock
}

func TestKeyIsDeterministic(t *testing.T) {
	assert.Equal(t, "about:a,b,c", Key("about", []string{"c", "a", "b"}))
	assert.Equal(t, Key("about", []string{"b", "a"}), Key("about", []string{"a", "b"}))

	keys := []string{"z", "y"}
	_ = Key("p", keys)
	assert.Equal(t, []string{"z", "y"}, keys, "input must not be reordered")
}

func TestGetReturnsCopy(t *testing.T) {
	c, _, _ := newTestCache(t, 0)
	c.Put("k", domain.ContentMap{"a": "1"}, 0)

	e, ok := c.Get("k")
	require.True(t, ok)
	e.Data["a"] = "changed"

	again, _ := c.Get("k")
	assert.Equal(t, "1", again.Data["a"])
}

func TestEvictsOldestInsertionFirst(t *testing.T) {
	c, _, _ := newTestCache(t, 3)
	base := time.Unix(1000, 0)
	tick := 0
	c.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for i := range 3 {
		c.Put(fmt.Sprintf("k%d", i), domain.ContentMap{}, 0)
	}
	// Reading does not protect an entry.
	_, _ = c.Get("k0")
	c.Put("k3", domain.ContentMap{}, 0)

	assert.Equal(t, 3, c.Len())
	_, ok := c.Get("k0")
	assert.False(t, ok)
	for _, k := range []string{"k1", "k2", "k3"} {
		_, ok := c.Get(k)
		assert.True(t, ok, k)
	}
}

func TestEvictionWithEqualTimestampsUsesInsertionOrder(t *testing.T) {
	c, _, _ := newTestCache(t, 2)
	fixed := time.Unix(1000, 0)
	c.now = func() time.Time { return fixed }

	c.Put("a", nil, 0)
	c.Put("b", nil, 0)
	c.Put("c", nil, 0)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestDefaultCapacity(t *testing.T) {
	c, _, _ := newTestCache(t, 0)
	for i := range DefaultCapacity + 5 {
		c.Put(fmt.Sprintf("k%02d", i), nil, 0)
	}
	assert.Equal(t, DefaultCapacity, c.Len())
}

func TestInvalidateAllClearsBumpsAndBroadcasts(t *testing.T) {
	c, b, clock := newTestCache(t, 0)
	clock.SetNow(func() time.Time { return time.UnixMilli(5000) })

	var events []domain.Event
	b.Subscribe(domain.EventMediaCacheUpdated, func(ev domain.Event) { events = append(events, ev) })

	c.Put("k", domain.ContentMap{"a": "1"}, 0)
	ts := c.InvalidateAll()

	assert.Equal(t, int64(5000), ts)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(5000), b.Timestamp())
	require.Len(t, events, 1)
	assert.Equal(t, int64(5000), events[0].Timestamp)
	assert.Equal(t, "test", events[0].Source)
}

func TestClockIsStrictlyIncreasing(t *testing.T) {
	_, _, clock := newTestCache(t, 0)
	clock.SetNow(func() time.Time { return time.UnixMilli(10) })

	first := clock.Bump()
	second := clock.Bump()
	third := clock.Bump()

	assert.Equal(t, int64(10), first)
	assert.Equal(t, int64(11), second)
	assert.Equal(t, int64(12), third)
	assert.Equal(t, int64(12), clock.Current())
}

func TestFreshRejectsEntriesOlderThanClock(t *testing.T) {
	c, _, clock := newTestCache(t, 0)
	clock.SetNow(func() time.Time { return time.UnixMilli(100) })

	c.Put("k", domain.ContentMap{"a": "1"}, clock.Current())
	_, ok := c.Fresh("k")
	assert.True(t, ok)

	clock.Bump()
	_, ok = c.Fresh("k")
	assert.False(t, ok)
	_, ok = c.Get("k")
	assert.True(t, ok, "stale entry stays readable until invalidated")
}
