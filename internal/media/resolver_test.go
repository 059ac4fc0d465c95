package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jantomson/steelbuckle-sub000/internal/backend/backendtest"
	"github.com/jantomson/steelbuckle-sub000/internal/bus"
	"github.com/jantomson/steelbuckle-sub000/internal/cache"
	"github.com/jantomson/steelbuckle-sub000/internal/domain"
	"github.com/jantomson/steelbuckle-sub000/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tab struct {
	bus    *bus.Bus
	poller *bus.Poller
	clock  *cache.Clock
	deps   Deps
}

func newTab(storage domain.LocalStorage, backend domain.MediaBackend, timeout time.Duration) *tab {
	b := bus.New(storage, nil)
	clock := cache.NewClock(b, "tab")
	return &tab{
		bus:    b,
		poller: bus.NewPoller(b, time.Hour, nil),
		clock:  clock,
		deps: Deps{
			Backend: backend,
			Cache:   cache.NewMediaCache(0, clock),
			Clock:   clock,
			Bus:     b,
			Flight:  cache.NewFlight(timeout),
		},
	}
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch")
	}
}

func TestImageURLResolvesFetchedValue(t *testing.T) {
	fake := backendtest.New()
	fake.SetMedia("about.images.main_image", "https://cdn/x.jpg")
	tb := newTab(store.NewMemory(), fake, time.Second)

	r := NewResolver("about", nil, tb.deps, WithKeys("main_image"))
	defer r.Close()
	wait(t, r.Mount())

	assert.Equal(t, "https://cdn/x.jpg", r.ImageURL("main_image", "/fallback.jpg"))
	assert.Equal(t, "https://cdn/x.jpg", r.ImageURL("about.images.main_image", "/fallback.jpg"))
	assert.Equal(t, "https://cdn/x.jpg", r.ImageURL("about.main_image", "/fallback.jpg"))
	assert.NoError(t, r.Err())
}

func TestImageURLFallsBackWhenFetchFails(t *testing.T) {
	fake := backendtest.New()
	fake.FetchMediaErr = errors.New("offline")
	tb := newTab(store.NewMemory(), fake, time.Second)

	r := NewResolver("about", nil, tb.deps, WithKeys("main_image"), WithLastResort("/last.jpg"))
	defer r.Close()
	wait(t, r.Mount())

	assert.False(t, r.Loading())
	assert.Error(t, r.Err())
	assert.Equal(t, "/fallback.jpg", r.ImageURL("main_image", "/fallback.jpg"))
	assert.Equal(t, "/last.jpg", r.ImageURL("main_image", ""))
}

func TestDefaultsAreOverlaidByFetchedValues(t *testing.T) {
	fake := backendtest.New()
	fake.SetMedia("about.images.hero", "https://cdn/hero.jpg")
	tb := newTab(store.NewMemory(), fake, time.Second)

	r := NewResolver("about", domain.ContentMap{"hero": "/d/hero.jpg", "logo": "/d/logo.png"}, tb.deps)
	defer r.Close()
	assert.True(t, r.Loading())
	assert.Equal(t, "/d/hero.jpg", r.ImageURL("hero", ""), "defaults are visible before the fetch settles")

	wait(t, r.Mount())
	assert.Equal(t, "https://cdn/hero.jpg", r.ImageURL("hero", ""))
	assert.Equal(t, "/d/logo.png", r.ImageURL("logo", ""))
	assert.ElementsMatch(t, []string{"hero", "logo"}, r.Keys())
}

func TestSequentialResolutionFetchesOnce(t *testing.T) {
	fake := backendtest.New()
	fake.SetMedia("about.images.main_image", "https://cdn/x.jpg")
	tb := newTab(store.NewMemory(), fake, time.Second)

	first := NewResolver("about", nil, tb.deps, WithKeys("main_image"))
	defer first.Close()
	wait(t, first.Mount())

	second := NewResolver("about", nil, tb.deps, WithKeys("main_image"))
	defer second.Close()
	wait(t, second.Mount())

	assert.Equal(t, first.ImageURL("main_image", ""), second.ImageURL("main_image", ""))
	media, _ := fake.Counts()
	assert.Equal(t, 1, media)
}

func TestConcurrentMountsShareOneFetch(t *testing.T) {
	fake := backendtest.New()
	release := make(chan struct{})
	fake.FetchMediaHook = func(ctx context.Context, pageID string, keys []string) (map[string]string, error) {
		<-release
		return map[string]string{"about.images.main_image": "https://cdn/x.jpg"}, nil
	}
	tb := newTab(store.NewMemory(), fake, time.Second)

	a := NewResolver("about", nil, tb.deps, WithKeys("main_image"))
	b := NewResolver("about", nil, tb.deps, WithKeys("main_image"))
	defer a.Close()
	defer b.Close()

	doneA := a.Mount()
	doneB := b.Mount()
	require.Eventually(t, func() bool { m, _ := fake.Counts(); return m >= 1 }, time.Second, time.Millisecond)
	close(release)
	wait(t, doneA)
	wait(t, doneB)

	media, _ := fake.Counts()
	assert.Equal(t, 1, media)
	assert.Equal(t, "https://cdn/x.jpg", b.ImageURL("main_image", ""))
}

func TestSupersededResponseIsDiscarded(t *testing.T) {
	fake := backendtest.New()
	gateX := make(chan struct{})
	fake.FetchMediaHook = func(ctx context.Context, pageID string, keys []string) (map[string]string, error) {
		if keys[0] == "x" {
			// Ignores cancellation, like a fetch layer that resolves on abort.
			<-gateX
			return map[string]string{"about.images.x": "https://cdn/a.jpg", "about.images.y": "https://cdn/stale.jpg"}, nil
		}
		return map[string]string{"about.images.y": "https://cdn/b.jpg"}, nil
	}
	tb := newTab(store.NewMemory(), fake, time.Second)

	r := NewResolver("about", nil, tb.deps, WithKeys("x"))
	defer r.Close()

	doneA := r.Mount()
	doneB := r.SetKeys([]string{"y"})
	wait(t, doneB)
	assert.Equal(t, "https://cdn/b.jpg", r.ImageURL("y", ""))

	close(gateX)
	wait(t, doneA)
	// Let the abandoned flight finish writing to the shared cache.
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, "https://cdn/b.jpg", r.ImageURL("y", ""))
	assert.Equal(t, "", r.ImageURL("x", ""))
	assert.False(t, r.Loading())
	assert.Equal(t, []string{"y"}, r.Keys())
}

func TestForceRefreshBypassesCache(t *testing.T) {
	fake := backendtest.New()
	fake.SetMedia("about.images.main_image", "https://cdn/v1.jpg")
	tb := newTab(store.NewMemory(), fake, time.Second)

	r := NewResolver("about", nil, tb.deps, WithKeys("main_image"))
	defer r.Close()
	wait(t, r.Mount())

	fake.SetMedia("about.images.main_image", "https://cdn/v2.jpg")
	wait(t, r.Mount())
	assert.Equal(t, "https://cdn/v1.jpg", r.ImageURL("main_image", ""), "mount reuses the fresh cache entry")

	wait(t, r.ForceRefresh())
	assert.Equal(t, "https://cdn/v2.jpg", r.ImageURL("main_image", ""))
	media, _ := fake.Counts()
	assert.Equal(t, 2, media)
}

func TestInvalidationConvergesAcrossTabs(t *testing.T) {
	shared := store.NewMemory()
	fake := backendtest.New()
	fake.SetMedia("about.images.main_image", "https://cdn/v1.jpg")

	tabA := newTab(shared, fake, time.Second)
	tabB := newTab(shared, fake, time.Second)

	rb := NewResolver("about", nil, tabB.deps, WithKeys("main_image"))
	defer rb.Close()
	wait(t, rb.Mount())
	require.False(t, rb.Loading())

	fake.SetMedia("about.images.main_image", "https://cdn/v2.jpg")
	release := make(chan struct{})
	fake.FetchMediaHook = func(ctx context.Context, pageID string, keys []string) (map[string]string, error) {
		<-release
		return map[string]string{"about.images.main_image": "https://cdn/v2.jpg"}, nil
	}

	tabA.deps.Cache.InvalidateAll()
	require.True(t, tabB.poller.Check())
	assert.True(t, rb.Loading())

	close(release)
	require.Eventually(t, func() bool { return !rb.Loading() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "https://cdn/v2.jpg", rb.ImageURL("main_image", ""))

	// The same change arriving again is a no-op.
	assert.False(t, tabB.poller.Check())
	tabB.bus.Publish(domain.EventMediaCacheUpdated, domain.Event{Timestamp: tabA.clock.Current()})
	assert.False(t, rb.Loading())
}

func TestOptimisticUpdateOverridesDisplay(t *testing.T) {
	fake := backendtest.New()
	fake.SetMedia("about.images.main_image", "https://cdn/v1.jpg")
	tb := newTab(store.NewMemory(), fake, time.Second)

	r := NewResolver("about", nil, tb.deps, WithKeys("main_image"))
	defer r.Close()
	wait(t, r.Mount())

	tb.bus.Publish(domain.EventMediaCacheUpdated, domain.Event{Key: "about.images.main_image", URL: "https://cdn/new.jpg?_t=9"})
	assert.Equal(t, "https://cdn/new.jpg?_t=9", r.ImageURL("main_image", ""))
	assert.False(t, r.Loading(), "an optimistic update does not refetch")

	wait(t, r.ForceRefresh())
	assert.Equal(t, "https://cdn/v1.jpg", r.ImageURL("main_image", ""))
}

func TestNewerGenerationReplacesOptimisticValue(t *testing.T) {
	shared := store.NewMemory()
	fake := backendtest.New()
	fake.SetMedia("about.images.main_image", "https://cdn/v1.jpg")
	tabA := newTab(shared, fake, time.Second)
	tabB := newTab(shared, fake, time.Second)

	r := NewResolver("about", nil, tabA.deps, WithKeys("main_image"))
	defer r.Close()
	wait(t, r.Mount())

	tabA.bus.Publish(domain.EventMediaCacheUpdated, domain.Event{Key: "about.images.main_image", URL: "https://cdn/a.jpg"})
	require.Equal(t, "https://cdn/a.jpg", r.ImageURL("main_image", ""))

	// Another tab saves later.
	fake.SetMedia("about.images.main_image", "https://cdn/b.jpg")
	tabB.deps.Cache.InvalidateAll()

	require.True(t, tabA.poller.Check())
	require.Eventually(t, func() bool {
		return r.ImageURL("main_image", "") == "https://cdn/b.jpg"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "https://cdn/b.jpg", r.ImageURL("about.main_image", ""))
}

func TestOptimisticValueSurvivesStaleContent(t *testing.T) {
	fake := backendtest.New()
	fake.SetMedia("about.images.main_image", "https://cdn/v1.jpg")
	tb := newTab(store.NewMemory(), fake, time.Second)

	r := NewResolver("about", nil, tb.deps, WithKeys("main_image"))
	defer r.Close()
	wait(t, r.Mount())

	tb.bus.Publish(domain.EventMediaCacheUpdated, domain.Event{Key: "about.images.main_image", URL: "https://cdn/new.jpg"})

	// A replayed event for the generation already applied refetches nothing.
	tb.bus.Publish(domain.EventMediaCacheUpdated, domain.Event{Timestamp: tb.clock.Current()})
	assert.Equal(t, "https://cdn/new.jpg", r.ImageURL("main_image", ""))
}

func TestFetchTimeoutKeepsPreviousValues(t *testing.T) {
	fake := backendtest.New()
	fake.SetMedia("about.images.main_image", "https://cdn/v1.jpg")
	tb := newTab(store.NewMemory(), fake, 30*time.Millisecond)

	r := NewResolver("about", nil, tb.deps, WithKeys("main_image"))
	defer r.Close()
	wait(t, r.Mount())

	block := make(chan struct{})
	defer close(block)
	fake.FetchMediaHook = func(ctx context.Context, pageID string, keys []string) (map[string]string, error) {
		<-block
		return nil, nil
	}

	wait(t, r.ForceRefresh())
	assert.False(t, r.Loading())
	assert.ErrorIs(t, r.Err(), domain.ErrFetchTimeout)
	assert.Equal(t, "https://cdn/v1.jpg", r.ImageURL("main_image", ""))
}

func TestClosedResolverIgnoresEvents(t *testing.T) {
	fake := backendtest.New()
	tb := newTab(store.NewMemory(), fake, time.Second)

	r := NewResolver("about", nil, tb.deps, WithKeys("main_image"))
	wait(t, r.Mount())
	r.Close()

	tb.deps.Cache.InvalidateAll()
	media, _ := fake.Counts()
	assert.Equal(t, 1, media)
}
