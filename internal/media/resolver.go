// Package media resolves the media slots of a page for one mounted consumer.
package media

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jantomson/steelbuckle-sub000/internal/cache"
	"github.com/jantomson/steelbuckle-sub000/internal/domain"
	"github.com/jantomson/steelbuckle-sub000/internal/keys"
)

// Deps are the document-wide collaborators shared by every resolver.
type Deps struct {
	Backend domain.MediaBackend
	Cache   *cache.MediaCache
	Clock   *cache.Clock
	Bus     domain.EventBus
	Flight  *cache.Flight
	Logger  *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithKeys sets the logical keys to fetch. Defaults to the keys of the default map.
func WithKeys(ks ...string) Option {
	return func(r *Resolver) { r.keys = append([]string(nil), ks...) }
}

// WithLastResort sets the URL returned when every other layer is empty.
func WithLastResort(url string) Option {
	return func(r *Resolver) { r.lastResort = url }
}

// WithOnChange registers a callback invoked after every state change.
func WithOnChange(fn func()) Option {
	return func(r *Resolver) { r.onChange = fn }
}

// Resolver is the media view of one page prefix. Responses are applied in
// issue order: a superseded fetch never touches state.
type Resolver struct {
	prefix     string
	defaults   domain.ContentMap
	lastResort string
	onChange   func()
	deps       Deps

	mu         sync.Mutex
	keys       []string
	fetched    domain.ContentMap
	resolved   domain.ContentMap
	overrides  map[string]override
	loading    bool
	err        error
	seq        uint64
	cancel     context.CancelFunc
	done       chan struct{}
	pendingGen int64
	pendingKey string
	applied    int64
	unsub      func()
	closed     bool
}

// NewResolver creates a resolver for prefix with built-in defaults.
func NewResolver(prefix string, defaults domain.ContentMap, deps Deps, opts ...Option) *Resolver {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Flight == nil {
		deps.Flight = cache.NewFlight(0)
	}
	r := &Resolver{
		prefix:    prefix,
		defaults:  defaults.Clone(),
		deps:      deps,
		overrides: map[string]override{},
		loading:   true,
		applied:   -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.keys == nil {
		r.keys = r.defaults.SortedKeys()
	}
	r.rebuildLocked()
	return r
}

// Mount subscribes to media events and starts resolving. The returned
// channel closes when the resulting fetch settles.
func (r *Resolver) Mount() <-chan struct{} {
	r.mu.Lock()
	if r.unsub == nil && r.deps.Bus != nil {
		r.unsub = r.deps.Bus.Subscribe(domain.EventMediaCacheUpdated, r.onMediaEvent)
	}
	r.mu.Unlock()
	return r.refresh(false)
}

// SetKeys switches the key set, superseding any fetch in progress.
func (r *Resolver) SetKeys(ks []string) <-chan struct{} {
	r.mu.Lock()
	r.keys = append([]string(nil), ks...)
	r.mu.Unlock()
	return r.refresh(false)
}

// ForceRefresh drops this resolver's cache entry and refetches even when
// the invalidation timestamp has not moved.
func (r *Resolver) ForceRefresh() <-chan struct{} {
	r.mu.Lock()
	key := cache.Key(r.prefix, r.keys)
	r.overrides = map[string]override{}
	r.mu.Unlock()

	r.deps.Cache.Invalidate(key)
	r.deps.Flight.Forget(cache.FlightKey(key, r.deps.Clock.Current()))
	return r.refresh(true)
}

func (r *Resolver) onMediaEvent(ev domain.Event) {
	if ev.Key != "" && ev.URL != "" {
		r.applyOverride(ev.Key, ev.URL)
		return
	}

	r.mu.Lock()
	current := ev.Timestamp != 0 && r.applied >= ev.Timestamp
	r.mu.Unlock()
	if current {
		return
	}
	r.refresh(false)
}

// override is an optimistic value shown until content from a newer
// generation than base is applied.
type override struct {
	url  string
	base int64
}

// applyOverride shows url for key right away without waiting for a save.
func (r *Resolver) applyOverride(key, url string) {
	base := r.deps.Clock.Current()
	r.mu.Lock()
	for _, s := range keys.Spellings(r.prefix, key) {
		r.overrides[s] = override{url: url, base: base}
	}
	r.mu.Unlock()
	r.changed()
}

// dropOverridesLocked forgets overrides that content of generation gen supersedes.
func (r *Resolver) dropOverridesLocked(gen int64) {
	for k, o := range r.overrides {
		if gen > o.base {
			delete(r.overrides, k)
		}
	}
}

func (r *Resolver) refresh(force bool) <-chan struct{} {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return closedChan()
	}

	gen := r.deps.Clock.Current()
	key := cache.Key(r.prefix, r.keys)
	if !force {
		if e, ok := r.deps.Cache.Fresh(key); ok {
			r.cancelLocked()
			r.seq++
			r.fetched = e.Data
			r.applied = e.Generation
			r.dropOverridesLocked(e.Generation)
			r.loading = false
			r.err = nil
			r.rebuildLocked()
			r.mu.Unlock()
			r.changed()
			return closedChan()
		}
		if r.loading && r.done != nil && r.pendingGen >= gen && r.pendingKey == key {
			done := r.done
			r.mu.Unlock()
			return done
		}
	}

	r.cancelLocked()
	r.seq++
	seq := r.seq
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r.cancel = cancel
	r.done = done
	r.loading = true
	r.pendingGen = gen
	r.pendingKey = key
	ks := append([]string(nil), r.keys...)
	r.mu.Unlock()
	r.changed()

	go r.fetch(ctx, seq, key, ks, gen, done)
	return done
}

func (r *Resolver) fetch(ctx context.Context, seq uint64, key string, ks []string, gen int64, done chan struct{}) {
	defer close(done)
	started := time.Now()

	data, err := r.deps.Flight.Do(ctx, cache.FlightKey(key, gen), func(ctx context.Context) (domain.ContentMap, error) {
		raw, err := r.deps.Backend.FetchMedia(ctx, r.prefix, ks)
		if err != nil {
			return nil, err
		}
		merged := expand(r.prefix, raw)
		r.deps.Cache.Put(key, merged, gen)
		return merged, nil
	})

	r.mu.Lock()
	if seq != r.seq || r.closed {
		r.mu.Unlock()
		r.deps.Logger.Debug("discarding superseded media fetch", "prefix", r.prefix, "keys", ks)
		return
	}
	r.loading = false
	r.cancel = nil
	if err != nil {
		r.err = err
		r.mu.Unlock()
		r.deps.Logger.Warn("media fetch failed", "prefix", r.prefix, "keys", ks, "error", err)
		r.changed()
		return
	}
	r.err = nil
	r.fetched = data
	r.applied = gen
	r.dropOverridesLocked(gen)
	r.rebuildLocked()
	r.mu.Unlock()

	r.deps.Logger.Debug("media resolved", "prefix", r.prefix, "count", len(data), "duration", time.Since(started))
	r.changed()
}

// rebuildLocked overlays fetched values on the defaults.
func (r *Resolver) rebuildLocked() {
	resolved := expand(r.prefix, r.defaults)
	for k, v := range r.fetched {
		resolved[k] = v
	}
	r.resolved = resolved
}

// expand stores every value under all equivalent key spellings. Exact keys
// win over derived ones.
func expand(prefix string, raw map[string]string) domain.ContentMap {
	out := make(domain.ContentMap, len(raw)*3)
	for _, k := range domain.ContentMap(raw).SortedKeys() {
		for _, s := range keys.Spellings(prefix, k) {
			if _, ok := out[s]; !ok {
				out[s] = raw[k]
			}
		}
	}
	for k, v := range raw {
		out[k] = v
	}
	return out
}

func (r *Resolver) cancelLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Resolver) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

// ImageURL returns the URL for key: an optimistic override, the resolved
// value under any spelling, fallback, then the page's last resort.
func (r *Resolver) ImageURL(key, fallback string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := keys.Candidates(r.prefix, key)
	for _, c := range candidates {
		if o := r.overrides[c]; o.url != "" {
			return o.url
		}
	}
	for _, c := range candidates {
		if v := r.resolved[c]; v != "" {
			return v
		}
	}
	if fallback != "" {
		return fallback
	}
	if r.lastResort == "" {
		r.deps.Logger.Debug("media key unresolved", "prefix", r.prefix, "key", key)
	}
	return r.lastResort
}

// Resolved returns a copy of the resolved map, without overrides.
func (r *Resolver) Resolved() domain.ContentMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved.Clone()
}

// Keys returns the logical keys this resolver fetches.
func (r *Resolver) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

func (r *Resolver) Prefix() string { return r.prefix }

// Loading reports whether a fetch is outstanding.
func (r *Resolver) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Err returns the error of the last settled fetch, if it failed.
func (r *Resolver) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close cancels any fetch and unsubscribes from the bus.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.cancelLocked()
	unsub := r.unsub
	r.unsub = nil
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
