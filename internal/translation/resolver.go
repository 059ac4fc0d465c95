package translation

import (
	"context"
	"sync"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
	"github.com/jantomson/steelbuckle-sub000/internal/keys"
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithOnChange registers a callback invoked after every state change.
func WithOnChange(fn func()) Option {
	return func(r *Resolver) { r.onChange = fn }
}

// WithDefaults supplies text shown until (or instead of) fetched values.
func WithDefaults(defaults domain.ContentMap) Option {
	return func(r *Resolver) { r.defaults = defaults.Clone() }
}

// Resolver exposes the text of one (prefix, language) pair to a mounted
// consumer. Only the latest issued fetch may update its state.
type Resolver struct {
	svc      *Service
	prefix   string
	language string
	defaults domain.ContentMap
	onChange func()

	mu         sync.Mutex
	data       domain.ContentMap
	loading    bool
	err        error
	seq        uint64
	cancel     context.CancelFunc
	done       chan struct{}
	pendingGen int64
	applied    int64
	unsubs     []func()
	closed     bool
}

func newResolver(svc *Service, prefix, language string, opts ...Option) *Resolver {
	r := &Resolver{
		svc:      svc,
		prefix:   prefix,
		language: language,
		loading:  true,
		applied:  -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mount subscribes to invalidation events and starts resolving. The
// returned channel closes when the resulting load settles.
func (r *Resolver) Mount() <-chan struct{} {
	r.mu.Lock()
	if r.unsubs == nil && r.svc.bus != nil {
		r.unsubs = append(r.unsubs,
			r.svc.bus.Subscribe(domain.EventMediaCacheUpdated, r.onInvalidation),
			r.svc.bus.Subscribe(domain.EventContentUpdated, r.onContentUpdated),
		)
	}
	r.mu.Unlock()
	return r.refresh(false)
}

// Refresh refetches, bypassing the cache when force is set.
func (r *Resolver) Refresh(force bool) <-chan struct{} {
	if force {
		r.svc.Invalidate(r.prefix, r.language)
	}
	return r.refresh(force)
}

func (r *Resolver) onInvalidation(ev domain.Event) {
	// A targeted media update carries no text.
	if ev.Key != "" {
		return
	}
	r.refreshIfBehind(ev.Timestamp)
}

func (r *Resolver) onContentUpdated(ev domain.Event) {
	if ev.Language != "" && ev.Language != r.language {
		return
	}
	r.refreshIfBehind(ev.Timestamp)
}

func (r *Resolver) refreshIfBehind(ts int64) {
	r.mu.Lock()
	current := ts != 0 && r.applied >= ts
	r.mu.Unlock()
	if current {
		return
	}
	r.refresh(false)
}

func (r *Resolver) refresh(force bool) <-chan struct{} {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return closedChan()
	}

	gen := r.svc.clock.Current()
	if !force {
		if e, ok := r.svc.Cached(r.prefix, r.language); ok {
			r.cancelLocked()
			r.seq++
			r.data = e.Data
			r.applied = e.Generation
			r.loading = false
			r.err = nil
			r.mu.Unlock()
			r.changed()
			return closedChan()
		}
		if r.loading && r.done != nil && r.pendingGen >= gen {
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
	r.mu.Unlock()
	r.changed()

	go r.load(ctx, seq, gen, done)
	return done
}

func (r *Resolver) load(ctx context.Context, seq uint64, gen int64, done chan struct{}) {
	defer close(done)

	data, err := r.svc.Fetch(ctx, r.prefix, r.language, gen)

	r.mu.Lock()
	if seq != r.seq || r.closed {
		r.mu.Unlock()
		return
	}
	r.loading = false
	r.cancel = nil
	if err != nil {
		// Keep whatever was resolved before.
		r.err = err
	} else {
		r.err = nil
		r.data = data
		r.applied = gen
	}
	r.mu.Unlock()
	r.changed()
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

// Lookup returns the resolved text for key, trying every key spelling.
func (r *Resolver) Lookup(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range keys.Candidates(r.prefix, key) {
		if v, ok := r.data[c]; ok {
			return v, true
		}
	}
	for _, c := range keys.Candidates(r.prefix, key) {
		if v, ok := r.defaults[c]; ok {
			return v, true
		}
	}
	return "", false
}

// Text returns the resolved text for key, else def, else the key itself.
func (r *Resolver) Text(key, def string) string {
	if v, ok := r.Lookup(key); ok && v != "" {
		return v
	}
	if def != "" {
		return def
	}
	return key
}

// Snapshot returns a copy of the fetched map.
func (r *Resolver) Snapshot() domain.ContentMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data.Clone()
}

func (r *Resolver) Prefix() string   { return r.prefix }
func (r *Resolver) Language() string { return r.language }

// Loading reports whether a fetch is outstanding.
func (r *Resolver) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// Err returns the error of the last settled fetch.
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
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
