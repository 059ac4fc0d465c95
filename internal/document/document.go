// Package document wires the per-tab singletons (bus, poller, clock, media
// cache, translation store) and hands out resolvers and edit sessions bound
// to them. Every document of a process may share one durable store; that
// store is how tabs learn about each other's invalidations.
package document

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jantomson/steelbuckle-sub000/internal/bus"
	"github.com/jantomson/steelbuckle-sub000/internal/cache"
	"github.com/jantomson/steelbuckle-sub000/internal/domain"
	"github.com/jantomson/steelbuckle-sub000/internal/editor"
	"github.com/jantomson/steelbuckle-sub000/internal/media"
	"github.com/jantomson/steelbuckle-sub000/internal/translation"
)

// Options tune a document.
type Options struct {
	CacheCapacity int
	PollInterval  time.Duration
	FetchTimeout  time.Duration
}

// Document is one open tab.
type Document struct {
	id      string
	storage domain.LocalStorage
	backend domain.Backend
	logger  *slog.Logger

	bus    *bus.Bus
	poller *bus.Poller
	clock  *cache.Clock
	media  *cache.MediaCache
	texts  *translation.Service
	flight *cache.Flight

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a document over shared durable storage and a backend.
func New(storage domain.LocalStorage, backend domain.Backend, opts Options, logger *slog.Logger) *Document {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	logger = logger.With("document", id[:8])

	b := bus.New(storage, logger)
	clock := cache.NewClock(b, id)
	flight := cache.NewFlight(opts.FetchTimeout)

	return &Document{
		id:      id,
		storage: storage,
		backend: backend,
		logger:  logger,
		bus:     b,
		poller:  bus.NewPoller(b, opts.PollInterval, logger),
		clock:   clock,
		media:   cache.NewMediaCache(opts.CacheCapacity, clock),
		texts:   translation.NewService(backend, translation.NewStore(), clock, b, flight, logger),
		flight:  flight,
	}
}

func (d *Document) ID() string { return d.id }
func (d *Document) Bus() *bus.Bus { return d.bus }
func (d *Document) Poller() *bus.Poller { return d.poller }
func (d *Document) Clock() *cache.Clock { return d.clock }
func (d *Document) MediaCache() *cache.MediaCache { return d.media }
func (d *Document) Translations() *translation.Service { return d.texts }

// Start polls durable storage for other tabs' invalidations until ctx ends
// or the document is closed.
func (d *Document) Start(ctx context.Context) {
	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()

	go d.poller.Start(ctx)
	d.logger.Debug("document started")
}

// MediaResolver creates a resolver for the media slots of page. It is not mounted.
func (d *Document) MediaResolver(page domain.Page, opts ...media.Option) *media.Resolver {
	deps := media.Deps{
		Backend: d.backend,
		Cache:   d.media,
		Clock:   d.clock,
		Bus:     d.bus,
		Flight:  d.flight,
		Logger:  d.logger,
	}
	if page.LastResort != "" {
		opts = append([]media.Option{media.WithLastResort(page.LastResort)}, opts...)
	}
	return media.NewResolver(page.Prefix, page.Media, deps, opts...)
}

// TranslationResolver creates a text resolver for (prefix, language). It is not mounted.
func (d *Document) TranslationResolver(prefix, language string, opts ...translation.Option) *translation.Resolver {
	return d.texts.Resolver(prefix, language, opts...)
}

// EditSession creates an edit session for page locked to language.
func (d *Document) EditSession(page domain.Page, language string, privileged bool) editor.Session {
	return editor.NewSession(editor.Config{
		PageID:     page.ID,
		Prefix:     page.Prefix,
		Language:   language,
		Privileged: privileged,
		Source:     d.id,
	}, editor.Deps{
		Storage: d.storage,
		Backend: d.backend,
		Media:   d.media,
		Texts:   textSources{svc: d.texts},
		Bus:     d.bus,
		Logger:  d.logger,
	})
}

// SetLanguage announces an explicit editing-language switch to this document.
func (d *Document) SetLanguage(language string) {
	d.bus.Publish(domain.EventLanguageChanged, domain.Event{Language: language, Source: d.id})
}

// Close stops polling.
func (d *Document) Close() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// textSources exposes mounted translation resolvers to edit sessions.
type textSources struct {
	svc *translation.Service
}

func (t textSources) Open(prefix, language string) editor.TextSource {
	r := t.svc.Resolver(prefix, language)
	r.Mount()
	return r
}

func (t textSources) Invalidate(prefix, language string) {
	t.svc.Invalidate(prefix, language)
}
