package editor

import (
	"context"
	"errors"
	"sync"
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

type fakeSource struct {
	data   domain.ContentMap
	closed bool
}

func (s *fakeSource) Lookup(key string) (string, bool) {
	v, ok := s.data[key]
	return v, ok
}

func (s *fakeSource) Close() { s.closed = true }

type fakeTexts struct {
	mu          sync.Mutex
	byLang      map[string]domain.ContentMap
	opened      []string
	invalidated []string
	sources     []*fakeSource
}

func (f *fakeTexts) Open(prefix, language string) TextSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, language)
	src := &fakeSource{data: f.byLang[language]}
	f.sources = append(f.sources, src)
	return src
}

func (f *fakeTexts) Invalidate(prefix, language string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, prefix+"/"+language)
}

type harness struct {
	storage *store.Store
	backend *backendtest.Fake
	bus     *bus.Bus
	media   *cache.MediaCache
	texts   *fakeTexts
	events  []domain.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		storage: store.NewMemory(),
		backend: backendtest.New(),
		texts: &fakeTexts{byLang: map[string]domain.ContentMap{
			"et": {"hero.title_start": "Raudtee"},
			"en": {"hero.title_start": "Railway"},
		}},
	}
	h.bus = bus.New(h.storage, nil)
	h.media = cache.NewMediaCache(0, cache.NewClock(h.bus, "test"))
	for _, name := range []string{domain.EventMediaCacheUpdated, domain.EventContentUpdated} {
		h.bus.Subscribe(name, func(ev domain.Event) { h.events = append(h.events, ev) })
	}
	return h
}

func (h *harness) deps() Deps {
	return Deps{
		Storage: h.storage,
		Backend: h.backend,
		Media:   h.media,
		Texts:   h.texts,
		Bus:     h.bus,
		Now:     func() time.Time { return time.UnixMilli(777) },
	}
}

func (h *harness) session(t *testing.T, lang string) Session {
	t.Helper()
	s := NewSession(Config{PageID: "home", Prefix: "hero", Language: lang, Privileged: true, Source: "tab-1"}, h.deps())
	require.NoError(t, s.Load())
	t.Cleanup(s.Close)
	return s
}

func TestDraftOverlaysResolvedText(t *testing.T) {
	h := newHarness(t)
	s := h.session(t, "et")

	assert.Equal(t, "Raudtee", s.GetFieldContent("hero.title_start"))
	assert.Equal(t, "hero.missing", s.GetFieldContent("hero.missing"))

	require.NoError(t, s.UpdateContent("hero.title_start", "Uus pealkiri"))
	assert.Equal(t, "Uus pealkiri", s.GetFieldContent("hero.title_start"))
}

func TestUpdateContentWritesThrough(t *testing.T) {
	h := newHarness(t)
	s := h.session(t, "et")

	require.NoError(t, s.UpdateContent("hero.title_start", "Mustand"))

	raw, ok := h.storage.GetItem(domain.TextDraftKey("home", "et"))
	require.True(t, ok)
	assert.JSONEq(t, `{"hero.title_start":"Mustand"}`, raw)

	// A new session on the same storage recovers the draft.
	s.Close()
	again := h.session(t, "et")
	assert.Equal(t, "Mustand", again.GetFieldContent("hero.title_start"))
	assert.True(t, again.HasPendingChanges())
}

func TestEditorAndPickerAreExclusive(t *testing.T) {
	h := newHarness(t)
	s := h.session(t, "et")
	assert.Equal(t, StateLoaded, s.State())

	require.NoError(t, s.OpenEditor("hero.title_start", ""))
	assert.Equal(t, StateEditing, s.State())
	ed, ok := s.ActiveEditor()
	require.True(t, ok)
	assert.Equal(t, "Raudtee", ed.Text)

	require.NoError(t, s.OpenMediaPicker("hero.main_image", "https://cdn/a.jpg?_t=5", "Main image"))
	assert.Equal(t, StateMediaPicking, s.State())
	_, ok = s.ActiveEditor()
	assert.False(t, ok)
	p, ok := s.ActivePicker()
	require.True(t, ok)
	assert.Equal(t, "https://cdn/a.jpg", p.CurrentURL)

	s.CloseMediaPicker()
	assert.Equal(t, StateLoaded, s.State())
	_, ok = s.ActivePicker()
	assert.False(t, ok)

	require.NoError(t, s.OpenEditor("hero.title_start", "shown"))
	s.CloseEditor()
	assert.Equal(t, StateLoaded, s.State())
}

func TestUpdateMediaStripsCacheBustAndBroadcasts(t *testing.T) {
	h := newHarness(t)
	s := h.session(t, "et")

	require.NoError(t, s.UpdateMedia("hero.images.k", "https://x/img.png?_t=123"))

	assert.Equal(t, domain.ContentMap{"hero.images.k": "https://x/img.png"}, s.PendingMedia())
	display, ok := s.MediaURL("hero.images.k")
	require.True(t, ok)
	assert.Equal(t, "https://x/img.png?_t=777", display)

	require.Len(t, h.events, 1)
	assert.Equal(t, domain.EventMediaCacheUpdated, h.events[0].Name)
	assert.Equal(t, "hero.images.k", h.events[0].Key)
	assert.Equal(t, display, h.events[0].URL)
	assert.Equal(t, "tab-1", h.events[0].Source)

	res := s.SaveChanges(context.Background())
	require.True(t, res.OK())
	require.Equal(t, []domain.MediaUpdate{{ReferenceKey: "hero.images.k", MediaPath: "https://x/img.png"}}, h.backend.LastMediaUpdate())
}

func TestBareMediaSlotIsSavedUnderPageKey(t *testing.T) {
	h := newHarness(t)
	s := h.session(t, "et")

	require.NoError(t, s.OpenMediaPicker("main_image", "", "Main"))
	p, ok := s.ActivePicker()
	require.True(t, ok)
	assert.Equal(t, "hero.images.main_image", p.Key)

	require.NoError(t, s.UpdateMedia("main_image", "https://cdn/new.jpg"))
	assert.Equal(t, domain.ContentMap{"hero.images.main_image": "https://cdn/new.jpg"}, s.PendingMedia())
	_, ok = s.MediaURL("main_image")
	assert.True(t, ok)
	assert.Equal(t, "hero.images.main_image", h.events[len(h.events)-1].Key)

	res := s.SaveChanges(context.Background())
	require.True(t, res.OK())
	require.Equal(t, []domain.MediaUpdate{{ReferenceKey: "hero.images.main_image", MediaPath: "https://cdn/new.jpg"}}, h.backend.LastMediaUpdate())
}

func TestBareKeyMediaDraftIsRekeyedOnLoad(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.storage.SetItem(domain.MediaDraftKey("home"), `{"main_image":"https://cdn/old-draft.jpg"}`))

	s := h.session(t, "et")
	assert.Equal(t, domain.ContentMap{"hero.images.main_image": "https://cdn/old-draft.jpg"}, s.PendingMedia())
}

func TestPartialSaveKeepsFailedCategory(t *testing.T) {
	h := newHarness(t)
	h.backend.UpdateMediaErr = errors.New("media store down")
	s := h.session(t, "et")

	require.NoError(t, s.UpdateContent("hero.title_start", "Uus"))
	require.NoError(t, s.UpdateMedia("hero.main_image", "https://cdn/new.jpg"))

	res := s.SaveChanges(context.Background())

	assert.False(t, res.OK())
	assert.NoError(t, res.TextErr)
	assert.Error(t, res.MediaErr)
	assert.Equal(t, 1, res.TextSaved)
	assert.Empty(t, s.PendingText())
	assert.Equal(t, domain.ContentMap{"hero.main_image": "https://cdn/new.jpg"}, s.PendingMedia())

	_, ok := h.storage.GetItem(domain.TextDraftKey("home", "et"))
	assert.False(t, ok)
	_, ok = h.storage.GetItem(domain.MediaDraftKey("home"))
	assert.True(t, ok)

	// Text succeeded, so caches were invalidated and the change announced.
	assert.NotZero(t, res.Timestamp)
	assert.Contains(t, h.texts.invalidated, "hero/et")
	var sawContent bool
	for _, ev := range h.events {
		if ev.Name == domain.EventContentUpdated {
			sawContent = true
			assert.Equal(t, "et", ev.Language)
		}
	}
	assert.True(t, sawContent)

	// Retrying only sends what is still outstanding.
	h.backend.UpdateMediaErr = nil
	res = s.SaveChanges(context.Background())
	assert.True(t, res.OK())
	assert.Equal(t, 0, res.TextSaved)
	assert.Equal(t, 1, res.MediaSaved)
	assert.False(t, s.HasPendingChanges())
	assert.Len(t, h.backend.TextUpdates, 1)
}

func TestFailedSaveDoesNotInvalidate(t *testing.T) {
	h := newHarness(t)
	h.backend.UpdateTextErr = errors.New("down")
	s := h.session(t, "et")
	require.NoError(t, s.UpdateContent("hero.title_start", "Uus"))

	before := h.bus.Timestamp()
	res := s.SaveChanges(context.Background())

	assert.False(t, res.OK())
	assert.Zero(t, res.Timestamp)
	assert.Equal(t, before, h.bus.Timestamp())
	assert.Equal(t, domain.ContentMap{"hero.title_start": "Uus"}, s.PendingText())
	assert.Equal(t, StateLoaded, s.State())
}

func TestLanguageLockSurvivesDisplayChanges(t *testing.T) {
	h := newHarness(t)
	s := h.session(t, "et")

	require.NoError(t, s.UpdateContent("hero.title_start", "Tere"))
	// Display-side traffic for another language does not move the lock.
	h.bus.Publish(domain.EventContentUpdated, domain.Event{Language: "en"})

	res := s.SaveChanges(context.Background())
	require.True(t, res.OK())
	assert.Equal(t, []domain.TranslationUpdate{{Path: "hero.title_start", Content: "Tere", LanguageCode: "et"}}, h.backend.LastTextUpdate())
}

func TestLanguageChangeEventSwitchesLock(t *testing.T) {
	h := newHarness(t)
	s := h.session(t, "et")

	// An older English draft survives in storage.
	require.NoError(t, h.storage.SetItem(domain.TextDraftKey("home", "en"), `{"hero.title_start":"Draft EN"}`))
	require.NoError(t, s.UpdateContent("hero.title_start", "Mustand ET"))
	require.NoError(t, s.OpenEditor("hero.title_start", ""))

	h.bus.Publish(domain.EventLanguageChanged, domain.Event{Language: "en"})

	assert.Equal(t, "en", s.Language())
	assert.Equal(t, StateLoaded, s.State())
	assert.Equal(t, domain.ContentMap{"hero.title_start": "Draft EN"}, s.PendingText())
	assert.Contains(t, h.texts.invalidated, "hero/en")
	assert.Equal(t, []string{"et", "en"}, h.texts.opened)
	assert.True(t, h.texts.sources[0].closed)

	// The Estonian draft is still durable for later.
	raw, ok := h.storage.GetItem(domain.TextDraftKey("home", "et"))
	require.True(t, ok)
	assert.JSONEq(t, `{"hero.title_start":"Mustand ET"}`, raw)

	require.NoError(t, s.UpdateContent("hero.title_start", "Hello"))
	require.True(t, s.SaveChanges(context.Background()).OK())
	assert.Equal(t, "en", h.backend.LastTextUpdate()[0].LanguageCode)

	// Repeating the event is a no-op.
	h.bus.Publish(domain.EventLanguageChanged, domain.Event{Language: "en"})
	assert.Len(t, h.texts.opened, 2)
}

func TestMediaLibraryIsFetchedOnce(t *testing.T) {
	h := newHarness(t)
	h.backend.Library = []string{"https://cdn/1.jpg", "https://cdn/2.jpg"}
	s := h.session(t, "et")
	assert.Zero(t, h.backend.LibraryFetches, "nothing is fetched on load")

	require.NoError(t, s.OpenMediaPicker("hero.main_image", "", "Main"))
	first, err := s.MediaLibrary(context.Background())
	require.NoError(t, err)
	second, err := s.MediaLibrary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.backend.LibraryFetches)
}

type blockingBackend struct {
	*backendtest.Fake
	entered chan struct{}
	release chan struct{}
}

func (b *blockingBackend) UpdateTranslations(ctx context.Context, updates []domain.TranslationUpdate) error {
	close(b.entered)
	<-b.release
	return b.Fake.UpdateTranslations(ctx, updates)
}

func TestSaveInProgressRejectsEdits(t *testing.T) {
	h := newHarness(t)
	bb := &blockingBackend{Fake: h.backend, entered: make(chan struct{}), release: make(chan struct{})}
	deps := h.deps()
	deps.Backend = bb
	s := NewSession(Config{PageID: "home", Prefix: "hero", Language: "et", Privileged: true}, deps)
	require.NoError(t, s.Load())
	defer s.Close()

	require.NoError(t, s.UpdateContent("hero.title_start", "Uus"))

	done := make(chan SaveResult, 1)
	go func() { done <- s.SaveChanges(context.Background()) }()
	<-bb.entered

	assert.Equal(t, StateSaving, s.State())
	assert.ErrorIs(t, s.UpdateContent("hero.title_start", "x"), domain.ErrEditorBusy)
	assert.ErrorIs(t, s.OpenEditor("hero.title_start", ""), domain.ErrEditorBusy)
	assert.ErrorIs(t, s.SaveChanges(context.Background()).TextErr, domain.ErrEditorBusy)

	close(bb.release)
	res := <-done
	assert.True(t, res.OK())
	assert.Equal(t, StateLoaded, s.State())
}

func TestReadOnlySessionIsInert(t *testing.T) {
	h := newHarness(t)
	s := NewSession(Config{PageID: "home", Prefix: "hero", Language: "et"}, h.deps())

	require.NoError(t, s.Load())
	assert.False(t, s.Privileged())
	assert.Equal(t, StateIdle, s.State())
	assert.Equal(t, "hero.title_start", s.GetFieldContent("hero.title_start"))
	assert.ErrorIs(t, s.OpenEditor("hero.title_start", ""), domain.ErrNotPrivileged)
	assert.ErrorIs(t, s.UpdateContent("hero.title_start", "x"), domain.ErrNotPrivileged)
	assert.ErrorIs(t, s.UpdateMedia("k", "u"), domain.ErrNotPrivileged)
	assert.False(t, s.SaveChanges(context.Background()).OK())
	assert.False(t, s.HasPendingChanges())

	assert.Empty(t, h.storage.Keys(""))
	assert.Empty(t, h.events)
	assert.Empty(t, h.texts.opened)
}

func TestCorruptDraftIsReportedAndIgnored(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.storage.SetItem(domain.TextDraftKey("home", "et"), "{broken"))

	s := NewSession(Config{PageID: "home", Prefix: "hero", Language: "et", Privileged: true}, h.deps())
	defer s.Close()

	assert.Error(t, s.Load())
	assert.Equal(t, StateLoaded, s.State())
	assert.False(t, s.HasPendingChanges())
}
