package editor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
	"github.com/jantomson/steelbuckle-sub000/internal/keys"
)

type active struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	language string
	text     domain.ContentMap // pending text for the locked language
	media    domain.ContentMap // pending canonical media URLs
	display  domain.ContentMap // cache-busted copies of pending media
	editor   *FieldEditor
	picker   *MediaPicker
	library  []string
	source   TextSource
	unsub    func()
	closed   bool
}

var _ Session = (*active)(nil)

func newActive(cfg Config, deps Deps) *active {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &active{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger.With("page", cfg.PageID),
		state:    StateIdle,
		language: cfg.Language,
		text:     domain.ContentMap{},
		media:    domain.ContentMap{},
		display:  domain.ContentMap{},
	}
}

func (s *active) Load() error {
	s.mu.Lock()
	if s.state != StateIdle || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateLoaded
	lang := s.language
	s.mu.Unlock()

	text, textErr := loadDraft(s.deps.Storage, domain.TextDraftKey(s.cfg.PageID, lang))
	if textErr != nil {
		s.logger.Warn("discarding unreadable text draft", "language", lang, "error", textErr)
	}
	media, mediaErr := loadDraft(s.deps.Storage, domain.MediaDraftKey(s.cfg.PageID))
	if mediaErr != nil {
		s.logger.Warn("discarding unreadable media draft", "error", mediaErr)
	}
	source := s.deps.Texts.Open(s.cfg.Prefix, lang)

	media = s.canonicalMedia(media)

	s.mu.Lock()
	s.text = text
	s.media = media
	s.display = domain.ContentMap{}
	for k, v := range media {
		s.display[k] = domain.WithCacheBust(v, s.deps.Now().UnixMilli())
	}
	s.source = source
	s.mu.Unlock()

	if s.deps.Bus != nil {
		unsub := s.deps.Bus.Subscribe(domain.EventLanguageChanged, s.onLanguageChanged)
		s.mu.Lock()
		s.unsub = unsub
		s.mu.Unlock()
	}

	s.logger.Debug("edit session loaded", "language", lang, "text_drafts", len(text), "media_drafts", len(media))
	if textErr != nil {
		return textErr
	}
	return mediaErr
}

// ensureLoaded loads the session on first use.
func (s *active) ensureLoaded() {
	s.mu.Lock()
	idle := s.state == StateIdle && !s.closed
	s.mu.Unlock()
	if idle {
		_ = s.Load()
	}
}

func (s *active) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *active) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

func (s *active) Privileged() bool { return true }

// GetFieldContent prefers the draft, then the translation in the locked
// language, then the key itself.
func (s *active) GetFieldContent(key string) string {
	s.ensureLoaded()

	s.mu.Lock()
	if v, ok := s.text[key]; ok {
		s.mu.Unlock()
		return v
	}
	source := s.source
	s.mu.Unlock()

	if source != nil {
		if v, ok := source.Lookup(key); ok && v != "" {
			return v
		}
	}
	return key
}

func (s *active) OpenEditor(key, currentText string) error {
	s.ensureLoaded()
	if currentText == "" {
		currentText = s.GetFieldContent(key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSaving {
		return domain.ErrEditorBusy
	}
	if v, ok := s.text[key]; ok {
		currentText = v
	}
	s.picker = nil
	s.editor = &FieldEditor{Key: key, Text: currentText}
	s.state = StateEditing
	return nil
}

func (s *active) ActiveEditor() (FieldEditor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editor == nil {
		return FieldEditor{}, false
	}
	return *s.editor, true
}

// UpdateContent records text as a draft and persists the whole draft
// for the page and locked language immediately.
func (s *active) UpdateContent(key, text string) error {
	s.ensureLoaded()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSaving {
		return domain.ErrEditorBusy
	}

	s.text[key] = text
	if s.editor != nil && s.editor.Key == key {
		s.editor.Text = text
	}
	if err := saveDraft(s.deps.Storage, domain.TextDraftKey(s.cfg.PageID, s.language), s.text); err != nil {
		s.logger.Error("failed to persist text draft", "key", key, "language", s.language, "error", err)
		return fmt.Errorf("persist text draft: %w", err)
	}
	return nil
}

func (s *active) CloseEditor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editor = nil
	if s.state == StateEditing {
		s.state = StateLoaded
	}
}

// mediaKey returns the storage key of a media slot. A bare slot name
// lives under the page's images namespace.
func (s *active) mediaKey(key string) string {
	key = strings.TrimSpace(key)
	if s.cfg.Prefix == "" || domain.IsQualified(key) {
		return key
	}
	return keys.Candidates(s.cfg.Prefix, key)[0]
}

// canonicalMedia rekeys a media draft by storage key. Drafts written with
// bare slot names are carried over.
func (s *active) canonicalMedia(draft domain.ContentMap) domain.ContentMap {
	out := make(domain.ContentMap, len(draft))
	for _, k := range draft.SortedKeys() {
		ck := s.mediaKey(k)
		if _, exact := draft[ck]; exact && ck != k {
			continue
		}
		out[ck] = draft[k]
	}
	return out
}

func (s *active) OpenMediaPicker(key, currentURL, label string) error {
	s.ensureLoaded()
	key = s.mediaKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateSaving {
		return domain.ErrEditorBusy
	}
	if v, ok := s.media[key]; ok {
		currentURL = v
	}
	s.editor = nil
	s.picker = &MediaPicker{Key: key, CurrentURL: domain.StripCacheBust(currentURL), Label: label}
	s.state = StateMediaPicking
	return nil
}

func (s *active) ActivePicker() (MediaPicker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.picker == nil {
		return MediaPicker{}, false
	}
	return *s.picker, true
}

// MediaLibrary lists the assets available to the picker. The list is
// fetched once per session.
func (s *active) MediaLibrary(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	if s.library != nil {
		out := append([]string(nil), s.library...)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	items, err := s.deps.Backend.MediaLibrary(ctx)
	if err != nil {
		s.logger.Warn("failed to load media library", "error", err)
		return nil, err
	}
	if items == nil {
		items = []string{}
	}

	s.mu.Lock()
	s.library = items
	s.mu.Unlock()
	return append([]string(nil), items...), nil
}

// UpdateMedia records url for key under its storage key. The canonical
// value (no cache-bust suffix) is drafted; a busted copy is shown and
// broadcast right away.
func (s *active) UpdateMedia(key, url string) error {
	s.ensureLoaded()
	key = s.mediaKey(key)
	canonical := domain.StripCacheBust(url)
	now := s.deps.Now().UnixMilli()
	display := domain.WithCacheBust(canonical, now)

	s.mu.Lock()
	if s.state == StateSaving {
		s.mu.Unlock()
		return domain.ErrEditorBusy
	}
	s.media[key] = canonical
	s.display[key] = display
	if s.picker != nil && s.picker.Key == key {
		s.picker.CurrentURL = canonical
	}
	err := saveDraft(s.deps.Storage, domain.MediaDraftKey(s.cfg.PageID), s.media)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("failed to persist media draft", "key", key, "error", err)
	}
	if s.deps.Bus != nil {
		s.deps.Bus.Publish(domain.EventMediaCacheUpdated, domain.Event{
			Timestamp: now,
			Key:       key,
			URL:       display,
			Source:    s.cfg.Source,
		})
	}
	if err != nil {
		return fmt.Errorf("persist media draft: %w", err)
	}
	return nil
}

// MediaURL returns the display copy of a pending media edit.
func (s *active) MediaURL(key string) (string, bool) {
	key = s.mediaKey(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.display[key]
	return v, ok
}

func (s *active) CloseMediaPicker() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.picker = nil
	if s.state == StateMediaPicking {
		s.state = StateLoaded
	}
}

func (s *active) HasPendingChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.text) > 0 || len(s.media) > 0
}

func (s *active) PendingText() domain.ContentMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.Clone()
}

func (s *active) PendingMedia() domain.ContentMap {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.media.Clone()
}

// onLanguageChanged switches the locked language: in-memory text drafts
// are dropped, the durable draft of the new language is loaded and cached
// text for it is treated as stale.
func (s *active) onLanguageChanged(ev domain.Event) {
	lang := ev.Language
	if lang == "" {
		return
	}

	s.mu.Lock()
	if s.closed || lang == s.language {
		s.mu.Unlock()
		return
	}
	prev := s.language
	s.language = lang
	s.editor = nil
	s.picker = nil
	if s.state == StateEditing || s.state == StateMediaPicking {
		s.state = StateLoaded
	}
	oldSource := s.source
	s.source = nil
	s.mu.Unlock()

	text, err := loadDraft(s.deps.Storage, domain.TextDraftKey(s.cfg.PageID, lang))
	if err != nil {
		s.logger.Warn("discarding unreadable text draft", "language", lang, "error", err)
	}
	s.deps.Texts.Invalidate(s.cfg.Prefix, lang)
	if oldSource != nil {
		oldSource.Close()
	}
	source := s.deps.Texts.Open(s.cfg.Prefix, lang)

	s.mu.Lock()
	if s.closed || s.language != lang {
		// Closed or switched again meanwhile.
		s.mu.Unlock()
		source.Close()
		return
	}
	s.text = text
	s.source = source
	s.mu.Unlock()

	s.logger.Info("editing language changed", "from", prev, "to", lang, "text_drafts", len(text))
}

func (s *active) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.state = StateIdle
	s.editor = nil
	s.picker = nil
	unsub, source := s.unsub, s.source
	s.unsub, s.source = nil, nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if source != nil {
		source.Close()
	}
}
