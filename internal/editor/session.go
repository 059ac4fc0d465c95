// Package editor implements the in-place edit session of one page: the
// locked editing language, durable drafts, the open editor or picker, and
// saving with cache invalidation.
package editor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

// State is the UI state of a session.
type State int

const (
	StateIdle State = iota
	StateLoaded
	StateEditing
	StateMediaPicking
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateEditing:
		return "editing"
	case StateMediaPicking:
		return "media-picking"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}

// TextSource resolves translated text for the locked language.
type TextSource interface {
	Lookup(key string) (string, bool)
	Close()
}

// Translations opens text sources and marks cached text stale.
type Translations interface {
	Open(prefix, language string) TextSource
	Invalidate(prefix, language string)
}

// MediaInvalidator clears cached media and broadcasts a new invalidation timestamp.
type MediaInvalidator interface {
	InvalidateAll() int64
}

// Config identifies the page a session edits.
type Config struct {
	PageID     string
	Prefix     string
	Language   string
	Privileged bool
	// Source tags the events this session publishes.
	Source string
}

// Deps are the collaborators of an active session.
type Deps struct {
	Storage domain.LocalStorage
	Backend domain.Backend
	Media   MediaInvalidator
	Texts   Translations
	Bus     domain.EventBus
	Logger  *slog.Logger
	Now     func() time.Time
}

// FieldEditor is the open text editor.
type FieldEditor struct {
	Key  string
	Text string
}

// MediaPicker is the open media picker.
type MediaPicker struct {
	Key        string
	CurrentURL string
	Label      string
}

// SaveResult reports each content category separately; one may succeed
// while the other fails.
type SaveResult struct {
	TextErr    error
	MediaErr   error
	TextSaved  int
	MediaSaved int
	// Timestamp is the invalidation timestamp set after a successful save, or 0.
	Timestamp int64
}

// OK reports whether nothing failed.
func (r SaveResult) OK() bool {
	return r.TextErr == nil && r.MediaErr == nil
}

// Err joins the per-category errors.
func (r SaveResult) Err() error {
	return errors.Join(r.TextErr, r.MediaErr)
}

// Session is the edit contract of one page. A session for a
// non-privileged user implements every method as a no-op.
type Session interface {
	// Load restores drafts for the page and starts listening for language changes.
	Load() error
	State() State
	Language() string
	Privileged() bool

	GetFieldContent(key string) string
	OpenEditor(key, currentText string) error
	ActiveEditor() (FieldEditor, bool)
	UpdateContent(key, text string) error
	CloseEditor()

	OpenMediaPicker(key, currentURL, label string) error
	ActivePicker() (MediaPicker, bool)
	MediaLibrary(ctx context.Context) ([]string, error)
	UpdateMedia(key, url string) error
	MediaURL(key string) (string, bool)
	CloseMediaPicker()

	SaveChanges(ctx context.Context) SaveResult
	HasPendingChanges() bool
	PendingText() domain.ContentMap
	PendingMedia() domain.ContentMap

	Close()
}

// NewSession returns an active session for privileged users and a
// read-only one otherwise.
func NewSession(cfg Config, deps Deps) Session {
	if !cfg.Privileged {
		return readOnly{language: cfg.Language}
	}
	return newActive(cfg, deps)
}
