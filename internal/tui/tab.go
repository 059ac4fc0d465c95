package tui

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jantomson/steelbuckle-sub000/internal/document"
	"github.com/jantomson/steelbuckle-sub000/internal/domain"
	"github.com/jantomson/steelbuckle-sub000/internal/editor"
	"github.com/jantomson/steelbuckle-sub000/internal/media"
	"github.com/jantomson/steelbuckle-sub000/internal/translation"
)

// rowKind distinguishes text keys from media slots in the key list
type rowKind int

const (
	rowText rowKind = iota
	rowMedia
)

// row is one editable key of the page
type row struct {
	kind rowKind
	key  string
}

// tab is one open document showing one page in one language
type tab struct {
	doc     *document.Document
	page    domain.Page
	lang    string
	notify  func()
	logger  *slog.Logger
	media   *media.Resolver
	texts   *translation.Resolver
	session editor.Session
	rows    []row
}

func newTab(ctx context.Context, doc *document.Document, page domain.Page, lang string, privileged bool, notify func(), logger *slog.Logger) (*tab, error) {
	t := &tab{doc: doc, lang: lang, notify: notify, logger: logger}
	doc.Start(ctx)
	err := t.open(page, privileged)
	return t, err
}

func (t *tab) id() string { return t.doc.ID() }

// open mounts resolvers and an edit session for page. A draft decode error
// is reported but leaves the tab usable.
func (t *tab) open(page domain.Page, privileged bool) error {
	t.page = page
	t.media = t.doc.MediaResolver(page, media.WithOnChange(t.notify))
	t.media.Mount()
	t.openTexts()

	t.session = t.doc.EditSession(page, t.lang, privileged)
	err := t.session.Load()
	if err != nil {
		t.logger.Warn("draft restore failed", "page", page.ID, "error", err)
	}

	t.rows = t.rows[:0]
	for _, k := range page.Text {
		t.rows = append(t.rows, row{kind: rowText, key: k})
	}
	for _, k := range page.MediaKeys() {
		t.rows = append(t.rows, row{kind: rowMedia, key: k})
	}
	return err
}

func (t *tab) openTexts() {
	t.texts = t.doc.TranslationResolver(t.page.Prefix, t.lang, translation.WithOnChange(t.notify))
	t.texts.Mount()
}

// switchPage replaces the page shown in the tab. Drafts stay in durable storage.
func (t *tab) switchPage(page domain.Page) error {
	privileged := t.session.Privileged()
	t.closePage()
	return t.open(page, privileged)
}

// setLanguage announces the switch on the document bus, which moves the
// session's language lock, and reopens the text resolver for lang.
func (t *tab) setLanguage(lang string) {
	if lang == t.lang {
		return
	}
	t.lang = lang
	t.doc.SetLanguage(lang)
	t.texts.Close()
	t.openTexts()
}

// text returns the displayed value of a text key, drafts first when editing.
func (t *tab) text(key string) string {
	if t.session.Privileged() {
		return t.session.GetFieldContent(key)
	}
	return t.texts.Text(key, key)
}

// mediaURL returns the displayed URL of a media slot, drafts first.
func (t *tab) mediaURL(key string) string {
	if u, ok := t.session.MediaURL(key); ok {
		return u
	}
	return t.media.ImageURL(key, "")
}

func (t *tab) value(r row) string {
	if r.kind == rowMedia {
		return t.mediaURL(r.key)
	}
	return t.text(r.key)
}

func (t *tab) pending(r row) bool {
	if r.kind == rowMedia {
		_, ok := t.session.MediaURL(r.key)
		return ok
	}
	_, ok := t.session.PendingText()[r.key]
	return ok
}

func (t *tab) loading() bool {
	return t.media.Loading() || t.texts.Loading() || t.session.State() == editor.StateSaving
}

// fetchErr reports the last resolution failure of either resolver.
func (t *tab) fetchErr() error {
	return errors.Join(t.media.Err(), t.texts.Err())
}

func (t *tab) closePage() {
	t.session.Close()
	t.texts.Close()
	t.media.Close()
}

func (t *tab) close() {
	t.closePage()
	t.doc.Close()
}
