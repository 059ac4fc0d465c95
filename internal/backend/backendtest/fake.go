// Package backendtest provides an in-memory domain.Backend for tests.
package backendtest

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
	"github.com/jantomson/steelbuckle-sub000/internal/keys"
)

var _ domain.Backend = (*Fake)(nil)

// Fake stores media and translations in memory and records every call.
type Fake struct {
	mu sync.Mutex

	Media        map[string]string            // storage key -> URL
	Translations map[string]map[string]string // language -> path -> text
	Library      []string

	FetchMediaErr        error
	UpdateMediaErr       error
	LibraryErr           error
	FetchTranslationsErr error
	UpdateTextErr        error

	// Hooks replace the default behaviour when set.
	FetchMediaHook        func(ctx context.Context, pageID string, keys []string) (map[string]string, error)
	FetchTranslationsHook func(ctx context.Context, language, prefix string) (map[string]string, error)

	MediaFetches       int
	TranslationFetches int
	LibraryFetches     int
	MediaUpdates       [][]domain.MediaUpdate
	TextUpdates        [][]domain.TranslationUpdate
}

// New creates an empty fake.
func New() *Fake {
	return &Fake{
		Media:        make(map[string]string),
		Translations: make(map[string]map[string]string),
	}
}

// SetText stores one translation.
func (f *Fake) SetText(language, path, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Translations[language] == nil {
		f.Translations[language] = make(map[string]string)
	}
	f.Translations[language][path] = text
}

// SetMedia stores one media reference.
func (f *Fake) SetMedia(key, url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Media[key] = url
}

func (f *Fake) FetchMedia(ctx context.Context, pageID string, ks []string) (map[string]string, error) {
	f.mu.Lock()
	f.MediaFetches++
	hook, err := f.FetchMediaHook, f.FetchMediaErr
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, pageID, ks)
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for _, k := range ks {
		for _, c := range keys.Candidates(pageID, k) {
			if v, ok := f.Media[c]; ok {
				out[c] = v
			}
		}
	}
	return out, nil
}

func (f *Fake) UpdateMedia(ctx context.Context, updates []domain.MediaUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MediaUpdates = append(f.MediaUpdates, slices.Clone(updates))
	if f.UpdateMediaErr != nil {
		return f.UpdateMediaErr
	}
	for _, u := range updates {
		f.Media[u.ReferenceKey] = u.MediaPath
	}
	return nil
}

func (f *Fake) MediaLibrary(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LibraryFetches++
	if f.LibraryErr != nil {
		return nil, f.LibraryErr
	}
	return slices.Clone(f.Library), nil
}

func (f *Fake) FetchTranslations(ctx context.Context, language, prefix string) (map[string]string, error) {
	f.mu.Lock()
	f.TranslationFetches++
	hook, err := f.FetchTranslationsHook, f.FetchTranslationsErr
	f.mu.Unlock()

	if hook != nil {
		return hook(ctx, language, prefix)
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.Translations[language]), nil
}

func (f *Fake) UpdateTranslations(ctx context.Context, updates []domain.TranslationUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TextUpdates = append(f.TextUpdates, slices.Clone(updates))
	if f.UpdateTextErr != nil {
		return f.UpdateTextErr
	}
	for _, u := range updates {
		if f.Translations[u.LanguageCode] == nil {
			f.Translations[u.LanguageCode] = make(map[string]string)
		}
		f.Translations[u.LanguageCode][u.Path] = u.Content
	}
	return nil
}

// Counts returns the number of media and translation fetches so far.
func (f *Fake) Counts() (media, text int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.MediaFetches, f.TranslationFetches
}

// LastMediaUpdate returns the most recent media batch, if any.
func (f *Fake) LastMediaUpdate() []domain.MediaUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.MediaUpdates) == 0 {
		return nil
	}
	return f.MediaUpdates[len(f.MediaUpdates)-1]
}

// LastTextUpdate returns the most recent translation batch, if any.
func (f *Fake) LastTextUpdate() []domain.TranslationUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.TextUpdates) == 0 {
		return nil
	}
	return f.TextUpdates[len(f.TextUpdates)-1]
}
