package domain

import "context"

// MediaUpdate is one entry of a media save batch. MediaPath is always canonical.
type MediaUpdate struct {
	ReferenceKey string `json:"referenceKey"`
	MediaPath    string `json:"mediaPath"`
}

// TranslationUpdate is one entry of a text save batch.
type TranslationUpdate struct {
	Path         string `json:"path"`
	Content      string `json:"content"`
	LanguageCode string `json:"languageCode"`
}

// MediaBackend resolves and persists media references.
type MediaBackend interface {
	// FetchMedia returns resolved URLs for keys; missing keys are absent.
	FetchMedia(ctx context.Context, pageID string, keys []string) (map[string]string, error)
	UpdateMedia(ctx context.Context, updates []MediaUpdate) error
	// MediaLibrary lists every asset available to the picker.
	MediaLibrary(ctx context.Context) ([]string, error)
}

// TranslationBackend resolves and persists translated text.
type TranslationBackend interface {
	FetchTranslations(ctx context.Context, language, prefix string) (map[string]string, error)
	UpdateTranslations(ctx context.Context, updates []TranslationUpdate) error
}

// Backend is the black-box content store.
type Backend interface {
	MediaBackend
	TranslationBackend
}
