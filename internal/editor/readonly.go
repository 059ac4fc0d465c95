package editor

import (
	"context"

	"github.com/jantomson/steelbuckle-sub000/internal/domain"
)

// readOnly is the session of a user without edit rights.
type readOnly struct {
	language string
}

var _ Session = readOnly{}

func (readOnly) Load() error { return nil }
func (readOnly) State() State { return StateIdle }
func (r readOnly) Language() string { return r.language }
func (readOnly) Privileged() bool { return false }
func (readOnly) GetFieldContent(key string) string { return key }

func (readOnly) OpenEditor(string, string) error { return domain.ErrNotPrivileged }
func (readOnly) ActiveEditor() (FieldEditor, bool) { return FieldEditor{}, false }
func (readOnly) UpdateContent(string, string) error {
	return domain.ErrNotPrivileged
}
func (readOnly) CloseEditor() {}

func (readOnly) OpenMediaPicker(string, string, string) error { return domain.ErrNotPrivileged }
func (readOnly) ActivePicker() (MediaPicker, bool) { return MediaPicker{}, false }
func (readOnly) MediaLibrary(context.Context) ([]string, error) {
	return nil, domain.ErrNotPrivileged
}
func (readOnly) UpdateMedia(string, string) error { return domain.ErrNotPrivileged }
func (readOnly) MediaURL(string) (string, bool) { return "", false }
func (readOnly) CloseMediaPicker() {}
func (readOnly) HasPendingChanges() bool { return false }
func (readOnly) PendingText() domain.ContentMap { return domain.ContentMap{} }
func (readOnly) PendingMedia() domain.ContentMap { return domain.ContentMap{} }
func (readOnly) Close() {}

func (readOnly) SaveChanges(context.Context) SaveResult {
	return SaveResult{TextErr: domain.ErrNotPrivileged, MediaErr: domain.ErrNotPrivileged}
}
