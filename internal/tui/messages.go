package tui

import "github.com/jantomson/steelbuckle-sub000/internal/editor"

// Message types for the TUI

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// ChangedMsg signals that a resolver of a tab has new content or loading state
type ChangedMsg struct {
	TabID string
}

// SavedMsg carries the outcome of a save
type SavedMsg struct {
	TabID  string
	Result editor.SaveResult
}

// LibraryLoadedMsg carries the media library for the picker
type LibraryLoadedMsg struct {
	TabID string
	URLs  []string
	Err   error
}

// PreviewOpenedMsg signals that a media URL was handed to a viewer
type PreviewOpenedMsg struct {
	URL string
}

// ClearStatusMsg clears the status bar message
type ClearStatusMsg struct{}

// StatusMsg sets a temporary status message
type StatusMsg struct {
	Message string
	IsError bool
}
