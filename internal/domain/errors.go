package domain

import "errors"

// Sentinel errors for content operations
var (
	// ErrServerOffline indicates the content backend is unreachable
	ErrServerOffline = errors.New("content backend is unreachable")

	// ErrUnauthorized indicates the backend rejected the editor's credentials
	ErrUnauthorized = errors.New("backend rejected credentials")

	// ErrUnexpectedStatus indicates the backend answered with a non-success status
	ErrUnexpectedStatus = errors.New("unexpected backend status")

	// ErrDecode indicates the backend response could not be parsed
	ErrDecode = errors.New("failed to decode backend response")

	// ErrFetchTimeout indicates a resolution fetch did not settle in time
	ErrFetchTimeout = errors.New("fetch timed out")

	// ErrNotPrivileged indicates an edit operation was attempted outside edit mode
	ErrNotPrivileged = errors.New("edit mode is not enabled")

	// ErrEditorBusy indicates a save is already running for the session
	ErrEditorBusy = errors.New("a save is already in progress")

	// ErrSpamDetected is returned for every rejected contact submission
	ErrSpamDetected = errors.New("submission rejected")
)
