package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jantomson/steelbuckle-sub000/internal/editor"
)

// Command factories for async operations

// SaveCmd sends the session's pending drafts to the backend
func SaveCmd(tabID string, session editor.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		return SavedMsg{TabID: tabID, Result: session.SaveChanges(ctx)}
	}
}

// LoadLibraryCmd loads the media library for the picker
func LoadLibraryCmd(tabID string, session editor.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		urls, err := session.MediaLibrary(ctx)
		return LibraryLoadedMsg{TabID: tabID, URLs: urls, Err: err}
	}
}

// OpenPreviewCmd hands a media URL to an external viewer
func OpenPreviewCmd(p Previewer, url string) tea.Cmd {
	return func() tea.Msg {
		if err := p.Open(url); err != nil {
			return ErrMsg{Err: err, Context: "opening media"}
		}
		return PreviewOpenedMsg{URL: url}
	}
}

// ClearStatusCmd clears the status message after a delay
func ClearStatusCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return ClearStatusMsg{}
	})
}
