package tui

import tea "github.com/charmbracelet/bubbletea"

// ChannelObserver adapts resolver change callbacks to a channel for Bubble Tea.
type ChannelObserver struct {
	ch chan string
}

// NewChannelObserver creates a new channel-based observer.
func NewChannelObserver(size int) *ChannelObserver {
	return &ChannelObserver{ch: make(chan string, size)}
}

// Notifier returns a change callback tagged with tabID.
func (o *ChannelObserver) Notifier(tabID string) func() {
	return func() {
		select {
		case o.ch <- tabID:
		default: // a pending notification already triggers a redraw
		}
	}
}

// Wait blocks until the next change and reports it as a ChangedMsg.
func (o *ChannelObserver) Wait() tea.Cmd {
	return func() tea.Msg {
		return ChangedMsg{TabID: <-o.ch}
	}
}
