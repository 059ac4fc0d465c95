package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jantomson/steelbuckle-sub000/internal/document"
	"github.com/jantomson/steelbuckle-sub000/internal/domain"
	"github.com/jantomson/steelbuckle-sub000/internal/editor"
	"github.com/jantomson/steelbuckle-sub000/internal/search"
	"github.com/jantomson/steelbuckle-sub000/internal/tui/components"
	"github.com/jantomson/steelbuckle-sub000/internal/tui/styles"
)

// ApplicationState represents the current state of the application
type ApplicationState int

const (
	StateBrowsing ApplicationState = iota
	StateFiltering
	StateHelp
)

// ChromeHeight is the number of lines taken by the tab bar, header and footer
const ChromeHeight = 4

const statusTimeout = 4 * time.Second

// Previewer opens a media URL outside the terminal
type Previewer interface {
	Open(url string) error
}

// Config selects what the editor shows
type Config struct {
	Pages      []domain.Page
	PageID     string
	Language   string
	Languages  []string
	Privileged bool
}

// Deps are the collaborators of the editor
type Deps struct {
	// NewDocument opens a fresh document (one per tab) over the shared store.
	NewDocument func() *document.Document
	Previewer   Previewer
	Logger      *slog.Logger
}

// Model is the main Bubble Tea model for the application
type Model struct {
	// Application state
	State ApplicationState
	Ready bool

	cfg    Config
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc

	// Tabs
	tabs   []*tab
	active int

	observer *ChannelObserver

	// UI Components
	FieldEditor components.FieldEditor
	MediaPicker components.MediaPicker
	Spinner     spinner.Model
	filter      textinput.Model

	// Key list
	matches []search.Match
	cursor  int
	offset  int

	// Dimensions
	Width  int
	Height int

	// UI state
	StatusMsg   string
	StatusIsErr bool
}

// NewModel creates a new application model with one tab open
func NewModel(cfg Config, deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if len(cfg.Languages) == 0 && cfg.Language != "" {
		cfg.Languages = []string{cfg.Language}
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.SpinnerStyle

	fi := textinput.New()
	fi.Prompt = "/ "
	fi.PromptStyle = styles.FilterPromptStyle
	fi.TextStyle = styles.FilterStyle
	fi.Placeholder = "filter keys"
	fi.PlaceholderStyle = styles.DimStyle

	ctx, cancel := context.WithCancel(context.Background())
	m := Model{
		State:       StateBrowsing,
		cfg:         cfg,
		deps:        deps,
		ctx:         ctx,
		cancel:      cancel,
		observer:    NewChannelObserver(16),
		FieldEditor: components.NewFieldEditor(),
		MediaPicker: components.NewMediaPicker(),
		Spinner:     sp,
		filter:      fi,
	}
	if err := m.openTab(m.startPage()); err != nil {
		m.StatusMsg = "Unreadable draft discarded: " + err.Error()
		m.StatusIsErr = true
	}
	return m
}

func (m Model) startPage() domain.Page {
	for _, p := range m.cfg.Pages {
		if p.ID == m.cfg.PageID {
			return p
		}
	}
	if len(m.cfg.Pages) > 0 {
		return m.cfg.Pages[0]
	}
	return domain.Page{ID: m.cfg.PageID, Prefix: m.cfg.PageID}
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.Spinner.Tick,
		m.observer.Wait(),
	)
}

func (m *Model) current() *tab {
	if len(m.tabs) == 0 {
		return nil
	}
	return m.tabs[m.active]
}

// openTab opens page in a new document and focuses it. A draft restore
// error is returned but the tab stays open.
func (m *Model) openTab(page domain.Page) error {
	lang := m.cfg.Language
	if t := m.current(); t != nil {
		lang = t.lang
	}
	doc := m.deps.NewDocument()
	t, err := newTab(m.ctx, doc, page, lang, m.cfg.Privileged, m.observer.Notifier(doc.ID()), m.deps.Logger)
	m.tabs = append(m.tabs, t)
	m.active = len(m.tabs) - 1
	m.resetList()
	return err
}

func (m *Model) closeTab() {
	t := m.current()
	if t == nil {
		return
	}
	t.close()
	m.tabs = append(m.tabs[:m.active], m.tabs[m.active+1:]...)
	if m.active >= len(m.tabs) {
		m.active = max(len(m.tabs)-1, 0)
	}
	m.resetList()
}

func (m *Model) shutdown() {
	for _, t := range m.tabs {
		t.close()
	}
	m.tabs = nil
	m.cancel()
}

func (m *Model) findTab(id string) *tab {
	for _, t := range m.tabs {
		if t.id() == id {
			return t
		}
	}
	return nil
}

func (m *Model) setStatus(msg string, isErr bool) tea.Cmd {
	m.StatusMsg = msg
	m.StatusIsErr = isErr
	return ClearStatusCmd(statusTimeout)
}

// resetList recomputes the filtered rows of the current tab
func (m *Model) resetList() {
	t := m.current()
	if t == nil {
		m.matches = nil
		return
	}
	names := make([]string, len(t.rows))
	for i, r := range t.rows {
		names[i] = r.key
	}
	m.matches = search.FilterKeys(m.filter.Value(), names)
	if m.cursor >= len(m.matches) {
		m.cursor = max(len(m.matches)-1, 0)
	}
	m.clampOffset()
}

func (m *Model) selectedRow() (row, bool) {
	t := m.current()
	if t == nil || m.cursor >= len(m.matches) {
		return row{}, false
	}
	return t.rows[m.matches[m.cursor].Index], true
}

func (m *Model) listHeight() int {
	return max(m.Height-ChromeHeight, 1)
}

func (m *Model) clampOffset() {
	h := m.listHeight()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+h {
		m.offset = m.cursor - h + 1
	}
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.clampOffset()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case ChangedMsg:
		// Views read resolver state directly; a change only needs a redraw.
		return m, m.observer.Wait()

	case SavedMsg:
		return m, m.handleSaved(msg)

	case LibraryLoadedMsg:
		if m.MediaPicker.IsVisible() {
			if t := m.current(); t != nil && t.id() == msg.TabID {
				m.MediaPicker.SetLibrary(msg.URLs, msg.Err)
			}
		}
		return m, nil

	case PreviewOpenedMsg:
		return m, m.setStatus("Opened "+msg.URL, false)

	case ErrMsg:
		m.deps.Logger.Error("editor command failed", "context", msg.Context, "error", msg.Err)
		return m, m.setStatus(msg.Error(), true)

	case StatusMsg:
		return m, m.setStatus(msg.Message, msg.IsError)

	case ClearStatusMsg:
		m.StatusMsg = ""
		m.StatusIsErr = false
		return m, nil
	}

	return m, nil
}

func (m *Model) handleSaved(msg SavedMsg) tea.Cmd {
	t := m.findTab(msg.TabID)
	if t == nil {
		return nil
	}
	res := msg.Result
	if res.OK() {
		if res.TextSaved == 0 && res.MediaSaved == 0 {
			return m.setStatus("Nothing to save", false)
		}
		return m.setStatus(fmt.Sprintf("Saved %d text, %d media", res.TextSaved, res.MediaSaved), false)
	}

	var parts []string
	if res.TextErr != nil {
		parts = append(parts, "text not saved: "+res.TextErr.Error())
	} else if res.TextSaved > 0 {
		parts = append(parts, fmt.Sprintf("%d text saved", res.TextSaved))
	}
	if res.MediaErr != nil {
		parts = append(parts, "media not saved: "+res.MediaErr.Error())
	} else if res.MediaSaved > 0 {
		parts = append(parts, fmt.Sprintf("%d media saved", res.MediaSaved))
	}
	status := parts[0]
	for _, p := range parts[1:] {
		status += "; " + p
	}
	return m.setStatus(status, true)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.State == StateHelp {
		m.State = StateBrowsing
		return m, nil
	}

	t := m.current()
	if t == nil {
		m.shutdown()
		return m, tea.Quit
	}

	// Field editor modal
	if m.FieldEditor.IsVisible() {
		var cmd tea.Cmd
		var submitted bool
		m.FieldEditor, cmd, submitted = m.FieldEditor.Update(msg)
		if submitted {
			err := t.session.UpdateContent(m.FieldEditor.Key(), m.FieldEditor.Value())
			t.session.CloseEditor()
			m.FieldEditor.Hide()
			if err != nil {
				return m, m.setStatus(err.Error(), true)
			}
		} else if !m.FieldEditor.IsVisible() {
			t.session.CloseEditor()
		}
		return m, cmd
	}

	// Media picker modal
	if m.MediaPicker.IsVisible() {
		var cmd tea.Cmd
		var chosen bool
		m.MediaPicker, cmd, chosen = m.MediaPicker.Update(msg)
		if chosen {
			err := t.session.UpdateMedia(m.MediaPicker.Key(), m.MediaPicker.Selected())
			t.session.CloseMediaPicker()
			m.MediaPicker.Hide()
			if err != nil {
				return m, m.setStatus(err.Error(), true)
			}
		} else if !m.MediaPicker.IsVisible() {
			t.session.CloseMediaPicker()
		}
		return m, cmd
	}

	// Filter input
	if m.State == StateFiltering {
		switch msg.String() {
		case "esc":
			m.filter.SetValue("")
			m.filter.Blur()
			m.State = StateBrowsing
			m.resetList()
			return m, nil
		case "enter":
			m.filter.Blur()
			m.State = StateBrowsing
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.cursor = 0
		m.offset = 0
		m.resetList()
		return m, cmd
	}

	switch {
	case key.Matches(msg, Keys.Quit):
		m.shutdown()
		return m, tea.Quit

	case key.Matches(msg, Keys.Help):
		m.State = StateHelp
		return m, nil

	case key.Matches(msg, Keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.clampOffset()
		}
		return m, nil

	case key.Matches(msg, Keys.Down):
		if m.cursor < len(m.matches)-1 {
			m.cursor++
			m.clampOffset()
		}
		return m, nil

	case key.Matches(msg, Keys.Top):
		m.cursor = 0
		m.clampOffset()
		return m, nil

	case key.Matches(msg, Keys.Bottom):
		m.cursor = max(len(m.matches)-1, 0)
		m.clampOffset()
		return m, nil

	case key.Matches(msg, Keys.Filter):
		m.State = StateFiltering
		return m, m.filter.Focus()

	case key.Matches(msg, Keys.Escape):
		if m.filter.Value() != "" {
			m.filter.SetValue("")
			m.resetList()
		}
		return m, nil

	case key.Matches(msg, Keys.Edit):
		return m, m.editSelected(t)

	case key.Matches(msg, Keys.Save):
		if !t.session.Privileged() {
			return m, m.setStatus(domain.ErrNotPrivileged.Error(), true)
		}
		if t.session.State() == editor.StateSaving {
			return m, m.setStatus(domain.ErrEditorBusy.Error(), true)
		}
		m.StatusMsg = "Saving..."
		m.StatusIsErr = false
		return m, SaveCmd(t.id(), t.session)

	case key.Matches(msg, Keys.Language):
		next := m.nextLanguage(t.lang)
		if next == t.lang {
			return m, nil
		}
		t.setLanguage(next)
		return m, m.setStatus("Editing language: "+next, false)

	case key.Matches(msg, Keys.Page):
		if len(m.cfg.Pages) < 2 {
			return m, nil
		}
		err := t.switchPage(m.nextPage(t.page.ID))
		m.cursor = 0
		m.offset = 0
		m.resetList()
		if err != nil {
			return m, m.setStatus("Unreadable draft discarded: "+err.Error(), true)
		}
		return m, nil

	case key.Matches(msg, Keys.Refresh):
		t.media.ForceRefresh()
		return m, m.setStatus("Refreshing media...", false)

	case key.Matches(msg, Keys.Preview):
		r, ok := m.selectedRow()
		if !ok || r.kind != rowMedia || m.deps.Previewer == nil {
			return m, nil
		}
		url := t.mediaURL(r.key)
		if url == "" {
			return m, m.setStatus("No media for "+r.key, true)
		}
		return m, OpenPreviewCmd(m.deps.Previewer, url)

	case key.Matches(msg, Keys.NewTab):
		if err := m.openTab(t.page); err != nil {
			return m, m.setStatus("Unreadable draft discarded: "+err.Error(), true)
		}
		return m, nil

	case key.Matches(msg, Keys.NextTab):
		if len(m.tabs) > 1 {
			m.active = (m.active + 1) % len(m.tabs)
			m.cursor = 0
			m.offset = 0
			m.resetList()
		}
		return m, nil

	case key.Matches(msg, Keys.CloseTab):
		m.closeTab()
		if len(m.tabs) == 0 {
			m.cancel()
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

// editSelected opens the field editor or media picker for the selected row
func (m *Model) editSelected(t *tab) tea.Cmd {
	r, ok := m.selectedRow()
	if !ok {
		return nil
	}

	switch r.kind {
	case rowMedia:
		current := t.mediaURL(r.key)
		if err := t.session.OpenMediaPicker(r.key, current, r.key); err != nil {
			return m.setStatus(editError(err), true)
		}
		picker, _ := t.session.ActivePicker()
		m.MediaPicker.Show(picker.Key, picker.CurrentURL, picker.Label)
		return LoadLibraryCmd(t.id(), t.session)
	default:
		if err := t.session.OpenEditor(r.key, ""); err != nil {
			return m.setStatus(editError(err), true)
		}
		ed, _ := t.session.ActiveEditor()
		m.FieldEditor.Show(ed.Key, t.session.Language(), ed.Text)
		return nil
	}
}

func editError(err error) string {
	if errors.Is(err, domain.ErrNotPrivileged) {
		return "Read-only: " + err.Error()
	}
	return err.Error()
}

func (m Model) nextLanguage(lang string) string {
	for i, l := range m.cfg.Languages {
		if l == lang {
			return m.cfg.Languages[(i+1)%len(m.cfg.Languages)]
		}
	}
	if len(m.cfg.Languages) == 0 {
		return lang
	}
	return m.cfg.Languages[0]
}

func (m Model) nextPage(id string) domain.Page {
	for i, p := range m.cfg.Pages {
		if p.ID == id {
			return m.cfg.Pages[(i+1)%len(m.cfg.Pages)]
		}
	}
	return m.cfg.Pages[0]
}
