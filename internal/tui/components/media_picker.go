package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jantomson/steelbuckle-sub000/internal/search"
	"github.com/jantomson/steelbuckle-sub000/internal/tui/styles"
)

const pickerRows = 10

// MediaPicker lets the editor choose a library asset (or type a URL) for a media slot
type MediaPicker struct {
	visible bool
	key     string
	label   string
	current string

	loading bool
	err     error
	library []string
	ranked  []string
	cursor  int
	offset  int

	input textinput.Model
}

// NewMediaPicker creates a new media picker
func NewMediaPicker() MediaPicker {
	ti := textinput.New()
	ti.Placeholder = "Search library or paste a URL..."
	ti.Width = 56
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	return MediaPicker{input: ti}
}

// Show opens the picker for a media slot. The library arrives later via SetLibrary.
func (m *MediaPicker) Show(key, currentURL, label string) {
	m.visible = true
	m.key = key
	m.label = label
	m.current = currentURL
	m.loading = true
	m.err = nil
	m.library = nil
	m.cursor = 0
	m.offset = 0
	m.input.SetValue("")
	m.input.Focus()
	m.rank()
}

// Hide dismisses the picker
func (m *MediaPicker) Hide() {
	m.visible = false
	m.input.Blur()
}

// IsVisible returns whether the picker is shown
func (m MediaPicker) IsVisible() bool {
	return m.visible
}

// Key returns the media slot being picked
func (m MediaPicker) Key() string {
	return m.key
}

// SetLibrary supplies the library listing (or the error loading it)
func (m *MediaPicker) SetLibrary(urls []string, err error) {
	m.loading = false
	m.err = err
	if err == nil {
		m.library = urls
	}
	m.rank()
}

// Selected returns the highlighted asset, or the typed query when nothing matches
func (m MediaPicker) Selected() string {
	if m.cursor < len(m.ranked) {
		return m.ranked[m.cursor]
	}
	return strings.TrimSpace(m.input.Value())
}

func (m *MediaPicker) rank() {
	m.ranked = search.RankMedia(m.input.Value(), m.library)
	if m.cursor >= len(m.ranked) {
		m.cursor = max(len(m.ranked)-1, 0)
	}
	m.clampOffset()
}

func (m *MediaPicker) clampOffset() {
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+pickerRows {
		m.offset = m.cursor - pickerRows + 1
	}
}

// Update handles input events, returns (picker, cmd, chosen).
// Esc hides the picker without choosing.
func (m MediaPicker) Update(msg tea.Msg) (MediaPicker, tea.Cmd, bool) {
	if !m.visible {
		return m, nil, false
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			return m, nil, m.Selected() != ""
		case "esc":
			m.Hide()
			return m, nil, false
		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
				m.clampOffset()
			}
			return m, nil, false
		case "down", "ctrl+n":
			if m.cursor < len(m.ranked)-1 {
				m.cursor++
				m.clampOffset()
			}
			return m, nil, false
		}
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.cursor = 0
		m.offset = 0
		m.rank()
	}
	return m, cmd, false
}

// View renders the picker
func (m MediaPicker) View() string {
	if !m.visible {
		return ""
	}

	const modalWidth = 60

	row := lipgloss.NewStyle().Width(modalWidth).Background(styles.SlateDark)

	title := m.key
	if m.label != "" {
		title = m.label + " (" + m.key + ")"
	}

	lines := []string{
		styles.TitleStyle.Width(modalWidth).Background(styles.SlateDark).Render(title),
		row.Render(styles.DimStyle.Render("current: " + styles.Truncate(m.current, modalWidth-9))),
		row.Render(""),
		row.Render(m.input.View()),
		row.Render(""),
	}

	switch {
	case m.loading:
		lines = append(lines, row.Render(styles.DimStyle.Render("Loading library...")))
	case m.err != nil:
		lines = append(lines, row.Render(styles.ErrorStyle.Render("Library unavailable: "+m.err.Error())))
	case len(m.ranked) == 0:
		lines = append(lines, row.Render(styles.DimStyle.Render("No matches, enter uses the typed URL")))
	default:
		end := min(m.offset+pickerRows, len(m.ranked))
		for i := m.offset; i < end; i++ {
			text := styles.Truncate(m.ranked[i], modalWidth-2)
			if i == m.cursor {
				lines = append(lines, styles.SelectedItemStyle.Width(modalWidth).Render(text))
			} else {
				lines = append(lines, styles.NormalItemStyle.Width(modalWidth).Render(text))
			}
		}
	}

	lines = append(lines, row.Render(""),
		styles.DimStyle.Width(modalWidth).Background(styles.SlateDark).Render("↑/↓ move · enter choose · esc close"))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Amber).
		Background(styles.SlateDark).
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}
