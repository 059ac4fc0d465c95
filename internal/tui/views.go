package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jantomson/steelbuckle-sub000/internal/tui/styles"
)

// View renders the whole screen
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	if m.State == StateHelp {
		return m.renderHelp()
	}

	t := m.current()
	if t == nil {
		return ""
	}

	screen := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTabs(),
		m.renderHeader(t),
		m.renderFilter(),
		m.renderList(t),
		m.renderFooter(t),
	)

	switch {
	case m.FieldEditor.IsVisible():
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center,
			m.FieldEditor.View())
	case m.MediaPicker.IsVisible():
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center,
			m.MediaPicker.View())
	}
	return screen
}

// renderTabs renders one label per open document
func (m Model) renderTabs() string {
	labels := make([]string, len(m.tabs))
	for i, t := range m.tabs {
		label := fmt.Sprintf("%d %s", i+1, t.page.ID)
		if t.session.HasPendingChanges() {
			label += " " + styles.DraftChar
		}
		if i == m.active {
			labels[i] = styles.ActiveTabStyle.Render(label)
		} else {
			labels[i] = styles.TabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, labels...)
}

// renderHeader shows page, language, mode and session state
func (m Model) renderHeader(t *tab) string {
	title := t.page.Title
	if title == "" {
		title = t.page.ID
	}
	mode := styles.DimStyle.Render("read-only")
	if t.session.Privileged() {
		mode = styles.AccentStyle.Render("edit · " + t.session.State().String())
	}
	return styles.TitleStyle.Render(title) + "  " +
		styles.SubtitleStyle.Render("["+t.lang+"]") + "  " + mode
}

func (m Model) renderFilter() string {
	if m.State == StateFiltering || m.filter.Value() != "" {
		return m.filter.View()
	}
	return ""
}

// renderList renders the visible window of the filtered key list
func (m Model) renderList(t *tab) string {
	height := m.listHeight()
	keyWidth := 0
	for _, r := range t.rows {
		keyWidth = max(keyWidth, len(r.key))
	}
	keyWidth = min(keyWidth, max(m.Width/3, 12))

	lines := make([]string, 0, height)
	end := min(m.offset+height, len(m.matches))
	for i := m.offset; i < end; i++ {
		match := m.matches[i]
		r := t.rows[match.Index]
		selected := i == m.cursor

		marker := styles.CleanChar
		if t.pending(r) {
			marker = styles.DraftDot
		}
		kind := "T"
		if r.kind == rowMedia {
			kind = "M"
		}

		name := styles.Highlight(styles.Pad(styles.Truncate(r.key, keyWidth), keyWidth), match.MatchedIndexes, selected)
		valueWidth := max(m.Width-keyWidth-10, 8)
		value := styles.Truncate(strings.ReplaceAll(t.value(r), "\n", " "), valueWidth)
		if r.kind == rowMedia {
			value = styles.LinkStyle.Render(value)
		}

		line := marker + " " + styles.DimStyle.Render(kind) + " " + name + "  " + value
		if selected {
			lines = append(lines, styles.SelectedItemStyle.Width(m.Width).Render(line))
		} else {
			lines = append(lines, styles.NormalItemStyle.Width(m.Width).Render(line))
		}
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// renderFooter renders spinner/status on the left and the help hint on the right
func (m Model) renderFooter(t *tab) string {
	var left string
	switch {
	case m.StatusMsg != "":
		if m.StatusIsErr {
			left = styles.ErrorStyle.Render(m.StatusMsg)
		} else {
			left = styles.DimStyle.Render(m.StatusMsg)
		}
	case t.loading():
		left = m.Spinner.View() + " " + styles.DimStyle.Render("Resolving...")
	case t.fetchErr() != nil:
		left = styles.ErrorStyle.Render("Showing cached content: " + t.fetchErr().Error())
	}

	right := styles.HelpKeyStyle.Render("?") + styles.HelpDescStyle.Render(" help")

	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return left + strings.Repeat(" ", gap) + right
}

// renderHelp renders the help screen
func (m Model) renderHelp() string {
	help := `
NAVIGATION                      EDITING
  j/k        Up/down               Enter   Edit text / pick media
  g/G        First/last            Ctrl+s  Save drafts
  /          Filter keys           L       Switch language
  p          Next page             r       Refresh media
  Esc        Clear filter          o       Open media

TABS                            OTHER
  Ctrl+t     New tab               ?       This help
  Tab        Next tab              q       Quit
  Ctrl+w     Close tab

Press any key to return...
`

	return lipgloss.Place(m.Width, m.Height,
		lipgloss.Center, lipgloss.Center,
		styles.ModalStyle.Render(help))
}
