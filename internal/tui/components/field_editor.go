package components

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jantomson/steelbuckle-sub000/internal/tui/styles"
)

// FieldEditor is the in-place text editor modal for one content key
type FieldEditor struct {
	visible bool
	key     string
	lang    string
	input   textinput.Model
}

// NewFieldEditor creates a new field editor
func NewFieldEditor() FieldEditor {
	ti := textinput.New()
	ti.Placeholder = "Enter text..."
	ti.Width = 56
	ti.Prompt = ""
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	return FieldEditor{
		input: ti,
	}
}

// Show opens the editor for key with the current text
func (m *FieldEditor) Show(key, lang, text string) {
	m.visible = true
	m.key = key
	m.lang = lang
	m.input.SetValue(text)
	m.input.CursorEnd()
	m.input.Focus()
}

// Hide dismisses the editor
func (m *FieldEditor) Hide() {
	m.visible = false
	m.input.Blur()
}

// IsVisible returns whether the editor is shown
func (m FieldEditor) IsVisible() bool {
	return m.visible
}

// Key returns the key being edited
func (m FieldEditor) Key() string {
	return m.key
}

// Value returns the current input value
func (m FieldEditor) Value() string {
	return m.input.Value()
}

// Update handles input events, returns (editor, cmd, submitted).
// Esc hides the editor without submitting.
func (m FieldEditor) Update(msg tea.Msg) (FieldEditor, tea.Cmd, bool) {
	if !m.visible {
		return m, nil, false
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			return m, nil, true
		case "esc":
			m.Hide()
			return m, nil, false
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd, false
}

// View renders the editor
func (m FieldEditor) View() string {
	if !m.visible {
		return ""
	}

	const modalWidth = 60

	titleStyle := lipgloss.NewStyle().
		Foreground(styles.White).
		Bold(true).
		Width(modalWidth).
		Background(styles.SlateDark)

	inputStyle := lipgloss.NewStyle().
		Width(modalWidth).
		Background(styles.SlateDark)

	hintStyle := styles.DimStyle.
		Width(modalWidth).
		Background(styles.SlateDark)

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(m.key+" ["+m.lang+"]"),
		inputStyle.Render(""),
		inputStyle.Render(m.input.View()),
		inputStyle.Render(""),
		hintStyle.Render("enter apply · esc close"),
	)

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Amber).
		Background(styles.SlateDark).
		Padding(1, 2).
		Render(content)
}
