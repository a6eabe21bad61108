package tui

import (
	"errors"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/ecgscope/internal/model"
)

var errInvalidPoint = errors.New("point number must be a non-negative integer")

func newPicker() table.Model {
	t := table.New(
		table.WithColumns(pickerColumns(0)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	t.SetStyles(pickerStyles())
	return t
}

func pickerColumns(width int) []table.Column {
	nameWidth := 24
	pathWidth := max(width-nameWidth-4, 20)
	return []table.Column{
		{Title: "Recording", Width: nameWidth},
		{Title: "Path", Width: pathWidth},
	}
}

func fileRows(files []model.FileDescriptor) []table.Row {
	rows := make([]table.Row, 0, len(files))
	for _, f := range files {
		rows = append(rows, table.Row{f.Label, f.Path})
	}
	return rows
}

func (m *Model) resizePicker() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.picker.SetColumns(pickerColumns(m.width))
	m.picker.SetWidth(m.width)
	m.picker.SetHeight(max(1, m.height-4))
	m.input.Width = max(10, m.width-lipgloss.Width(m.input.Prompt)-2)
}

func pickerStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Background(lipgloss.Color("#4A4A4A")).
		Bold(true)
	return styles
}

func newPromptInput() textinput.Model {
	input := textinput.New()
	input.CharLimit = 16
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}
