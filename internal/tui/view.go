package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/ecgscope/internal/model"
	"github.com/verte-zerg/ecgscope/internal/plot"
	"github.com/verte-zerg/ecgscope/internal/session"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	savedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	panelStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
)

const (
	browseHelp = "←/h →/l move  -/= window  g go to  p point  [/] peak  0-3 class  a add  x del  i invert  s save  r refresh  f files  q quit"
	pickerHelp = "↑/↓ select  enter load  r refresh  esc back  q quit"
	promptHelp = "enter confirm  esc cancel"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	header := m.renderHeader()
	footer := m.renderFooter()
	headerHeight := lipgloss.Height(header)
	footerHeight := lipgloss.Height(footer)
	bodyHeight := max(1, m.height-headerHeight-footerHeight)
	var body string
	if m.mode == modePicker {
		body = m.renderPicker()
	} else {
		body = m.renderBody(bodyHeight)
	}
	return strings.Join([]string{
		fitLines(header, m.width, headerHeight),
		fitLines(body, m.width, bodyHeight),
		fitLines(footer, m.width, footerHeight),
	}, "\n")
}

func (m *Model) renderHeader() string {
	busy := " "
	if m.snap.Loading || m.snap.LoadingTrace {
		busy = m.spinner.View()
	}
	if !m.snap.HasFile() {
		return busy + " " + titleStyle.Render("ecgscope") + headerStyle.Render("  no recording loaded")
	}
	segments := []string{
		fmt.Sprintf("%s / %s", model.FormatClock(m.snap.Position), durationLabel(m.snap)),
		"window " + model.WindowLabel(m.snap.WindowLength),
	}
	if md := m.snap.Metadata; md != nil {
		segments = append(segments, fmt.Sprintf("%d peaks", md.TotalPeaks))
		if md.Inverted {
			segments = append(segments, "inverted")
		}
	}
	return busy + " " + titleStyle.Render(m.snap.CurrentFile) + "  " + headerStyle.Render(strings.Join(segments, "  ·  "))
}

func durationLabel(s session.Snapshot) string {
	if s.Metadata == nil {
		return "--:--"
	}
	return model.FormatClock(s.Metadata.Duration)
}

func (m *Model) renderBody(height int) string {
	if !m.snap.HasFile() {
		return headerStyle.Render("No recording loaded. Press f to pick one.")
	}
	if m.snap.Trace == nil {
		return headerStyle.Render("Loading trace...")
	}

	traceHeight := max(3, height*55/100-2)
	opts := plot.Options{Width: plot.WidthFor(m.width), Height: traceHeight, Color: true}
	if m.hasCursor {
		cursor := m.cursor
		opts.Cursor = &cursor
	}
	trace := strings.Join(plot.TraceLines(*m.snap.Trace, opts), "\n")

	lowerHeight := height - lipgloss.Height(trace) - 1
	if lowerHeight < 4 {
		return trace
	}
	return trace + "\n\n" + m.renderLower(lowerHeight-1)
}

func (m *Model) renderLower(height int) string {
	panelWidth := min(40, m.width/3)
	info := panelStyle.Width(panelWidth).Render(m.renderCursorInfo())

	plotWidth := plot.WidthFor(m.width - lipgloss.Width(info) - 2)
	plotHeight := max(2, height-2)
	var poincare string
	if m.snap.Poincare == nil {
		poincare = headerStyle.Render("Poincaré plot not available.")
	} else {
		title := accentStyle.Render(fmt.Sprintf("Poincaré  %d points", m.snap.Poincare.Len()))
		lines := plot.PoincareLines(*m.snap.Poincare, plot.Options{
			Width:  min(plotWidth, plotHeight*4),
			Height: plotHeight,
			Color:  true,
			Cursor: m.highlight,
		})
		poincare = title + "\n" + strings.Join(lines, "\n")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, poincare, "  ", info)
}

func (m *Model) renderCursorInfo() string {
	lines := []string{accentStyle.Render("Cursor")}
	if !m.hasCursor {
		lines = append(lines, "none")
	} else {
		lines = append(lines, fmt.Sprintf("%s (%.3f s)", model.FormatClock(m.cursor), m.cursor))
		if class, ok := peakClassAt(m.snap.Trace, m.cursor); ok {
			lines = append(lines, "peak: "+class.String())
		}
	}
	lines = append(lines, "", footerStyle.Render("N normal  V ventricular"), footerStyle.Render("S supravent.  A artifact"))
	return strings.Join(lines, "\n")
}

func peakClassAt(tr *model.TraceWindow, t float64) (model.Annotation, bool) {
	if tr == nil {
		return 0, false
	}
	const eps = 1e-6
	classes := []struct {
		annotation model.Annotation
		times      []float64
	}{
		{model.AnnotationNormal, tr.Peaks.Normal.Time},
		{model.AnnotationVentricular, tr.Peaks.Ventricular.Time},
		{model.AnnotationSupraventricular, tr.Peaks.Supraventricular.Time},
		{model.AnnotationArtifact, tr.Peaks.Artifacts.Time},
	}
	for _, c := range classes {
		for _, pt := range c.times {
			if pt > t-eps && pt < t+eps {
				return c.annotation, true
			}
		}
	}
	return 0, false
}

func (m *Model) renderPicker() string {
	if len(m.snap.Files) == 0 {
		if m.snap.Loading {
			return headerStyle.Render("Loading recordings...")
		}
		return headerStyle.Render("No recordings available on the server.")
	}
	return m.picker.View()
}

func (m *Model) renderFooter() string {
	var lines []string
	switch m.mode {
	case modeGoto, modePoint:
		lines = append(lines, m.input.View())
		if m.inputErr != "" {
			lines = append(lines, errorStyle.Render(m.inputErr))
		}
		lines = append(lines, footerStyle.Render(promptHelp))
	case modePicker:
		lines = append(lines, footerStyle.Render(truncateLine(pickerHelp, m.width)))
	default:
		lines = append(lines, footerStyle.Render(truncateLine(browseHelp, m.width)))
	}
	if m.snap.SaveStatus != "" {
		style := savedStyle
		if strings.HasPrefix(m.snap.SaveStatus, "Save failed") {
			style = errorStyle
		}
		lines = append(lines, style.Render(truncateLine(m.snap.SaveStatus, m.width)))
	}
	if m.snap.Err != "" {
		lines = append(lines, errorStyle.Render(truncateLine("Error: "+m.snap.Err+"  (esc to dismiss)", m.width)))
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
