package plot

import (
	"io"
	"os"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	minPlotWidth        = 10
	minPlotHeight       = 2
	defaultPlotHeight   = 12
	terminalWidthBackup = 80
)

// WidthFor computes a plot width that fits within totalWidth once the axis
// gutter is subtracted.
func WidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	return max(totalWidth-gutterWidth(), minPlotWidth)
}

// TerminalWidth returns the width of stdout, or 80 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// ColorEnabled reports whether ANSI color should be written to w.
func ColorEnabled(w io.Writer, force bool) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force {
		return true
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}

func gutterWidth() int {
	return axisLabelWidth + runewidth.StringWidth(axisSeparator)
}

func padLeft(s string, width int) string {
	return runewidth.FillLeft(runewidth.Truncate(s, width, ""), width)
}
