// Package plot renders ECG trace windows and Poincaré plots as braille text.
package plot

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/verte-zerg/ecgscope/internal/model"
)

const (
	axisLabelWidth = 7
	axisSeparator  = " │ "
	colorReset     = "\x1b[0m"
	cursorMarker   = '^'
)

// Options controls plot size and decoration. Zero values pick defaults.
type Options struct {
	Width  int
	Height int
	Color  bool
	// Cursor marks a time position in a trace, or a point ordinal in a
	// Poincaré plot. Nil draws no marker.
	Cursor *float64
}

type peakClass struct {
	label  rune
	color  string
	series func(model.Peaks) model.PeakSeries
}

var peakClasses = []peakClass{
	{label: 'N', color: "\x1b[32m", series: func(p model.Peaks) model.PeakSeries { return p.Normal }},
	{label: 'V', color: "\x1b[31m", series: func(p model.Peaks) model.PeakSeries { return p.Ventricular }},
	{label: 'S', color: "\x1b[35m", series: func(p model.Peaks) model.PeakSeries { return p.Supraventricular }},
	{label: 'A', color: "\x1b[33m", series: func(p model.Peaks) model.PeakSeries { return p.Artifacts }},
}

// Trace writes the rendered trace window to w.
func Trace(w io.Writer, tw model.TraceWindow, opts Options) error {
	for _, line := range TraceLines(tw, opts) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// TraceLines renders the voltage curve with a peak marker row and a time
// axis underneath. Every line has the same display width.
func TraceLines(tw model.TraceWindow, opts Options) []string {
	width, height := plotSize(opts)
	lo, hi := bounds(tw.Voltage)
	if math.Abs(hi-lo) < 1e-9 {
		lo--
		hi++
	}
	start, end := tw.Position, tw.Position+tw.WindowLength
	if end <= start {
		start, end = bounds(tw.Time)
	}

	c := newCanvas(width, height)
	drawEnvelope(c, tw.Time, tw.Voltage, start, end, lo, hi)

	lines := make([]string, 0, height+2)
	for y := 0; y < height; y++ {
		label := ""
		switch y {
		case 0:
			label = fmt.Sprintf("%.2f", hi)
		case height - 1:
			label = fmt.Sprintf("%.2f", lo)
		}
		lines = append(lines, padLeft(label, axisLabelWidth)+axisSeparator+c.row(y))
	}
	lines = append(lines, strings.Repeat(" ", gutterWidth())+peakRow(tw.Peaks, start, end, width, opts))
	lines = append(lines, strings.Repeat(" ", gutterWidth())+timeAxis(start, end, width))
	return lines
}

// drawEnvelope draws the min/max of the samples falling into each dot
// column so that narrow QRS spikes survive downsampling.
func drawEnvelope(c *canvas, times, volts []float64, start, end, lo, hi float64) {
	cols := c.dotWidth()
	rows := c.dotHeight()
	n := min(len(times), len(volts))
	if n == 0 || end <= start {
		return
	}
	colLo := make([]float64, cols)
	colHi := make([]float64, cols)
	seen := make([]bool, cols)
	for i := 0; i < n; i++ {
		x := column(times[i], start, end, cols)
		v := volts[i]
		if !seen[x] {
			colLo[x], colHi[x], seen[x] = v, v, true
			continue
		}
		colLo[x] = min(colLo[x], v)
		colHi[x] = max(colHi[x], v)
	}
	prevX, prevY := -1, -1
	for x := 0; x < cols; x++ {
		if !seen[x] {
			continue
		}
		top := scale(colHi[x], lo, hi, rows)
		bottom := scale(colLo[x], lo, hi, rows)
		if prevX >= 0 {
			c.line(prevX, prevY, x, top)
		}
		c.line(x, top, x, bottom)
		prevX, prevY = x, bottom
	}
}

func peakRow(peaks model.Peaks, start, end float64, width int, opts Options) string {
	row := make([]rune, width)
	colors := make([]string, width)
	for i := range row {
		row[i] = ' '
	}
	for _, class := range peakClasses {
		for _, t := range class.series(peaks).Time {
			if t < start || t > end {
				continue
			}
			x := column(t, start, end, width)
			row[x] = class.label
			colors[x] = class.color
		}
	}
	if opts.Cursor != nil && *opts.Cursor >= start && *opts.Cursor <= end {
		x := column(*opts.Cursor, start, end, width)
		if row[x] == ' ' {
			row[x] = cursorMarker
		}
		colors[x] = "\x1b[7m"
	}
	if !opts.Color {
		return string(row)
	}
	var b strings.Builder
	for i, r := range row {
		if colors[i] == "" {
			b.WriteRune(r)
			continue
		}
		b.WriteString(colors[i])
		b.WriteRune(r)
		b.WriteString(colorReset)
	}
	return b.String()
}

func timeAxis(start, end float64, width int) string {
	left := model.FormatClock(start)
	right := model.FormatClock(end)
	gap := width - len(left) - len(right)
	if gap < 1 {
		return padLeft(left, width)
	}
	return left + strings.Repeat(" ", gap) + right
}

func plotSize(opts Options) (int, int) {
	width := opts.Width
	if width <= 0 {
		width = WidthFor(TerminalWidth())
	}
	height := opts.Height
	if height <= 0 {
		height = defaultPlotHeight
	}
	return max(width, minPlotWidth), max(height, minPlotHeight)
}
