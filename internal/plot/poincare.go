package plot

import (
	"fmt"
	"io"
	"strings"

	"github.com/verte-zerg/ecgscope/internal/model"
)

const highlightMarker = '●'

// Poincare writes the rendered Poincaré plot to w.
func Poincare(w io.Writer, ds model.PoincareDataset, opts Options) error {
	for _, line := range PoincareLines(ds, opts) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// PoincareLines renders RR(n) on the x axis against RR(n+1) on the y axis.
// Both axes share the dataset range so the identity line is the diagonal.
// opts.Cursor, when set, is the ordinal of the point to highlight.
func PoincareLines(ds model.PoincareDataset, opts Options) []string {
	width, height := plotSize(opts)
	lo, hi := ds.Range.Start, ds.Range.End
	if hi <= lo {
		xlo, xhi := bounds(ds.Xi)
		ylo, yhi := bounds(ds.Xii)
		lo, hi = min(xlo, ylo), max(xhi, yhi)
	}
	if hi <= lo {
		hi = lo + 1
	}

	c := newCanvas(width, height)
	for i := 0; i < ds.Len(); i++ {
		x := column(ds.Xi[i], lo, hi, c.dotWidth())
		y := scale(ds.Xii[i], lo, hi, c.dotHeight())
		c.set(x, y)
	}

	hx, hy := -1, -1
	if opts.Cursor != nil {
		if x, y, ok := ds.Point(int(*opts.Cursor)); ok {
			hx = column(x, lo, hi, width)
			hy = scale(y, lo, hi, height)
		}
	}

	lines := make([]string, 0, height+1)
	for y := 0; y < height; y++ {
		label := ""
		switch y {
		case 0:
			label = fmt.Sprintf("%.0f", hi)
		case height - 1:
			label = fmt.Sprintf("%.0f", lo)
		}
		row := c.row(y)
		if y == hy {
			row = highlight(row, hx, opts.Color)
		}
		lines = append(lines, padLeft(label, axisLabelWidth)+axisSeparator+row)
	}
	left := fmt.Sprintf("%.0f", lo)
	right := fmt.Sprintf("%.0f ms", hi)
	gap := max(width-len(left)-len(right), 1)
	lines = append(lines, strings.Repeat(" ", gutterWidth())+left+strings.Repeat(" ", gap)+right)
	return lines
}

func highlight(row string, x int, color bool) string {
	runes := []rune(row)
	if x < 0 || x >= len(runes) {
		return row
	}
	marker := string(highlightMarker)
	if color {
		marker = "\x1b[31m" + marker + colorReset
	}
	return string(runes[:x]) + marker + string(runes[x+1:])
}
