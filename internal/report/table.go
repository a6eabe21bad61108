package report

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const columnGap = " "

// FormatTable renders headers and rows as aligned text lines. Widths are
// measured in terminal cells, so wide runes line up. Columns whose index is
// set in rightAlign are padded on the left. Lines never end in spaces unless
// the last column is right-aligned.
//
// Rows may be ragged; missing cells render empty. Empty headers omit the
// header line.
func FormatTable(headers []string, rows [][]string, rightAlign map[int]bool) []string {
	widths := columnWidths(headers, rows)
	if len(widths) == 0 {
		return nil
	}

	lines := make([]string, 0, len(rows)+1)
	if len(headers) > 0 {
		lines = append(lines, renderRow(headers, widths, rightAlign))
	}
	for _, row := range rows {
		lines = append(lines, renderRow(row, widths, rightAlign))
	}
	return lines
}

func columnWidths(headers []string, rows [][]string) []int {
	n := len(headers)
	for _, row := range rows {
		n = max(n, len(row))
	}
	widths := make([]int, n)
	measure := func(row []string) {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}
	return widths
}

func renderRow(row []string, widths []int, rightAlign map[int]bool) string {
	cells := make([]string, len(widths))
	for i, width := range widths {
		if rightAlign[i] {
			cells[i] = runewidth.FillLeft(cellAt(row, i), width)
		} else {
			cells[i] = runewidth.FillRight(cellAt(row, i), width)
		}
	}
	line := strings.Join(cells, columnGap)
	if rightAlign[len(widths)-1] {
		return line
	}
	return strings.TrimRight(line, " ")
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
