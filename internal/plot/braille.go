package plot

import (
	"math"
	"strings"
)

// canvas is a grid of braille cells, each holding a 2x4 dot matrix.
type canvas struct {
	cells  [][]uint8
	width  int
	height int
}

func newCanvas(width, height int) *canvas {
	cells := make([][]uint8, height)
	for y := range cells {
		cells[y] = make([]uint8, width)
	}
	return &canvas{cells: cells, width: width, height: height}
}

// dotWidth and dotHeight are the canvas resolution in dots.
func (c *canvas) dotWidth() int {
	return c.width * 2
}

func (c *canvas) dotHeight() int {
	return c.height * 4
}

func (c *canvas) set(x, y int) {
	if y < 0 || x < 0 {
		return
	}
	cellY := y / 4
	cellX := x / 2
	if cellY >= c.height || cellX >= c.width {
		return
	}
	c.cells[cellY][cellX] |= brailleDotMask(x%2, y%4)
}

func (c *canvas) line(x0, y0, x1, y1 int) {
	drawLine(x0, y0, x1, y1, c.set)
}

func (c *canvas) row(y int) string {
	var b strings.Builder
	for _, mask := range c.cells[y] {
		b.WriteRune(brailleFromMask(mask))
	}
	return b.String()
}

func drawLine(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := int(math.Abs(float64(x1 - x0)))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -int(math.Abs(float64(y1 - y0)))
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func brailleDotMask(x, y int) uint8 {
	switch {
	case x == 0 && y == 0:
		return 0x01
	case x == 0 && y == 1:
		return 0x02
	case x == 0 && y == 2:
		return 0x04
	case x == 0 && y == 3:
		return 0x40
	case x == 1 && y == 0:
		return 0x08
	case x == 1 && y == 1:
		return 0x10
	case x == 1 && y == 2:
		return 0x20
	case x == 1 && y == 3:
		return 0x80
	default:
		return 0
	}
}

func brailleFromMask(mask uint8) rune {
	return rune(0x2800 + int(mask))
}

// scale maps v from [lo, hi] onto [0, n-1], flipped so that hi lands on 0.
func scale(v, lo, hi float64, n int) int {
	if n <= 1 || hi <= lo {
		return 0
	}
	pos := (v - lo) / (hi - lo)
	idx := int(math.Round((1 - pos) * float64(n-1)))
	return min(max(idx, 0), n-1)
}

// column maps v from [lo, hi] onto [0, n-1] left to right.
func column(v, lo, hi float64, n int) int {
	if n <= 1 || hi <= lo {
		return 0
	}
	idx := int(math.Round((v - lo) / (hi - lo) * float64(n-1)))
	return min(max(idx, 0), n-1)
}

func bounds(values []float64) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return lo, hi
}
