package plot

import (
	"bytes"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/ecgscope/internal/model"
)

func sampleTrace() model.TraceWindow {
	times := make([]float64, 0, 200)
	volts := make([]float64, 0, 200)
	for i := 0; i < 200; i++ {
		times = append(times, 300+float64(i)*0.05)
		v := 0.0
		if i%50 == 10 {
			v = 1.5
		}
		volts = append(volts, v)
	}
	return model.TraceWindow{
		Time:         times,
		Voltage:      volts,
		Position:     300,
		WindowLength: 10,
		Peaks: model.Peaks{
			Normal:      model.PeakSeries{Time: []float64{300.5, 303, 305.5}, Voltage: []float64{1.5, 1.5, 1.5}},
			Ventricular: model.PeakSeries{Time: []float64{308}, Voltage: []float64{1.5}},
		},
	}
}

func TestTraceLinesLayout(t *testing.T) {
	lines := TraceLines(sampleTrace(), Options{Width: 40, Height: 6})
	if len(lines) != 8 {
		t.Fatalf("expected 8 lines, got %d", len(lines))
	}
	want := runewidth.StringWidth(lines[0])
	for i, line := range lines {
		if got := runewidth.StringWidth(line); got != want {
			t.Fatalf("line %d width %d, want %d: %q", i, got, want, line)
		}
	}
	if !strings.Contains(lines[0], "1.50") || !strings.Contains(lines[5], "0.00") {
		t.Fatalf("expected voltage labels, got %q / %q", lines[0], lines[5])
	}
	peaks := lines[6]
	if strings.Count(peaks, "N") != 3 || strings.Count(peaks, "V") != 1 {
		t.Fatalf("unexpected peak row %q", peaks)
	}
	if !strings.Contains(lines[7], "5:00") || !strings.Contains(lines[7], "5:10") {
		t.Fatalf("unexpected time axis %q", lines[7])
	}
}

func TestTraceLinesDrawsSpikes(t *testing.T) {
	lines := TraceLines(sampleTrace(), Options{Width: 20, Height: 4})
	top := []rune(lines[0])[gutterWidth():]
	var dots int
	for _, r := range top {
		if r != brailleFromMask(0) {
			dots++
		}
	}
	if dots == 0 {
		t.Fatalf("expected spikes to reach the top row: %q", lines[0])
	}
}

func TestTraceCursorMarker(t *testing.T) {
	cursor := 301.0
	lines := TraceLines(sampleTrace(), Options{Width: 40, Height: 4, Cursor: &cursor})
	if !strings.ContainsRune(lines[4], cursorMarker) {
		t.Fatalf("expected cursor marker in %q", lines[4])
	}
}

func TestTraceWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	if err := Trace(&buf, sampleTrace(), Options{Width: 30, Height: 3}); err != nil {
		t.Fatalf("Trace failed: %v", err)
	}
	if got := strings.Count(buf.String(), "\n"); got != 5 {
		t.Fatalf("expected 5 lines, got %d", got)
	}
}

func TestTraceEmptyWindow(t *testing.T) {
	lines := TraceLines(model.TraceWindow{}, Options{Width: 12, Height: 2})
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}
}

func TestPoincareLinesHighlight(t *testing.T) {
	ds := model.PoincareDataset{
		Xi:    []float64{600, 800, 1000},
		Xii:   []float64{800, 1000, 600},
		Range: model.PoincareRange{Start: 500, End: 1100},
	}
	lines := PoincareLines(ds, Options{Width: 20, Height: 8})
	if len(lines) != 9 {
		t.Fatalf("expected 9 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "1100") || !strings.Contains(lines[7], "500") {
		t.Fatalf("expected range labels: %q / %q", lines[0], lines[7])
	}
	if strings.ContainsRune(strings.Join(lines, "\n"), highlightMarker) {
		t.Fatalf("no highlight expected without cursor")
	}

	point := 1.0
	lines = PoincareLines(ds, Options{Width: 20, Height: 8, Cursor: &point})
	if !strings.ContainsRune(strings.Join(lines, "\n"), highlightMarker) {
		t.Fatalf("expected highlighted point")
	}
}

func TestWidthFor(t *testing.T) {
	if got := WidthFor(80); got != 80-gutterWidth() {
		t.Fatalf("expected width %d, got %d", 80-gutterWidth(), got)
	}
	if got := WidthFor(0); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
}
