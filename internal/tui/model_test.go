package tui

import (
	"context"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/ecgscope/internal/api"
	"github.com/verte-zerg/ecgscope/internal/model"
	"github.com/verte-zerg/ecgscope/internal/session"
)

type stubBackend struct {
	mu       sync.Mutex
	loaded   string
	navigate []model.Direction
	classify []model.Annotation
}

func (b *stubBackend) ListFiles(context.Context) ([]model.FileDescriptor, error) {
	return []model.FileDescriptor{{Label: "A.ecg", Path: "/data/A.ecg"}, {Label: "B.ecg", Path: "/data/B.ecg"}}, nil
}

func (b *stubBackend) LoadFile(_ context.Context, path string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded = path
	return path[strings.LastIndex(path, "/")+1:], nil
}

func (b *stubBackend) Metadata(context.Context) (model.Metadata, error) {
	return model.Metadata{Filename: "A.ecg", Duration: 900, WindowLength: 300, TotalPeaks: 1080}, nil
}

func (b *stubBackend) Trace(_ context.Context, q api.TraceQuery) (model.TraceWindow, error) {
	pos := *q.Position
	return model.TraceWindow{
		Time:         []float64{pos, pos + 1, pos + 2},
		Voltage:      []float64{0, 1, 0},
		Position:     pos,
		WindowLength: *q.WindowLength,
		Peaks: model.Peaks{
			Normal:      model.PeakSeries{Time: []float64{pos + 1, pos + 3}},
			Ventricular: model.PeakSeries{Time: []float64{pos + 2}},
		},
	}, nil
}

func (b *stubBackend) Poincare(context.Context) (model.PoincareDataset, error) {
	return model.PoincareDataset{Xi: []float64{800, 820}, Xii: []float64{820, 790}, Range: model.PoincareRange{Start: 500, End: 1200}}, nil
}

func (b *stubBackend) Invert(context.Context) (bool, error) { return true, nil }

func (b *stubBackend) Navigate(_ context.Context, dir model.Direction, _ float64) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.navigate = append(b.navigate, dir)
	return 300, nil
}

func (b *stubBackend) SetWindowLength(_ context.Context, seconds float64) (float64, error) {
	return seconds, nil
}

func (b *stubBackend) NavigatePoincare(context.Context, int) (float64, error) { return 42, nil }

func (b *stubBackend) ClassifyPeak(_ context.Context, _ float64, a model.Annotation) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.classify = append(b.classify, a)
	return true, nil
}

func (b *stubBackend) InsertPeak(context.Context, float64) (bool, error) { return true, nil }

func (b *stubBackend) RemovePeak(context.Context, float64) error { return nil }

func (b *stubBackend) Save(context.Context) error { return nil }

func (b *stubBackend) ExportURL() string { return "http://backend/api/ecg/export/rr" }

func newTestModel(t *testing.T, initialFile string) (*Model, *session.Session, *stubBackend) {
	t.Helper()
	b := &stubBackend{}
	sess := session.New(b, session.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	m := NewModel(sess, Options{InitialFile: initialFile})
	t.Cleanup(func() {
		m.cancel()
		sess.Close()
	})
	m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	return m, sess, b
}

func syncView(m *Model, sess *session.Session) {
	m.Update(snapshotMsg(sess.Snapshot()))
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func runCmd(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	cmd()
}

func TestPickerOpensWithoutInitialFile(t *testing.T) {
	m, sess, b := newTestModel(t, "")
	if m.mode != modePicker {
		t.Fatalf("expected picker mode, got %v", m.mode)
	}
	sess.LoadFiles(context.Background())
	syncView(m, sess)
	if !strings.Contains(m.View(), "B.ecg") {
		t.Fatalf("expected files in picker view:\n%s", m.View())
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	runCmd(t, cmd)
	if b.loaded != "/data/A.ecg" {
		t.Fatalf("expected first row to load, got %q", b.loaded)
	}
	syncView(m, sess)
	if m.mode != modeBrowse {
		t.Fatalf("expected browse mode after load, got %v", m.mode)
	}
}

func TestBrowseViewRendersSession(t *testing.T) {
	m, sess, _ := newTestModel(t, "/data/A.ecg")
	sess.LoadECG(context.Background(), "/data/A.ecg")
	syncView(m, sess)

	view := m.View()
	for _, want := range []string{"A.ecg", "0:00 / 15:00", "window 5 min", "1080 peaks", "Poincaré", "q quit"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in view:\n%s", want, view)
		}
	}
	if got := len(strings.Split(view, "\n")); got != 40 {
		t.Fatalf("expected view to fill 40 lines, got %d", got)
	}
}

func TestNavigateKeyRunsOperation(t *testing.T) {
	m, sess, b := newTestModel(t, "/data/A.ecg")
	sess.LoadECG(context.Background(), "/data/A.ecg")
	syncView(m, sess)

	_, cmd := m.Update(keyRunes("l"))
	runCmd(t, cmd)
	if len(b.navigate) != 1 || b.navigate[0] != model.DirectionNext {
		t.Fatalf("unexpected navigate calls: %v", b.navigate)
	}
	if sess.Snapshot().Position != 300 {
		t.Fatalf("expected position 300, got %v", sess.Snapshot().Position)
	}
}

func TestKeysIgnoredWithoutRecording(t *testing.T) {
	m, _, b := newTestModel(t, "/data/A.ecg")
	if _, cmd := m.Update(keyRunes("l")); cmd != nil {
		t.Fatalf("expected no command without a recording")
	}
	if len(b.navigate) != 0 {
		t.Fatalf("unexpected navigate calls")
	}
}

func TestPeakCursorAndClassify(t *testing.T) {
	m, sess, b := newTestModel(t, "/data/A.ecg")
	sess.LoadECG(context.Background(), "/data/A.ecg")
	syncView(m, sess)

	if !m.hasCursor || m.cursor != 1 {
		t.Fatalf("expected cursor on first peak, got %v (%v)", m.cursor, m.hasCursor)
	}
	m.Update(keyRunes("]"))
	if m.cursor != 2 {
		t.Fatalf("expected cursor on second peak, got %v", m.cursor)
	}
	m.Update(keyRunes("["))
	m.Update(keyRunes("["))
	if m.cursor != 1 {
		t.Fatalf("expected cursor to stop at first peak, got %v", m.cursor)
	}

	_, cmd := m.Update(keyRunes("1"))
	runCmd(t, cmd)
	if len(b.classify) != 1 || b.classify[0] != model.AnnotationVentricular {
		t.Fatalf("unexpected classify calls: %v", b.classify)
	}
}

func TestGotoPrompt(t *testing.T) {
	m, sess, _ := newTestModel(t, "/data/A.ecg")
	sess.LoadECG(context.Background(), "/data/A.ecg")
	syncView(m, sess)

	m.Update(keyRunes("g"))
	if m.mode != modeGoto {
		t.Fatalf("expected goto mode")
	}
	m.Update(keyRunes("nope"))
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil || m.inputErr == "" {
		t.Fatalf("expected invalid input to be rejected")
	}

	m.input.SetValue("1:30")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	runCmd(t, cmd)
	if m.mode != modeBrowse {
		t.Fatalf("expected prompt closed")
	}
	if got := sess.Snapshot().Position; got != 90 {
		t.Fatalf("expected position 90, got %v", got)
	}
}

func TestPoincarePromptHighlightsPoint(t *testing.T) {
	m, sess, _ := newTestModel(t, "/data/A.ecg")
	sess.LoadECG(context.Background(), "/data/A.ecg")
	syncView(m, sess)

	m.Update(keyRunes("p"))
	m.input.SetValue("1")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	runCmd(t, cmd)
	if m.highlight == nil || *m.highlight != 1 {
		t.Fatalf("expected highlighted point 1")
	}
	if got := sess.Snapshot().Position; got != 42 {
		t.Fatalf("expected position 42, got %v", got)
	}
}

func TestFooterShowsStatusAndError(t *testing.T) {
	m, sess, _ := newTestModel(t, "/data/A.ecg")
	sess.LoadECG(context.Background(), "/data/A.ecg")
	sess.Save(context.Background())
	sess.NavigateToPosition(context.Background(), math.Inf(1))
	syncView(m, sess)

	footer := m.renderFooter()
	if !strings.Contains(footer, "Saved successfully!") {
		t.Fatalf("expected save status in footer: %q", footer)
	}
	if !strings.Contains(footer, "Error: invalid position") {
		t.Fatalf("expected error in footer: %q", footer)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	syncView(m, sess)
	if strings.Contains(m.renderFooter(), "Error:") {
		t.Fatalf("expected error dismissed")
	}
}

func TestSnapshotFeedKeepsNewest(t *testing.T) {
	f := newSnapshotFeed()
	f.push(session.Snapshot{Version: 3, CurrentFile: "new"})
	f.push(session.Snapshot{Version: 2, CurrentFile: "old"})

	msg := f.wait(context.Background())()
	snap, ok := msg.(snapshotMsg)
	if !ok || snap.Version != 3 || snap.CurrentFile != "new" {
		t.Fatalf("unexpected message %#v", msg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if msg := f.wait(ctx)(); msg != nil {
		t.Fatalf("expected nil after cancel, got %#v", msg)
	}
}

func TestTruncateLine(t *testing.T) {
	if got := truncateLine("abcdefgh", 5); got != "ab..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncateLine("abc", 5); got != "abc" {
		t.Fatalf("unexpected truncation %q", got)
	}
}
