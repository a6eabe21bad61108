// Package tui provides the Bubble Tea ECG browser.
package tui

import (
	"context"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/ecgscope/internal/model"
	"github.com/verte-zerg/ecgscope/internal/plot"
	"github.com/verte-zerg/ecgscope/internal/session"
)

type mode int

const (
	modeBrowse mode = iota
	modePicker
	modeGoto
	modePoint
)

// Options configures the browser.
type Options struct {
	// InitialFile is loaded on start. When empty the file picker opens.
	InitialFile string
}

// Model implements the Bubble Tea browser UI. It only reads session state;
// every change goes through a session operation.
type Model struct {
	session     *session.Session
	ctx         context.Context
	cancel      context.CancelFunc
	feed        *snapshotFeed
	unsubscribe func()
	initialFile string

	snap session.Snapshot

	width  int
	height int

	mode     mode
	picker   table.Model
	input    textinput.Model
	inputErr string
	spinner  spinner.Model

	cursor    float64
	hasCursor bool
	highlight *float64
}

// NewModel constructs a browser bound to sess.
func NewModel(sess *session.Session, opts Options) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		session:     sess,
		ctx:         ctx,
		cancel:      cancel,
		feed:        newSnapshotFeed(),
		initialFile: opts.InitialFile,
		snap:        sess.Snapshot(),
		picker:      newPicker(),
		input:       newPromptInput(),
		spinner:     spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(spinnerStyle)),
	}
	m.unsubscribe = sess.State().Subscribe(m.feed.push)
	if opts.InitialFile == "" {
		m.mode = modePicker
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.feed.wait(m.ctx), m.spinner.Tick, m.run(m.session.LoadFiles)}
	if m.initialFile != "" {
		path := m.initialFile
		cmds = append(cmds, m.run(func(ctx context.Context) {
			m.session.LoadECG(ctx, path)
		}))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizePicker()
		return m, nil
	case snapshotMsg:
		m.applySnapshot(session.Snapshot(msg))
		return m, m.feed.wait(m.ctx)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, m.quit()
		}
		switch m.mode {
		case modePicker:
			return m.updatePicker(msg)
		case modeGoto, modePoint:
			return m.updatePrompt(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

func (m *Model) applySnapshot(s session.Snapshot) {
	if s.Version < m.snap.Version {
		return
	}
	filesChanged := len(s.Files) != len(m.snap.Files)
	fileChanged := s.CurrentFile != m.snap.CurrentFile
	m.snap = s
	if filesChanged || m.mode == modePicker {
		m.picker.SetRows(fileRows(s.Files))
	}
	if fileChanged {
		m.highlight = nil
		m.hasCursor = false
		if m.mode == modePicker && s.HasFile() {
			m.mode = modeBrowse
		}
	}
	m.syncCursor()
}

func (m *Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q":
		return m, m.quit()
	case "f":
		m.mode = modePicker
		m.picker.SetRows(fileRows(m.snap.Files))
		return m, m.run(m.session.LoadFiles)
	case "esc":
		m.session.ClearError()
		return m, nil
	}
	if !m.snap.HasFile() {
		return m, nil
	}
	switch key {
	case "h", "left":
		return m, m.run(func(ctx context.Context) { m.session.Navigate(ctx, model.DirectionPrevious) })
	case "l", "right":
		return m, m.run(func(ctx context.Context) { m.session.Navigate(ctx, model.DirectionNext) })
	case "-":
		return m, m.run(func(ctx context.Context) { m.session.StepWindow(ctx, -1) })
	case "=", "+":
		return m, m.run(func(ctx context.Context) { m.session.StepWindow(ctx, 1) })
	case "g":
		return m, m.openPrompt(modeGoto, "Go to (m:ss or seconds): ")
	case "p":
		return m, m.openPrompt(modePoint, "Poincaré point #: ")
	case "i":
		return m, m.run(m.session.InvertECG)
	case "s":
		return m, m.run(m.session.Save)
	case "r":
		return m, m.run(m.session.RefreshAll)
	case "[":
		m.jumpPeak(-1)
	case "]":
		m.jumpPeak(1)
	case ",", "<":
		m.nudge(-1)
	case ".", ">":
		m.nudge(1)
	case "0", "1", "2", "3":
		if !m.hasCursor {
			return m, nil
		}
		n, _ := strconv.Atoi(key)
		at, annotation := m.cursor, model.Annotation(n)
		return m, m.run(func(ctx context.Context) { m.session.ClassifyPeak(ctx, at, annotation) })
	case "a":
		if !m.hasCursor {
			return m, nil
		}
		at := m.cursor
		return m, m.run(func(ctx context.Context) { m.session.InsertPeak(ctx, at) })
	case "x":
		if !m.hasCursor {
			return m, nil
		}
		at := m.cursor
		return m, m.run(func(ctx context.Context) { m.session.RemovePeak(ctx, at) })
	}
	return m, nil
}

func (m *Model) updatePicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, m.quit()
	case "esc":
		if m.snap.HasFile() {
			m.mode = modeBrowse
		}
		return m, nil
	case "r":
		return m, m.run(m.session.LoadFiles)
	case "enter":
		row := m.picker.SelectedRow()
		if len(row) < 2 {
			return m, nil
		}
		path := row[1]
		if m.snap.HasFile() {
			m.mode = modeBrowse
		}
		return m, m.run(func(ctx context.Context) { m.session.LoadECG(ctx, path) })
	}
	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}

func (m *Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closePrompt()
		return m, nil
	case tea.KeyEnter:
		cmd, err := m.submitPrompt(m.input.Value())
		if err != nil {
			m.inputErr = err.Error()
			return m, nil
		}
		m.closePrompt()
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submitPrompt(value string) (tea.Cmd, error) {
	if m.mode == modePoint {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, errInvalidPoint
		}
		point := float64(n)
		m.highlight = &point
		return m.run(func(ctx context.Context) { m.session.NavigateToPoincare(ctx, n) }), nil
	}
	pos, err := model.ParseClock(value)
	if err != nil {
		return nil, err
	}
	return m.run(func(ctx context.Context) { m.session.NavigateToPosition(ctx, pos) }), nil
}

func (m *Model) openPrompt(md mode, prompt string) tea.Cmd {
	m.mode = md
	m.inputErr = ""
	m.input.Prompt = prompt
	m.input.SetValue("")
	return m.input.Focus()
}

func (m *Model) closePrompt() {
	m.mode = modeBrowse
	m.inputErr = ""
	m.input.Blur()
}

// run executes op in its own command goroutine so that overlapping
// operations proceed concurrently.
func (m *Model) run(op func(ctx context.Context)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		op(ctx)
		return nil
	}
}

func (m *Model) quit() tea.Cmd {
	m.cancel()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.session.Close()
	return tea.Quit
}

// syncCursor keeps the peak cursor inside the visible window.
func (m *Model) syncCursor() {
	tr := m.snap.Trace
	if tr == nil {
		m.hasCursor = false
		return
	}
	start, end := tr.Position, tr.Position+tr.WindowLength
	if m.hasCursor && m.cursor >= start && m.cursor <= end {
		return
	}
	m.cursor = start
	if peaks := tr.AllPeakTimes(); len(peaks) > 0 {
		m.cursor = peaks[0]
	}
	m.hasCursor = true
}

func (m *Model) jumpPeak(dir int) {
	tr := m.snap.Trace
	if tr == nil || !m.hasCursor {
		return
	}
	const eps = 1e-6
	peaks := tr.AllPeakTimes()
	if dir > 0 {
		for _, p := range peaks {
			if p > m.cursor+eps {
				m.cursor = p
				return
			}
		}
		return
	}
	for i := len(peaks) - 1; i >= 0; i-- {
		if peaks[i] < m.cursor-eps {
			m.cursor = peaks[i]
			return
		}
	}
}

// nudge moves the cursor by one plot column.
func (m *Model) nudge(dir int) {
	tr := m.snap.Trace
	if tr == nil || !m.hasCursor {
		return
	}
	step := tr.WindowLength / float64(plot.WidthFor(m.width))
	m.cursor = min(max(m.cursor+float64(dir)*step, tr.Position), tr.Position+tr.WindowLength)
}
