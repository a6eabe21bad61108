// Package session keeps a windowed view of a remote ECG recording, its
// Poincaré plot and the recording metadata consistent while navigation and
// annotation operations overlap.
//
// Every exported operation blocks until its backend round-trips finish and
// never returns an error: failures are reflected into the observable state
// (Snapshot.Err and Snapshot.SaveStatus). Operations are safe to run
// concurrently from separate goroutines.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/verte-zerg/ecgscope/internal/api"
	"github.com/verte-zerg/ecgscope/internal/model"
)

// DefaultSaveStatusTTL is how long a save confirmation stays visible.
const DefaultSaveStatusTTL = 3 * time.Second

// Backend is the remote facade consumed by a Session. *api.Client
// implements it.
type Backend interface {
	ListFiles(ctx context.Context) ([]model.FileDescriptor, error)
	LoadFile(ctx context.Context, path string) (string, error)
	Metadata(ctx context.Context) (model.Metadata, error)
	Trace(ctx context.Context, q api.TraceQuery) (model.TraceWindow, error)
	Poincare(ctx context.Context) (model.PoincareDataset, error)
	Invert(ctx context.Context) (bool, error)
	Navigate(ctx context.Context, dir model.Direction, windowLength float64) (float64, error)
	SetWindowLength(ctx context.Context, seconds float64) (float64, error)
	NavigatePoincare(ctx context.Context, pointNumber int) (float64, error)
	ClassifyPeak(ctx context.Context, timePosition float64, annotation model.Annotation) (bool, error)
	InsertPeak(ctx context.Context, timePosition float64) (bool, error)
	RemovePeak(ctx context.Context, timePosition float64) error
	Save(ctx context.Context) error
	ExportURL() string
}

// Journal records file loads and annotation edits. *store.Store implements it.
type Journal interface {
	RecordOpen(ctx context.Context, f model.OpenedFile) error
	RecordEdit(ctx context.Context, e model.Edit) (int64, error)
}

// WindowPolicy decides what happens to an optimistic window length the
// backend rejected.
type WindowPolicy int

const (
	// WindowKeep leaves the rejected length in place.
	WindowKeep WindowPolicy = iota
	// WindowRollback restores the previous length.
	WindowRollback
)

// ParseWindowPolicy parses "keep" or "rollback".
func ParseWindowPolicy(s string) (WindowPolicy, error) {
	switch s {
	case "", "keep":
		return WindowKeep, nil
	case "rollback":
		return WindowRollback, nil
	default:
		return WindowKeep, fmt.Errorf("unknown window policy %q (want keep or rollback)", s)
	}
}

func (p WindowPolicy) String() string {
	if p == WindowRollback {
		return "rollback"
	}
	return "keep"
}

// Options configures a Session.
type Options struct {
	WindowLength  float64
	WindowPolicy  WindowPolicy
	SaveStatusTTL time.Duration
	Logger        *slog.Logger
	Journal       Journal
	Now           func() time.Time
}

type stopper interface {
	Stop() bool
}

// Session owns the state of one browsing session and the operations that
// mutate it.
type Session struct {
	backend Backend
	state   *State
	opts    Options
	logger  *slog.Logger

	traceEpoch    atomic.Uint64
	poincareEpoch atomic.Uint64

	statusMu    sync.Mutex
	statusTimer stopper
	closed      bool
	afterFunc   func(time.Duration, func()) stopper
}

// New creates a Session with empty state.
func New(backend Backend, opts Options) *Session {
	if opts.WindowLength <= 0 {
		opts.WindowLength = model.DefaultWindowLength
	}
	if opts.SaveStatusTTL <= 0 {
		opts.SaveStatusTTL = DefaultSaveStatusTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		backend: backend,
		state:   newState(opts.WindowLength),
		opts:    opts,
		logger:  opts.Logger.With("component", "session"),
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// State returns the observable session state.
func (s *Session) State() *State {
	return s.state
}

// Snapshot is shorthand for s.State().Snapshot().
func (s *Session) Snapshot() Snapshot {
	return s.state.Snapshot()
}

// ExportURL returns the download location of the RR-interval export for the
// loaded recording.
func (s *Session) ExportURL() string {
	return s.backend.ExportURL()
}

// Close stops the pending save-status timer. Operations still work after
// Close but no further timers are scheduled.
func (s *Session) Close() {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.closed = true
	if s.statusTimer != nil {
		s.statusTimer.Stop()
		s.statusTimer = nil
	}
}

func (s *Session) beginLoading(clearErr bool) {
	s.state.update(func(d *stateData) bool {
		d.loading++
		if clearErr {
			d.err = ""
		}
		return true
	})
}

func (s *Session) endLoading() {
	s.state.update(func(d *stateData) bool {
		if d.loading > 0 {
			d.loading--
		}
		return true
	})
}

func (s *Session) journalOpen(ctx context.Context, path, filename string) {
	if s.opts.Journal == nil {
		return
	}
	err := s.opts.Journal.RecordOpen(ctx, model.OpenedFile{Path: path, Filename: filename, OpenedAt: s.opts.Now()})
	if err != nil {
		s.logger.Warn("failed to journal file open", "file", filename, "err", err)
	}
}

func (s *Session) journalEdit(ctx context.Context, e model.Edit) {
	if s.opts.Journal == nil {
		return
	}
	e.File = s.state.Snapshot().CurrentFile
	e.At = s.opts.Now()
	if _, err := s.opts.Journal.RecordEdit(ctx, e); err != nil {
		s.logger.Warn("failed to journal edit", "op", e.Op, "err", err)
	}
}
