package session

import (
	"slices"
	"sync"

	"github.com/verte-zerg/ecgscope/internal/model"
)

// Snapshot is a point-in-time copy of the session state. Slices and
// pointers are shared with the state and must be treated as read-only.
// Version increases with every mutation; observers on different goroutines
// may receive snapshots out of order and should keep the highest version.
type Snapshot struct {
	Version uint64

	Files        []model.FileDescriptor
	CurrentFile  string
	Metadata     *model.Metadata
	Trace        *model.TraceWindow
	Poincare     *model.PoincareDataset
	WindowLength float64
	Position     float64

	Loading      bool
	LoadingTrace bool
	Err          string
	SaveStatus   string
}

// HasFile reports whether a recording is loaded.
func (s Snapshot) HasFile() bool {
	return s.CurrentFile != ""
}

// Observer receives a snapshot after every state mutation.
type Observer func(Snapshot)

// State is the single source of truth for a browsing session. It is only
// mutated by Session operations; everyone else reads snapshots.
type State struct {
	mu   sync.Mutex
	data stateData

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObsID int
}

type stateData struct {
	version uint64

	files        []model.FileDescriptor
	currentFile  string
	metadata     *model.Metadata
	trace        *model.TraceWindow
	poincare     *model.PoincareDataset
	windowLength float64
	position     float64

	loading      int
	loadingTrace int
	err          string
	saveStatus   string

	// fileGen advances on every file switch; saveGen on every save status
	// change. Late results compare against them before applying.
	fileGen uint64
	saveGen uint64
}

func newState(windowLength float64) *State {
	return &State{
		data:      stateData{windowLength: windowLength},
		observers: map[int]Observer{},
	}
}

// Snapshot returns the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.snapshot()
}

// Subscribe registers fn to be called after every mutation and returns a
// function that removes it. Observers run on the goroutine that performed the
// mutation and must not block.
func (s *State) Subscribe(fn Observer) func() {
	s.obsMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = fn
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// update applies fn under the state lock and notifies observers. fn reports
// whether it changed anything; unchanged updates are not broadcast.
func (s *State) update(fn func(d *stateData) bool) {
	s.mu.Lock()
	changed := fn(&s.data)
	if changed {
		s.data.version++
	}
	snap := s.data.snapshot()
	s.mu.Unlock()
	if changed {
		s.notify(snap)
	}
}

func (s *State) notify(snap Snapshot) {
	s.obsMu.Lock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, s.observers[id])
	}
	s.obsMu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}

func (d *stateData) snapshot() Snapshot {
	return Snapshot{
		Version:      d.version,
		Files:        d.files,
		CurrentFile:  d.currentFile,
		Metadata:     d.metadata,
		Trace:        d.trace,
		Poincare:     d.poincare,
		WindowLength: d.windowLength,
		Position:     d.position,
		Loading:      d.loading > 0,
		LoadingTrace: d.loadingTrace > 0,
		Err:          d.err,
		SaveStatus:   d.saveStatus,
	}
}

// clampPosition keeps the window inside the recording when metadata is known.
func (d *stateData) clampPosition(p float64) float64 {
	if d.metadata == nil {
		return p
	}
	return min(max(p, 0), d.metadata.MaxPosition(d.windowLength))
}

// resetFile discards everything tied to the previous recording.
func (d *stateData) resetFile(filename string) {
	d.fileGen++
	d.currentFile = filename
	d.metadata = nil
	d.trace = nil
	d.poincare = nil
	d.position = 0
}
