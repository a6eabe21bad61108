package session

import (
	"context"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/ecgscope/internal/api"
)

// LoadFiles refreshes the list of recordings available on the server.
func (s *Session) LoadFiles(ctx context.Context) {
	s.beginLoading(true)
	defer s.endLoading()

	files, err := s.backend.ListFiles(ctx)
	if err != nil {
		s.fail("list files", err)
		return
	}
	s.state.update(func(d *stateData) bool {
		d.files = files
		return true
	})
	s.logger.Debug("file list refreshed", "count", len(files))
}

// LoadECG loads the recording at path and fetches everything derived from
// it. On failure the previously loaded recording stays in place.
func (s *Session) LoadECG(ctx context.Context, path string) {
	s.beginLoading(true)
	defer s.endLoading()

	filename, err := s.backend.LoadFile(ctx, path)
	if err != nil {
		s.fail("load file", err)
		return
	}
	if filename == "" {
		filename = filepath.Base(path)
	}
	s.state.update(func(d *stateData) bool {
		s.traceEpoch.Add(1)
		s.poincareEpoch.Add(1)
		d.resetFile(filename)
		return true
	})
	s.logger.Info("recording loaded", "path", path, "file", filename)
	s.journalOpen(ctx, path, filename)

	s.refreshAll(ctx)
}

// RefreshAll re-reads metadata and then the trace window and Poincaré plot
// at the position the server reports.
func (s *Session) RefreshAll(ctx context.Context) {
	s.beginLoading(false)
	defer s.endLoading()
	s.refreshAll(ctx)
}

func (s *Session) refreshAll(ctx context.Context) {
	gen := s.fileGen()
	md, err := s.backend.Metadata(ctx)
	if err != nil {
		s.fail("get metadata", err)
		return
	}

	var req traceRequest
	var plot uint64
	var stale bool
	s.state.update(func(d *stateData) bool {
		if d.fileGen != gen {
			stale = true
			return false
		}
		d.metadata = &md
		if md.WindowLength > 0 {
			d.windowLength = md.WindowLength
		}
		d.position = md.Position
		req = s.pinTrace(d)
		plot = s.poincareEpoch.Add(1)
		return true
	})
	if stale {
		s.logger.Debug("dropped metadata for a replaced recording", "file", md.Filename)
		return
	}
	s.refreshWindowData(ctx, req, plot)
}

// InvertECG toggles the signal polarity and reloads every derived view.
func (s *Session) InvertECG(ctx context.Context) {
	s.beginLoading(false)
	defer s.endLoading()

	inverted, err := s.backend.Invert(ctx)
	if err != nil {
		s.fail("invert", err)
		return
	}
	s.logger.Info("signal polarity toggled", "inverted", inverted)
	s.refreshAll(ctx)
}

// traceRequest is a trace fetch pinned to the window it was issued for.
type traceRequest struct {
	pos, wl float64
	epoch   uint64
}

// pinTrace must run inside the update that sets the window, so epochs are
// handed out in the same order as window changes.
func (s *Session) pinTrace(d *stateData) traceRequest {
	d.loadingTrace++
	return traceRequest{pos: d.position, wl: d.windowLength, epoch: s.traceEpoch.Add(1)}
}

// refreshWindowData fetches the trace and the Poincaré plot concurrently and
// waits for both.
func (s *Session) refreshWindowData(ctx context.Context, req traceRequest, plotEpoch uint64) {
	// A failed trace must not cancel the Poincaré fetch, so no shared context.
	var g errgroup.Group
	g.Go(func() error {
		return s.fetchTrace(ctx, req)
	})
	g.Go(func() error {
		return s.fetchPoincare(ctx, plotEpoch)
	})
	if err := g.Wait(); err != nil {
		s.logger.Debug("window refresh incomplete", "err", err)
	}
}

func (s *Session) fetchTrace(ctx context.Context, req traceRequest) error {
	pos, wl, epoch := req.pos, req.wl, req.epoch
	tw, err := s.backend.Trace(ctx, api.TraceQuery{Position: &pos, WindowLength: &wl})

	var stale bool
	s.state.update(func(d *stateData) bool {
		d.loadingTrace--
		if s.traceEpoch.Load() != epoch {
			stale = true
			return true
		}
		if err != nil {
			d.err = err.Error()
			return true
		}
		d.trace = &tw
		return true
	})
	switch {
	case stale:
		s.logger.Debug("dropped stale trace", "epoch", epoch, "position", pos, "window", wl)
		return nil
	case err != nil:
		s.logger.Error("operation failed", "op", "get trace", "err", err)
		return err
	}
	return nil
}

// fetchPoincare never touches the error field. A backend rejection means the
// plot is unavailable for this recording and clears it; transport failures
// keep whatever was shown before.
func (s *Session) fetchPoincare(ctx context.Context, epoch uint64) error {
	ds, err := s.backend.Poincare(ctx)

	var stale bool
	s.state.update(func(d *stateData) bool {
		if s.poincareEpoch.Load() != epoch {
			stale = true
			return false
		}
		if err != nil {
			if api.IsDomain(err) && d.poincare != nil {
				d.poincare = nil
				return true
			}
			return false
		}
		d.poincare = &ds
		return true
	})
	switch {
	case stale:
		s.logger.Debug("dropped stale poincare data", "epoch", epoch)
	case err != nil:
		s.logger.Warn("poincare data unavailable", "err", err)
	}
	return nil
}

func (s *Session) fileGen() uint64 {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.state.data.fileGen
}
