package session

import (
	"context"
	"fmt"
	"math"

	"github.com/verte-zerg/ecgscope/internal/model"
)

// Navigate moves the window one step in dir.
func (s *Session) Navigate(ctx context.Context, dir model.Direction) {
	wl := s.state.Snapshot().WindowLength
	pos, err := s.backend.Navigate(ctx, dir, wl)
	if err != nil {
		s.fail("navigate", err)
		return
	}
	s.moveTo(ctx, pos, false)
}

// NavigateToPosition moves the window to start at seconds, clamped to the
// recording.
func (s *Session) NavigateToPosition(ctx context.Context, seconds float64) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		s.fail("go to position", fmt.Errorf("invalid position %v", seconds))
		return
	}
	s.moveTo(ctx, seconds, true)
}

// NavigateToPoincare centres the window on the beat behind a Poincaré point.
func (s *Session) NavigateToPoincare(ctx context.Context, pointNumber int) {
	pos, err := s.backend.NavigatePoincare(ctx, pointNumber)
	if err != nil {
		s.fail("navigate poincare", err)
		return
	}
	s.moveTo(ctx, pos, false)
}

// UpdateWindowLength changes the window length. The new length is visible
// immediately; the trace is refetched once the server accepts it.
func (s *Session) UpdateWindowLength(ctx context.Context, seconds float64) {
	if !(seconds > 0) || math.IsInf(seconds, 0) {
		s.fail("set window length", fmt.Errorf("invalid window length %v", seconds))
		return
	}

	var prev float64
	s.state.update(func(d *stateData) bool {
		prev = d.windowLength
		d.windowLength = seconds
		return prev != seconds
	})

	if _, err := s.backend.SetWindowLength(ctx, seconds); err != nil {
		s.state.update(func(d *stateData) bool {
			d.err = err.Error()
			if s.opts.WindowPolicy == WindowRollback && d.windowLength == seconds {
				d.windowLength = prev
			}
			return true
		})
		s.logger.Error("operation failed", "op", "set window length", "window", seconds, "policy", s.opts.WindowPolicy, "err", err)
		return
	}

	var req traceRequest
	s.state.update(func(d *stateData) bool {
		d.position = d.clampPosition(d.position)
		req = s.pinTrace(d)
		return true
	})
	_ = s.fetchTrace(ctx, req)
}

// StepWindow moves to the next (delta > 0) or previous (delta < 0) preset
// window length.
func (s *Session) StepWindow(ctx context.Context, delta int) {
	current := s.state.Snapshot().WindowLength
	next := current
	switch {
	case delta > 0:
		next = model.NextWindowOption(current)
	case delta < 0:
		next = model.PrevWindowOption(current)
	}
	if next == current {
		return
	}
	s.UpdateWindowLength(ctx, next)
}

func (s *Session) moveTo(ctx context.Context, pos float64, clamp bool) {
	var req traceRequest
	s.state.update(func(d *stateData) bool {
		if clamp {
			pos = d.clampPosition(pos)
		}
		d.position = pos
		req = s.pinTrace(d)
		return true
	})
	_ = s.fetchTrace(ctx, req)
}
