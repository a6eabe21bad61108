package session

import (
	"context"
	"fmt"

	"github.com/verte-zerg/ecgscope/internal/model"
)

// ClassifyPeak relabels the peak nearest to timePosition. Views are
// refetched only when the server reports a change.
func (s *Session) ClassifyPeak(ctx context.Context, timePosition float64, annotation model.Annotation) {
	if !annotation.Valid() {
		s.fail("classify peak", fmt.Errorf("invalid annotation %d", annotation))
		return
	}
	changed, err := s.backend.ClassifyPeak(ctx, timePosition, annotation)
	if err != nil {
		s.fail("classify peak", err)
		return
	}
	s.journalEdit(ctx, model.Edit{Op: model.EditClassify, TimePosition: timePosition, Annotation: &annotation, Changed: changed})
	if changed {
		s.refreshCurrentWindow(ctx)
	}
}

// InsertPeak adds a beat near timePosition.
func (s *Session) InsertPeak(ctx context.Context, timePosition float64) {
	changed, err := s.backend.InsertPeak(ctx, timePosition)
	if err != nil {
		s.fail("insert peak", err)
		return
	}
	s.journalEdit(ctx, model.Edit{Op: model.EditInsert, TimePosition: timePosition, Changed: changed})
	if changed {
		s.refreshCurrentWindow(ctx)
	}
}

// RemovePeak deletes the beat at or after timePosition.
func (s *Session) RemovePeak(ctx context.Context, timePosition float64) {
	if err := s.backend.RemovePeak(ctx, timePosition); err != nil {
		s.fail("remove peak", err)
		return
	}
	s.journalEdit(ctx, model.Edit{Op: model.EditRemove, TimePosition: timePosition, Changed: true})
	s.refreshCurrentWindow(ctx)
}

func (s *Session) refreshCurrentWindow(ctx context.Context) {
	var req traceRequest
	var plot uint64
	s.state.update(func(d *stateData) bool {
		req = s.pinTrace(d)
		plot = s.poincareEpoch.Add(1)
		return true
	})
	s.refreshWindowData(ctx, req, plot)
}
