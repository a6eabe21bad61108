package session

import "context"

const (
	saveOKMessage     = "Saved successfully!"
	saveFailedMessage = "Save failed: "
)

// Save persists annotations on the server. The outcome is shown in
// Snapshot.SaveStatus and cleared after the configured TTL; a new save
// replaces any pending clear.
func (s *Session) Save(ctx context.Context) {
	s.beginLoading(false)
	s.setSaveStatus("")

	msg := saveOKMessage
	if err := s.backend.Save(ctx); err != nil {
		msg = saveFailedMessage + err.Error()
		s.logger.Error("operation failed", "op", "save", "err", err)
	} else {
		s.logger.Info("annotations saved", "file", s.state.Snapshot().CurrentFile)
	}

	s.endLoading()
	s.setSaveStatus(msg)
}

// ClearError dismisses the current error message.
func (s *Session) ClearError() {
	s.state.update(func(d *stateData) bool {
		if d.err == "" {
			return false
		}
		d.err = ""
		return true
	})
}

// fail logs err and makes it the visible error.
func (s *Session) fail(op string, err error) {
	s.logger.Error("operation failed", "op", op, "err", err)
	msg := err.Error()
	s.state.update(func(d *stateData) bool {
		d.err = msg
		return true
	})
}

// setSaveStatus replaces the save status and, for a non-empty message,
// schedules its removal. Any earlier scheduled removal is cancelled. Lock
// order is statusMu before the state lock.
func (s *Session) setSaveStatus(msg string) {
	var gen uint64
	s.state.update(func(d *stateData) bool {
		d.saveGen++
		gen = d.saveGen
		changed := d.saveStatus != msg
		d.saveStatus = msg
		return changed
	})

	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	// A newer save already owns the timer.
	if s.saveGen() != gen {
		return
	}
	if s.statusTimer != nil {
		s.statusTimer.Stop()
		s.statusTimer = nil
	}
	if msg == "" || s.closed {
		return
	}
	s.statusTimer = s.afterFunc(s.opts.SaveStatusTTL, func() {
		s.expireSaveStatus(gen)
	})
}

func (s *Session) expireSaveStatus(gen uint64) {
	s.state.update(func(d *stateData) bool {
		if d.saveGen != gen || d.saveStatus == "" {
			return false
		}
		d.saveStatus = ""
		return true
	})
}

func (s *Session) saveGen() uint64 {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	return s.state.data.saveGen
}
