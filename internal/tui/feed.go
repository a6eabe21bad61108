package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/ecgscope/internal/session"
)

type snapshotMsg session.Snapshot

// snapshotFeed turns session notifications into Bubble Tea messages. Only
// the newest snapshot is kept; intermediate ones are coalesced.
type snapshotFeed struct {
	mu     sync.Mutex
	latest session.Snapshot
	notify chan struct{}
}

func newSnapshotFeed() *snapshotFeed {
	return &snapshotFeed{notify: make(chan struct{}, 1)}
}

func (f *snapshotFeed) push(s session.Snapshot) {
	f.mu.Lock()
	if s.Version >= f.latest.Version {
		f.latest = s
	}
	f.mu.Unlock()
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

func (f *snapshotFeed) current() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

func (f *snapshotFeed) wait(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-f.notify:
			return snapshotMsg(f.current())
		case <-ctx.Done():
			return nil
		}
	}
}
