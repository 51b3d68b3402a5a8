package workflow

import (
	"sync"
	"time"

	"github.com/igwedaniel/dripper/internal/types"
)

// Tracker accumulates progress for one workflow run
type Tracker struct {
	mu      sync.RWMutex
	stats   types.WorkflowStats
	started time.Time
}

func NewTracker(workflow types.WorkflowType, network string) *Tracker {
	return &Tracker{stats: types.WorkflowStats{Workflow: workflow, Network: network}}
}

func (t *Tracker) start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.IsRunning = true
	t.started = time.Now()
}

func (t *Tracker) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.IsRunning = false
	t.stats.NextRunAt = time.Time{}
}

func (t *Tracker) record(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Attempts++
	t.stats.LastRunAt = time.Now()
	if err != nil {
		t.stats.Failed++
		t.stats.LastError = err.Error()
		return
	}
	t.stats.Succeeded++
}

func (t *Tracker) nextRun(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.NextRunAt = at
}

// Snapshot returns a copy of the current statistics
func (t *Tracker) Snapshot() types.WorkflowStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.stats
	if s.IsRunning {
		s.Uptime = time.Since(t.started).Round(time.Second).String()
	}
	return s
}
