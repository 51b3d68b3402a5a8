package clock

import (
	"context"
	"sync"
	"time"
)

// Sleeper pauses a workflow. Sleep returns ctx.Err() if ctx ends first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Real sleeps on a timer
type Real struct{}

func (Real) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Recorder returns immediately and remembers every requested duration.
// OnSleep, if set, runs after each call with the 1-based call number.
type Recorder struct {
	OnSleep func(call int)

	mu    sync.Mutex
	calls []time.Duration
}

func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.calls = append(r.calls, d)
	n := len(r.calls)
	r.mu.Unlock()

	if r.OnSleep != nil {
		r.OnSleep(n)
	}
	return nil
}

// Calls returns a copy of the recorded durations
func (r *Recorder) Calls() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.calls))
	copy(out, r.calls)
	return out
}
