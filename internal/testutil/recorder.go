package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/tictacmesh/core"
)

// Recorder is a core.Emitter that keeps every notification in order.
type Recorder struct {
	mu    sync.Mutex
	notes []core.Notification
	wake  chan struct{}
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder { return &Recorder{wake: make(chan struct{}, 1)} }

// Emit implements core.Emitter.
func (r *Recorder) Emit(_ context.Context, n core.Notification) error {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
	return nil
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []core.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.Notification, len(r.notes))
	copy(out, r.notes)
	return out
}

// Kinds returns the recorded kinds in order.
func (r *Recorder) Kinds() []core.Kind {
	notes := r.All()
	kinds := make([]core.Kind, len(notes))
	for i, n := range notes {
		kinds[i] = n.Kind
	}
	return kinds
}

// OfKind returns the recorded notifications of kind k.
func (r *Recorder) OfKind(k core.Kind) []core.Notification {
	var out []core.Notification
	for _, n := range r.All() {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

// Count returns how many notifications of kind k were recorded.
func (r *Recorder) Count(k core.Kind) int { return len(r.OfKind(k)) }

// WaitFor blocks until at least n notifications of kind k arrived or the
// timeout elapsed. It reports whether the condition was met.
func (r *Recorder) WaitFor(k core.Kind, n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if r.Count(k) >= n {
			return true
		}
		select {
		case <-r.wake:
		case <-deadline:
			return r.Count(k) >= n
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = nil
}
