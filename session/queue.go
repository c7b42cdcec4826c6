package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/tictacmesh/core"
	"github.com/hupe1980/tictacmesh/logging"
)

// Job is a unit of work executed on a session's task queue. The context is
// cancelled when the job is interrupted or the session is torn down.
type Job func(ctx context.Context)

type task struct {
	fn   Job
	done chan struct{}
}

// taskQueue executes jobs one after the other on a single goroutine.
type taskQueue struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger logging.Logger

	mu        sync.Mutex
	pending   []task
	closed    bool
	runCancel context.CancelFunc

	signal  chan struct{}
	stopped chan struct{}
}

func newTaskQueue(parent context.Context, logger logging.Logger) *taskQueue {
	ctx, cancel := context.WithCancel(parent)
	q := &taskQueue{
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		signal:  make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.loop()
	return q
}

func (q *taskQueue) submit(fn Job) (<-chan struct{}, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, core.ErrSessionClosed
	}

	t := task{fn: fn, done: make(chan struct{})}
	q.pending = append(q.pending, t)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return t.done, nil
}

// interrupt cancels the running job and discards queued ones.
func (q *taskQueue) interrupt() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.runCancel != nil {
		q.runCancel()
	}
	q.dropPendingLocked()
}

// close stops the queue and returns a channel closed once the worker exited.
func (q *taskQueue) close() <-chan struct{} {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		q.dropPendingLocked()
		q.cancel()
	}
	q.mu.Unlock()
	return q.stopped
}

func (q *taskQueue) dropPendingLocked() {
	for _, t := range q.pending {
		close(t.done)
	}
	q.pending = nil
}

func (q *taskQueue) loop() {
	defer close(q.stopped)

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.signal:
		}

		for {
			t, ctx, ok := q.next()
			if !ok {
				break
			}
			q.run(ctx, t)
		}
	}
}

func (q *taskQueue) next() (task, context.Context, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 || q.closed {
		return task{}, nil, false
	}

	t := q.pending[0]
	q.pending = q.pending[1:]

	ctx, cancel := context.WithCancel(q.ctx)
	q.runCancel = cancel

	return t, ctx, true
}

func (q *taskQueue) run(ctx context.Context, t task) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("session.job.panic", "panic", fmt.Sprint(r))
		}

		q.mu.Lock()
		if q.runCancel != nil {
			q.runCancel()
			q.runCancel = nil
		}
		q.mu.Unlock()

		close(t.done)
	}()

	t.fn(ctx)
}
