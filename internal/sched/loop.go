// Package sched provides the host-side scheduling collaborator: a serial
// FIFO task sink that the host drains once per tick.
//
// The bus engine's async dispatch mode depends only on the small TaskSink
// surface (Enqueue). Hosts additionally use EnqueueAsync when they need the
// action's outcome, and call Drain from their tick loop. After Shutdown the
// loop refuses new work without throwing into unrelated callers:
// fire-and-forget actions are silently dropped and async enqueues are
// rejected with ErrShutdown.
package sched

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// ErrShutdown is returned when work is submitted after Shutdown.
var ErrShutdown = errors.New("scheduler has been shut down")

// PanicError wraps a panic raised by a scheduled action.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("scheduled action panicked: %v", e.Value)
}

// Completion settles exactly once with the outcome of an async action.
type Completion struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

func (c *Completion) settle(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}

// Done returns a channel closed when the action has completed.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Err blocks until the action completes and returns its outcome.
func (c *Completion) Err() error {
	<-c.done
	return c.err
}

type task struct {
	fn func() error
	c  *Completion // nil for fire-and-forget
}

// Loop is a serial FIFO task queue drained by the host once per tick.
// Actions it accepts run in submission order, never concurrently with
// each other. All methods are safe for concurrent use.
type Loop struct {
	mu    sync.Mutex
	queue []task
	down  bool

	logger *slog.Logger

	enqueued atomic.Uint64
	executed atomic.Uint64
	rejected atomic.Uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used to report panics from fire-and-forget
// actions. Without it such panics are recovered silently.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// NewLoop creates an empty loop.
func NewLoop(opts ...Option) *Loop {
	l := &Loop{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enqueue submits a fire-and-forget action. Dropped silently after
// Shutdown.
func (l *Loop) Enqueue(fn func()) {
	if fn == nil {
		return
	}
	l.push(task{fn: func() error { fn(); return nil }})
}

// EnqueueAsync submits an action and returns a Completion that settles
// with the action's outcome. Rejected with ErrShutdown after Shutdown.
func (l *Loop) EnqueueAsync(fn func() error) (*Completion, error) {
	if fn == nil {
		return nil, errors.New("action cannot be nil")
	}
	c := newCompletion()
	if !l.push(task{fn: fn, c: c}) {
		return nil, ErrShutdown
	}
	return c, nil
}

func (l *Loop) push(t task) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.down {
		l.rejected.Add(1)
		return false
	}
	l.queue = append(l.queue, t)
	l.enqueued.Add(1)
	return true
}

// Drain runs every action queued at the moment of the call, in FIFO order,
// and returns the number executed. Actions enqueued while draining run on
// the next tick. Call once per host tick.
func (l *Loop) Drain() int {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, t := range batch {
		l.run(t)
	}
	return len(batch)
}

// run executes one action with panic containment.
func (l *Loop) run(t task) {
	defer l.executed.Add(1)
	defer func() {
		if r := recover(); r != nil {
			err := &PanicError{Value: r, Stack: debug.Stack()}
			if t.c != nil {
				t.c.settle(err)
			} else if l.logger != nil {
				l.logger.Error("scheduled action panicked", "panic", r)
			}
		}
	}()

	err := t.fn()
	if t.c != nil {
		t.c.settle(err)
	}
}

// Shutdown stops the loop. Actions still queued are discarded; their
// completions settle with ErrShutdown. Idempotent.
func (l *Loop) Shutdown() {
	l.mu.Lock()
	pending := l.queue
	l.queue = nil
	l.down = true
	l.mu.Unlock()

	for _, t := range pending {
		if t.c != nil {
			t.c.settle(ErrShutdown)
		}
	}
}

// Len returns the number of actions currently queued.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Stats is a point-in-time snapshot of the loop's counters.
type Stats struct {
	Enqueued uint64
	Executed uint64
	Rejected uint64
	Queued   int
}

// Stats returns a snapshot of the loop's counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Enqueued: l.enqueued.Load(),
		Executed: l.executed.Load(),
		Rejected: l.rejected.Load(),
		Queued:   l.Len(),
	}
}
