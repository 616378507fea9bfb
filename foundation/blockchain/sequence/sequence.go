// Package sequence implements the single process-wide FIFO that serializes
// every authoritative mutation of chain state. It replaces the promise-chain
// serializer of the source with an explicit single-consumer task queue.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrShuttingDown is returned to any task still pending, or submitted after,
// Shutdown has been called.
var ErrShuttingDown = errors.New("sequence: shutting down")

// EventHandler receives diagnostic notices from the sequence, the same way
// the worker package's evHandler receives them from its goroutines.
type EventHandler func(v string, args ...any)

// Task is the unit of work the sequence runs. It returns a result value and
// an error; the caller that enqueued it receives both once the task has run.
type Task func(ctx context.Context) (any, error)

type job struct {
	ctx    context.Context
	task   Task
	result chan result
}

type result struct {
	value any
	err   error
}

// Sequence is a bounded, single-consumer FIFO task queue. Block appends and
// the block deletions they trigger, forging, and sync batches enqueue here
// so block-level chain state has one global mutation gate. Transaction pool
// mutations do not pass through it; the pool guards itself with its own
// mutex.
type Sequence struct {
	evHandler EventHandler
	warnAt    int

	mu     sync.Mutex
	jobs   chan job
	shut   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// Config carries the Sequence's tunables.
type Config struct {
	// Backlog is the maximum number of pending tasks the queue will hold
	// before Add blocks the caller.
	Backlog int

	// WarnAt is the backlog depth at which EventHandler is notified. A
	// value of 0 disables the warning.
	WarnAt int

	EvHandler EventHandler
}

// New constructs and starts a Sequence. The returned value owns a single
// background goroutine that drains jobs strictly in enqueue order; the next
// job starts only once the previous one's task has fully returned.
func New(cfg Config) *Sequence {
	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	backlog := cfg.Backlog
	if backlog <= 0 {
		backlog = 1000
	}

	s := Sequence{
		evHandler: ev,
		warnAt:    cfg.WarnAt,
		jobs:      make(chan job, backlog),
		shut:      make(chan struct{}),
	}

	s.wg.Add(1)
	go s.run()

	return &s
}

// run is the single consumer goroutine. It is the only goroutine that ever
// reads from s.jobs, which is what gives the sequence its total order.
func (s *Sequence) run() {
	defer s.wg.Done()

	for {
		select {
		case j := <-s.jobs:
			select {
			case <-s.shut:
				j.result <- result{err: ErrShuttingDown}
				s.drain()
				return
			default:
			}
			s.execute(j)
		case <-s.shut:
			s.drain()
			return
		}
	}
}

func (s *Sequence) execute(j job) {
	defer func() {
		if r := recover(); r != nil {
			j.result <- result{err: fmt.Errorf("sequence: task panicked: %v", r)}
		}
	}()

	v, err := j.task(j.ctx)
	j.result <- result{value: v, err: err}
}

// drain rejects every job still sitting in the channel once shutdown has
// begun, so no caller of Add blocks forever.
func (s *Sequence) drain() {
	for {
		select {
		case j := <-s.jobs:
			j.result <- result{err: ErrShuttingDown}
		default:
			return
		}
	}
}

// Add enqueues task and blocks until it has run and returned, or the
// sequence is shut down first. Ordering: if Add(A) returns before Add(B) is
// called, A's effects are visible to B's task.
func (s *Sequence) Add(ctx context.Context, task Task) (any, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	s.mu.Unlock()

	j := job{ctx: ctx, task: task, result: make(chan result, 1)}

	if n := len(s.jobs); s.warnAt > 0 && n >= s.warnAt {
		s.evHandler("sequence: Add: WARNING: backlog depth[%d] crossed threshold[%d]", n, s.warnAt)
	}

	select {
	case s.jobs <- j:
	case <-s.shut:
		return nil, ErrShuttingDown
	}

	select {
	case r := <-j.result:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Pending returns the current backlog depth. Read-only, observed outside
// the sequence itself, so callers must tolerate it changing between calls.
func (s *Sequence) Pending() int {
	return len(s.jobs)
}

// Shutdown stops the consumer goroutine, rejects every task still pending
// with ErrShuttingDown, and waits for the consumer to exit. It is safe to
// call more than once.
func (s *Sequence) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.shut)
	s.mu.Unlock()

	s.wg.Wait()
}
