package supervisor

import (
	"sync"
	"time"

	"git.tatikoma.dev/corpix/keel/errors"
)

// ErrQueueEmpty is returned by Errors.Get when no record arrives before
// the deadline.
var ErrQueueEmpty = errors.New("errors queue is empty")

// Failure is a captured record travelling from a failing unit to the
// observing goroutine. The error carries the stack of the capture
// point. A Failure with a nil Err is the clean-stop sentinel: stop was
// requested, nothing actually failed.
type Failure struct {
	Err error
}

// Stopped reports whether the record is the clean-stop sentinel.
func (f Failure) Stopped() bool {
	return f.Err == nil
}

// Errors is an unbounded FIFO handoff of Failure records between
// goroutines. Put never blocks; Get blocks up to a deadline. Safe for
// concurrent use.
type Errors struct {
	mu    sync.Mutex
	queue []Failure
	wake  chan void
}

func NewErrors() *Errors {
	return &Errors{wake: make(chan void, 1)}
}

// Put enqueues a record. A nil error enqueues the clean-stop sentinel.
// Put never blocks and never fails; the queue is bounded only by
// memory.
func (e *Errors) Put(err error) {
	e.mu.Lock()
	e.queue = append(e.queue, Failure{Err: err})
	e.mu.Unlock()

	select {
	case e.wake <- void{}:
	default:
	}
}

func (e *Errors) Empty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue) == 0
}

// Get dequeues the oldest record, waiting up to timeout for one to
// arrive. Returns ErrQueueEmpty once the deadline elapses with nothing
// to hand off.
func (e *Errors) Get(timeout time.Duration) (Failure, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		e.mu.Lock()
		if len(e.queue) > 0 {
			f := e.queue[0]
			e.queue = e.queue[1:]
			e.mu.Unlock()
			return f, nil
		}
		e.mu.Unlock()

		select {
		case <-e.wake:
		case <-deadline.C:
			return Failure{}, ErrQueueEmpty
		}
	}
}
