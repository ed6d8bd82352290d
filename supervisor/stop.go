package supervisor

import (
	"sync"
	"time"
)

type void = struct{}

// Stop is the shared cancellation signal of a supervision tree. It is
// one-way: once set it cannot be unset. Safe for concurrent use from
// any number of goroutines.
type Stop struct {
	once sync.Once
	ch   chan void
}

func NewStop() *Stop {
	return &Stop{ch: make(chan void)}
}

// Set transitions the signal to the set state. Idempotent.
func (s *Stop) Set() {
	s.once.Do(func() { close(s.ch) })
}

func (s *Stop) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed once the signal is set, for use in
// select statements.
func (s *Stop) Done() <-chan void {
	return s.ch
}

// Wait blocks until the signal is set. With a positive timeout Wait
// returns once the timeout elapses regardless of signal state; the
// return value reports whether the signal was observed set.
func (s *Stop) Wait(timeout time.Duration) bool {
	if timeout <= 0 {
		<-s.ch
		return true
	}

	select {
	case <-s.ch:
		return true
	case <-time.After(timeout):
		return s.IsSet()
	}
}
