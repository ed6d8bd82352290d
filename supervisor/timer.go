package supervisor

import (
	"sync"
	"time"

	"git.tatikoma.dev/corpix/keel/errors"
)

// Timer is a delayed supervised execution unit: the body runs once the
// delay elapses, under the same guard as a Thread. Cancel before the
// delay elapses prevents the body from ever running; for join purposes
// a canceled timer is indistinguishable from one that already
// finished.
type Timer struct {
	stop  *Stop
	errs  *Errors
	name  string
	body  Body
	delay time.Duration

	cancelOnce sync.Once
	cancel     chan void

	mu      sync.Mutex
	started bool
	done    chan void
}

type TimerOption func(*Timer)

func TimerName(name string) TimerOption {
	return func(t *Timer) { t.name = name }
}

func NewTimer(stop *Stop, errs *Errors, delay time.Duration, body Body, opts ...TimerOption) (*Timer, error) {
	if err := checkShared(stop, errs); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("timer body must not be nil")
	}

	t := &Timer{
		stop:   stop,
		errs:   errs,
		body:   body,
		delay:  delay,
		cancel: make(chan void),
		done:   make(chan void),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Timer) Name() string { return t.name }

// Start schedules the body to run after the delay. Calling Start a
// second time has no effect.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true

	go func() {
		defer close(t.done)

		delay := time.NewTimer(t.delay)
		defer delay.Stop()

		select {
		case <-t.cancel:
			return
		case <-delay.C:
		}

		guard(t.stop, t.errs, t.name, t.body)
	}()
}

// Cancel prevents the body from running if the delay has not yet
// elapsed. It has no effect on a body already running and is safe to
// call at any time, any number of times.
func (t *Timer) Cancel() {
	t.cancelOnce.Do(func() { close(t.cancel) })
}

// Join blocks until the goroutine has terminated, whether the body ran
// or was canceled away. Joining a timer that never started returns
// immediately.
func (t *Timer) Join() {
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started {
		return
	}
	<-t.done
}

// IsAlive reports whether the goroutine has started and not yet
// terminated. Non-blocking.
func (t *Timer) IsAlive() bool {
	t.mu.Lock()
	started := t.started
	t.mu.Unlock()
	if !started {
		return false
	}

	select {
	case <-t.done:
		return false
	default:
		return true
	}
}
