package supervisor

import (
	"sync"

	"git.tatikoma.dev/corpix/keel/errors"
	"git.tatikoma.dev/corpix/keel/log"
)

// Body is a unit of work executed in its own goroutine under
// supervision. A non-nil return value counts as a failure, as does a
// panic.
type Body func() error

// Thread is an immediate-start supervised execution unit. A failure
// escaping the body never terminates the process and is never lost:
// the guard sets the stop signal, then enqueues the failure, then lets
// the goroutine end normally.
type Thread struct {
	stop *Stop
	errs *Errors
	name string
	body Body

	mu      sync.Mutex
	started bool
	done    chan void
}

type ThreadOption func(*Thread)

func ThreadName(name string) ThreadOption {
	return func(t *Thread) { t.name = name }
}

func NewThread(stop *Stop, errs *Errors, body Body, opts ...ThreadOption) (*Thread, error) {
	if err := checkShared(stop, errs); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("thread body must not be nil")
	}

	t := &Thread{
		stop: stop,
		errs: errs,
		body: body,
		done: make(chan void),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Thread) Name() string { return t.name }

// Start begins running the body in a new goroutine. Calling Start a
// second time has no effect.
func (t *Thread) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true

	go func() {
		defer close(t.done)
		guard(t.stop, t.errs, t.name, t.body)
	}()
}

// Join blocks until the goroutine has terminated. Joining a thread
// that never started returns immediately.
func (t *Thread) Join() {
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
func (t *Thread) IsAlive() bool {
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

// checkShared validates the two shared objects every supervised
// participant is constructed with. A violation is fatal at
// construction and never goes through the queue.
func checkShared(stop *Stop, errs *Errors) error {
	if stop == nil {
		return errors.New("stop signal must not be nil")
	}
	if errs == nil {
		return errors.New("errors queue must not be nil")
	}
	return nil
}

// guard runs body and funnels any escaping failure through the shared
// signal and queue. The signal is set strictly before the record is
// enqueued, so an observer holding a record always sees the signal
// set.
func guard(stop *Stop, errs *Errors, name string, body Body) {
	defer func() {
		if r := recover(); r != nil {
			capture(stop, errs, name, recovered(r))
		}
	}()

	if err := body(); err != nil {
		capture(stop, errs, name, err)
	}
}

func capture(stop *Stop, errs *Errors, name string, err error) {
	log.Debug().Str("unit", name).Err(err).Msg("captured failure")
	stop.Set()
	errs.Put(errors.WithStack(err))
}

// recovered normalizes a recovered panic value into an error.
func recovered(r any) error {
	switch v := r.(type) {
	case error:
		return v
	default:
		return errors.Errorf("%v", v)
	}
}
