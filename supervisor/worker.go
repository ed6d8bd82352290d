package supervisor

import (
	"time"

	"git.tatikoma.dev/corpix/keel/errors"
	"git.tatikoma.dev/corpix/keel/log"
)

var (
	// ErrUnredefinedThread reports a ThreadWorker whose owned thread
	// was started without its body being redefined. Marked known: a
	// worker left with the placeholder is an expected failure at the
	// process edge, not a bug report.
	ErrUnredefinedThread = errors.Known(errors.New("the thread of a ThreadWorker must be redefined"))

	// ErrUnredefinedTimer reports a TimerWorker whose owned timer was
	// started without its body being redefined.
	ErrUnredefinedTimer = errors.Known(errors.New("the timer of a TimerWorker must be redefined"))
)

// Worker is a component participating in a supervision tree. It holds
// the shared stop signal and errors queue, assigned once at
// construction, and spawns supervised units bound to them through
// CreateThread and CreateTimer.
//
// A worker delimits a scope: Enter on the way in, Close on the way
// out. Close sets the stop signal unconditionally, exiting a worker
// scope for any reason means "stop everything", then runs the OnExit
// hook. Close never swallows an error the scope body is propagating to
// the caller.
type Worker struct {
	stop *Stop
	errs *Errors
	name string

	// OnEnter and OnExit are optional scope hooks, function fields in
	// the manner of cli.App.Before and cli.App.After.
	OnEnter func()
	OnExit  func()
}

type WorkerOption func(*Worker)

func WorkerName(name string) WorkerOption {
	return func(w *Worker) { w.name = name }
}

func OnEnter(fn func()) WorkerOption {
	return func(w *Worker) { w.OnEnter = fn }
}

func OnExit(fn func()) WorkerOption {
	return func(w *Worker) { w.OnExit = fn }
}

func NewWorker(stop *Stop, errs *Errors, opts ...WorkerOption) (*Worker, error) {
	if err := checkShared(stop, errs); err != nil {
		return nil, err
	}

	w := &Worker{stop: stop, errs: errs}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

func (w *Worker) Name() string    { return w.name }
func (w *Worker) Stop() *Stop     { return w.stop }
func (w *Worker) Errors() *Errors { return w.errs }

// Enter opens the worker scope and runs the OnEnter hook.
func (w *Worker) Enter() {
	if w.OnEnter != nil {
		w.OnEnter()
	}
}

// Close exits the worker scope: the stop signal is set, then the
// OnExit hook runs.
func (w *Worker) Close() {
	w.stop.Set()

	log.Debug().Str("worker", w.name).Msg("exiting worker scope")
	if w.OnExit != nil {
		w.OnExit()
	}
}

// CreateThread is the sanctioned way to spawn a supervised thread from
// inside the worker: the unit is bound to the worker's own signal and
// queue.
func (w *Worker) CreateThread(body Body, opts ...ThreadOption) (*Thread, error) {
	return NewThread(w.stop, w.errs, body, opts...)
}

// CreateTimer is the sanctioned way to spawn a supervised timer from
// inside the worker.
func (w *Worker) CreateTimer(delay time.Duration, body Body, opts ...TimerOption) (*Timer, error) {
	return NewTimer(w.stop, w.errs, delay, body, opts...)
}

// ThreadWorker is a worker owning exactly one thread, its own body.
// The thread is created at construction bound to a placeholder body
// that fails with ErrUnredefinedThread, so an un-redefined worker
// fails loudly through the normal error path instead of hanging.
// Redefine replaces it with the real body.
type ThreadWorker struct {
	Worker
	Thread *Thread
}

func NewThreadWorker(stop *Stop, errs *Errors, opts ...WorkerOption) (*ThreadWorker, error) {
	w, err := NewWorker(stop, errs, opts...)
	if err != nil {
		return nil, err
	}

	tw := &ThreadWorker{Worker: *w}
	tw.Thread, err = tw.CreateThread(func() error {
		return ErrUnredefinedThread
	}, ThreadName(tw.name))
	if err != nil {
		return nil, err
	}
	return tw, nil
}

// Redefine replaces the owned thread with one running body.
func (w *ThreadWorker) Redefine(body Body, opts ...ThreadOption) error {
	th, err := w.CreateThread(body, opts...)
	if err != nil {
		return err
	}
	w.Thread = th
	return nil
}

// Main returns the owned thread, the unit a Runner starts.
func (w *ThreadWorker) Main() *Thread { return w.Thread }

// Close tears the worker down. The stop signal is set unconditionally.
// If the owned thread never started or already finished there is
// nothing to join and Close returns at once; otherwise the OnExit hook
// runs first, while the thread is still joinable, then Close blocks
// until the thread has terminated. No concurrent work survives the
// scope.
func (w *ThreadWorker) Close() {
	w.stop.Set()

	if !w.Thread.IsAlive() {
		return
	}

	log.Debug().Str("worker", w.name).Msg("closing worker thread")
	if w.OnExit != nil {
		w.OnExit()
	}
	w.Thread.Join()
	log.Debug().Str("worker", w.name).Msg("closed worker thread")
}

// TimerWorker is a worker owning exactly one timer, created at
// construction bound to a placeholder body failing with
// ErrUnredefinedTimer. Redefine replaces it with the real body and
// delay.
type TimerWorker struct {
	Worker
	Timer *Timer
}

func NewTimerWorker(stop *Stop, errs *Errors, opts ...WorkerOption) (*TimerWorker, error) {
	w, err := NewWorker(stop, errs, opts...)
	if err != nil {
		return nil, err
	}

	tw := &TimerWorker{Worker: *w}
	tw.Timer, err = tw.CreateTimer(0, func() error {
		return ErrUnredefinedTimer
	}, TimerName(tw.name))
	if err != nil {
		return nil, err
	}
	return tw, nil
}

// Redefine replaces the owned timer with one running body after delay.
func (w *TimerWorker) Redefine(delay time.Duration, body Body, opts ...TimerOption) error {
	tm, err := w.CreateTimer(delay, body, opts...)
	if err != nil {
		return err
	}
	w.Timer = tm
	return nil
}

// Close tears the worker down. Same contract as ThreadWorker.Close,
// with one extra step: cancellation is attempted first, which is cheap
// and only effective while the delay has not elapsed, then the timer
// is joined unconditionally.
func (w *TimerWorker) Close() {
	w.stop.Set()

	if !w.Timer.IsAlive() {
		return
	}

	log.Debug().Str("worker", w.name).Msg("closing worker timer")
	if w.OnExit != nil {
		w.OnExit()
	}
	w.Timer.Cancel()
	w.Timer.Join()
	log.Debug().Str("worker", w.name).Msg("closed worker timer")
}
