package supervisor

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"git.tatikoma.dev/corpix/keel/errors"
	"git.tatikoma.dev/corpix/keel/log"
)

// ErrUnknownStop reports a stop signal observed set with no record in
// the queue after the retrieval window. It means the "signal set
// implies a record is forthcoming" invariant was broken somewhere; it
// is a bug in the supervision logic, never normal operation.
var ErrUnknownStop = errors.New("stopped without a captured failure")

// DefaultErrorTimeout bounds the window between the runner observing
// the stop signal and the failing unit's record landing in the queue.
const DefaultErrorTimeout = 5 * time.Second

type (
	// Runnable is what RunSafe needs from a worker: scope entry and
	// teardown, and the owned thread to start. *ThreadWorker and
	// types embedding it satisfy it.
	Runnable interface {
		Enter()
		Close()
		Main() *Thread
	}

	// MainRunner is optionally implemented by workers that want code
	// on the foreground goroutine. RunMain must return once the stop
	// signal is set.
	MainRunner interface {
		RunMain()
	}

	// BuildFunc constructs a worker bound to the runner's signal and
	// queue. A construction error is returned to the caller directly,
	// it never goes through the queue.
	BuildFunc func(stop *Stop, errs *Errors) (Runnable, error)

	// MainFunc runs on the foreground goroutine during RunSafe. It
	// must return once the stop signal is set.
	MainFunc func(stop *Stop, errs *Errors)
)

type RunOption func(*runConfig)

type runConfig struct {
	main MainFunc
}

// WithMain makes RunSafe run fn in the foreground instead of blocking
// on the stop signal.
func WithMain(fn MainFunc) RunOption {
	return func(c *runConfig) { c.main = fn }
}

// Runner owns one stop signal and one errors queue, created fresh at
// construction, and executes a worker until an internal failure or an
// operator interrupt. A Runner is single-use: the signal and queue are
// not reset, so a second RunSafe returns immediately.
type Runner struct {
	stop *Stop
	errs *Errors

	// ErrorTimeout is the retrieval budget after the scope exits.
	// Zero means DefaultErrorTimeout.
	ErrorTimeout time.Duration
}

func NewRunner() *Runner {
	return &Runner{
		stop: NewStop(),
		errs: NewErrors(),
	}
}

func (r *Runner) Stop() *Stop     { return r.stop }
func (r *Runner) Errors() *Errors { return r.errs }

// RunSafe builds the worker, starts its owned thread and blocks until
// the stop signal is set, by a captured failure anywhere in the
// supervision tree or by an operator interrupt (SIGINT/SIGTERM, mapped
// to the clean-stop sentinel). It then tears the worker scope down,
// retrieves exactly one record from the queue and either returns nil
// (clean stop) or the captured failure with its original context.
//
// Interrupt handling is installed for the duration of the call only.
func (r *Runner) RunSafe(build BuildFunc, opts ...RunOption) error {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	handled := make(chan void)
	go func() {
		defer close(handled)
		select {
		case sig := <-sigCh:
			log.Debug().Str("signal", sig.String()).Msg("received signal to close")
			// Sentinel first: the record must already be in the
			// queue when the foreground wakes up on the signal.
			r.errs.Put(nil)
			r.stop.Set()
		case <-r.stop.Done():
		}
	}()

	worker, err := build(r.stop, r.errs)
	if err != nil {
		r.stop.Set()
		<-handled
		return errors.Wrap(err, "failed to construct worker")
	}

	func() {
		defer worker.Close()
		worker.Enter()

		log.Debug().Msg("starting worker thread")
		worker.Main().Start()

		switch {
		case cfg.main != nil:
			cfg.main(r.stop, r.errs)
		default:
			if m, ok := worker.(MainRunner); ok {
				m.RunMain()
			} else {
				Wait(r.stop)
			}
		}
	}()
	<-handled

	timeout := r.ErrorTimeout
	if timeout <= 0 {
		timeout = DefaultErrorTimeout
	}

	// The guard sets the signal before its Put lands, so the record
	// may still be in flight here: the retrieval window covers that
	// race.
	failure, err := r.errs.Get(timeout)
	if err != nil {
		return errors.Chain(ErrUnknownStop, err)
	}

	if failure.Stopped() {
		log.Debug().Msg("user stop caught")
		return nil
	}

	log.Debug().Msg("internal failure caught")
	return failure.Err
}
