package supervisor

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.tatikoma.dev/corpix/keel/errors"
)

func TestNewWorker(t *testing.T) {
	stop := NewStop()
	queue := NewErrors()

	t.Run("nil arguments", func(t *testing.T) {
		_, err := NewWorker(nil, queue)
		assert.Error(t, err)

		_, err = NewWorker(stop, nil)
		assert.Error(t, err)
	})

	t.Run("options", func(t *testing.T) {
		worker, err := NewWorker(stop, queue,
			WorkerName("test"),
			OnEnter(func() {}),
			OnExit(func() {}),
		)
		require.NoError(t, err)
		assert.Equal(t, "test", worker.Name())
		assert.NotNil(t, worker.OnEnter)
		assert.NotNil(t, worker.OnExit)
	})
}

func TestWorkerScope(t *testing.T) {
	t.Run("close sets the signal and runs the exit hook", func(t *testing.T) {
		stop := NewStop()
		queue := NewErrors()
		var entered, exited bool

		worker, err := NewWorker(stop, queue,
			OnEnter(func() { entered = true }),
			OnExit(func() { exited = true }),
		)
		require.NoError(t, err)

		worker.Enter()
		assert.True(t, entered)
		assert.False(t, stop.IsSet())

		worker.Close()
		assert.True(t, exited)
		assert.True(t, stop.IsSet())
	})

	t.Run("a failure in the scope body is not suppressed", func(t *testing.T) {
		stop := NewStop()
		queue := NewErrors()

		worker, err := NewWorker(stop, queue)
		require.NoError(t, err)

		scopeErr := func() error {
			defer worker.Close()
			worker.Enter()
			return errBoom
		}()

		assert.True(t, errors.Is(scopeErr, errBoom))
		assert.True(t, stop.IsSet())
		assert.True(t, queue.Empty())
	})

	t.Run("created units share the worker signal and queue", func(t *testing.T) {
		stop := NewStop()
		queue := NewErrors()

		worker, err := NewWorker(stop, queue)
		require.NoError(t, err)

		thread, err := worker.CreateThread(func() error { return errBoom })
		require.NoError(t, err)

		thread.Start()
		thread.Join()

		assert.True(t, stop.IsSet())
		failure, err := queue.Get(time.Second)
		require.NoError(t, err)
		assert.True(t, errors.Is(failure.Err, errBoom))
	})
}

func TestThreadWorker(t *testing.T) {
	t.Run("placeholder body fails loudly", func(t *testing.T) {
		stop := NewStop()
		queue := NewErrors()

		worker, err := NewThreadWorker(stop, queue)
		require.NoError(t, err)

		worker.Thread.Start()
		worker.Close()

		assert.True(t, stop.IsSet())
		failure, err := queue.Get(time.Second)
		require.NoError(t, err)
		assert.True(t, errors.Is(failure.Err, ErrUnredefinedThread))
		assert.True(t, errors.IsKnown(failure.Err))
	})

	t.Run("close on a never-started thread is a no-op", func(t *testing.T) {
		stop := NewStop()
		queue := NewErrors()
		var exited bool

		worker, err := NewThreadWorker(stop, queue, OnExit(func() { exited = true }))
		require.NoError(t, err)

		begin := time.Now()
		worker.Close()

		assert.Less(t, time.Since(begin), 100*time.Millisecond)
		assert.True(t, stop.IsSet())
		assert.False(t, exited)
		assert.True(t, queue.Empty())
	})

	t.Run("close on a finished thread is a no-op", func(t *testing.T) {
		stop := NewStop()
		queue := NewErrors()

		worker, err := NewThreadWorker(stop, queue)
		require.NoError(t, err)
		require.NoError(t, worker.Redefine(func() error { return nil }))

		worker.Thread.Start()
		worker.Thread.Join()
		worker.Close()

		assert.True(t, stop.IsSet())
		assert.False(t, worker.Thread.IsAlive())
	})

	t.Run("close joins a running thread", func(t *testing.T) {
		stop := NewStop()
		queue := NewErrors()

		worker, err := NewThreadWorker(stop, queue)
		require.NoError(t, err)
		require.NoError(t, worker.Redefine(func() error {
			worker.Stop().Wait(0)
			time.Sleep(10 * time.Millisecond)
			return nil
		}))

		worker.Thread.Start()
		worker.Close()

		assert.False(t, worker.Thread.IsAlive())
		assert.True(t, queue.Empty())
	})

	t.Run("exit hook sees a still joinable thread", func(t *testing.T) {
		stop := NewStop()
		queue := NewErrors()
		release := make(chan void)
		var joinable atomic.Bool

		worker, err := NewThreadWorker(stop, queue)
		require.NoError(t, err)
		require.NoError(t, worker.Redefine(func() error {
			<-release
			return nil
		}))
		worker.OnExit = func() {
			joinable.Store(worker.Thread.IsAlive())
			close(release)
		}

		worker.Thread.Start()
		worker.Close()

		assert.True(t, joinable.Load())
		assert.False(t, worker.Thread.IsAlive())
	})
}

func TestTimerWorker(t *testing.T) {
	t.Run("placeholder body fails loudly", func(t *testing.T) {
		stop := NewStop()
		queue := NewErrors()

		worker, err := NewTimerWorker(stop, queue)
		require.NoError(t, err)

		worker.Timer.Start()
		worker.Timer.Join()
		worker.Close()

		assert.True(t, stop.IsSet())
		failure, err := queue.Get(time.Second)
		require.NoError(t, err)
		assert.True(t, errors.Is(failure.Err, ErrUnredefinedTimer))
		assert.True(t, errors.IsKnown(failure.Err))
	})

	t.Run("close cancels a pending timer", func(t *testing.T) {
		stop := NewStop()
		queue := NewErrors()
		var ran atomic.Bool

		worker, err := NewTimerWorker(stop, queue)
		require.NoError(t, err)
		require.NoError(t, worker.Redefine(time.Hour, func() error {
			ran.Store(true)
			return nil
		}))

		worker.Timer.Start()
		worker.Close()

		assert.False(t, ran.Load())
		assert.False(t, worker.Timer.IsAlive())
		assert.True(t, stop.IsSet())
		assert.True(t, queue.Empty())
	})

	t.Run("close joins a running timer body", func(t *testing.T) {
		stop := NewStop()
		queue := NewErrors()
		entered := make(chan void)

		worker, err := NewTimerWorker(stop, queue)
		require.NoError(t, err)
		require.NoError(t, worker.Redefine(0, func() error {
			close(entered)
			worker.Stop().Wait(0)
			return nil
		}))

		worker.Timer.Start()
		<-entered
		worker.Close()

		assert.False(t, worker.Timer.IsAlive())
	})

	t.Run("close on a never-started timer is a no-op", func(t *testing.T) {
		stop := NewStop()
		queue := NewErrors()

		worker, err := NewTimerWorker(stop, queue)
		require.NoError(t, err)

		worker.Close()
		assert.True(t, stop.IsSet())
		assert.True(t, queue.Empty())
	})
}
