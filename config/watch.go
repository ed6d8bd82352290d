package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"git.tatikoma.dev/corpix/keel/errors"
	"git.tatikoma.dev/corpix/keel/log"
	"git.tatikoma.dev/corpix/keel/supervisor"
)

// Watch runs fn on every write to the config file until the stop
// signal is set. The watch is registered on the parent directory so
// editors replacing the file atomically are still observed.
//
// Watch blocks; run it inside a supervised thread of the owning
// worker.
func Watch(stop *supervisor.Stop, path string, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer errors.LogCallErr(watcher.Close, "failed to close file watcher")

	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve %q", path)
	}
	dir := filepath.Dir(abs)
	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "failed to watch %q", dir)
	}

	log.Debug().Str("config", abs).Msg("watching config file")
	for {
		select {
		case <-stop.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != abs {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				log.Debug().Str("config", abs).Msg("config file changed")
				fn()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return errors.Wrap(err, "file watcher failed")
		}
	}
}
