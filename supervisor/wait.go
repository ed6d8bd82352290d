package supervisor

import (
	"git.tatikoma.dev/corpix/keel/log"
)

// Wait blocks the calling goroutine until the stop signal is set.
//
// On Windows a goroutine parked on the signal does not get interrupted
// when Ctrl+C is delivered to the process, so the platform shim polls
// the signal with a short interval there instead of blocking
// indefinitely. Other platforms block until the signal is set.
func Wait(stop *Stop) {
	log.Debug().Msg("waiting for stop signal")
	wait(stop)
}
