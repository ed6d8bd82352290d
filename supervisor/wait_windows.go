//go:build windows

package supervisor

import "time"

// waitPollInterval is the delay between two looks at the stop signal.
const waitPollInterval = 500 * time.Millisecond

func wait(stop *Stop) {
	for !stop.IsSet() {
		stop.Wait(waitPollInterval)
	}
}
