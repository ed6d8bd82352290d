//go:build !windows

package supervisor

func wait(stop *Stop) {
	stop.Wait(0)
}
