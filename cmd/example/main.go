// Command example runs a minimal supervised worker until Ctrl+C.
package main

import (
	"fmt"
	"os"

	"git.tatikoma.dev/corpix/keel/app"
	"git.tatikoma.dev/corpix/keel/config"
	"git.tatikoma.dev/corpix/keel/supervisor"
)

type idler struct {
	*supervisor.ThreadWorker
}

func newIdler(stop *supervisor.Stop, errs *supervisor.Errors) (supervisor.Runnable, error) {
	w, err := supervisor.NewThreadWorker(stop, errs, supervisor.WorkerName("idler"))
	if err != nil {
		return nil, err
	}

	i := &idler{ThreadWorker: w}
	if err := i.Redefine(i.run, supervisor.ThreadName("idler")); err != nil {
		return nil, err
	}
	return i, nil
}

func (i *idler) run() error {
	fmt.Println("starting worker")
	supervisor.Wait(i.Stop())
	fmt.Println("ending worker")
	return nil
}

func main() {
	a := app.New("example", "minimal supervised worker",
		func(ctx *app.Context, cfg *config.Config) error {
			fmt.Println("starting runner")
			defer fmt.Println("ending runner")
			return supervisor.NewRunner().RunSafe(newIdler)
		})
	os.Exit(a.Exec(os.Args))
}
