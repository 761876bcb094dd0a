// Command memoryengine runs the personal memory engine: the HTTP surface,
// the job-queue worker harness, or both in one process, selected by the
// RUN_SERVER / RUN_WORKER environment variables (§5.1).
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/lumenmind/memoryengine/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		panic(err)
	}

	if err := a.Start(); err != nil {
		a.Log.Error("failed to start worker harness", "error", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	if a.Cfg.RunServer {
		go func() {
			if err := a.Run(a.Cfg.HTTPAddr); err != nil {
				a.Log.Error("http server exited", "error", err)
				sig <- syscall.SIGTERM
			}
		}()
	}

	<-sig
	a.Log.Info("shutting down")
	a.Close()
}
