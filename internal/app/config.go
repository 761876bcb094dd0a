package app

import (
	"time"

	"github.com/lumenmind/memoryengine/internal/config"
	"github.com/lumenmind/memoryengine/internal/platform/envutil"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

// Config holds the runtime settings this composition root needs beyond the
// domain Tunables: where to listen, how long to wait for in-flight jobs on
// shutdown, and which roles this process plays.
type Config struct {
	Tunables config.Tunables

	HTTPAddr string

	RunServer bool
	RunWorker bool

	ShutdownDrainTimeout time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	tunables := config.LoadTunables(log)
	return Config{
		Tunables:             tunables,
		HTTPAddr:             envutil.GetEnv("HTTP_ADDR", ":8080", log),
		RunServer:            envutil.GetEnvAsBool("RUN_SERVER", true, log),
		RunWorker:            envutil.GetEnvAsBool("RUN_WORKER", true, log),
		ShutdownDrainTimeout: envutil.GetEnvAsDuration("SHUTDOWN_DRAIN_TIMEOUT", 30*time.Second, log),
	}
}
