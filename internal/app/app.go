// Package app is the composition root: it owns process lifecycle and wires
// every platform client, repository, memory-domain service, worker, and
// HTTP handler built elsewhere in the module into one running process.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumenmind/memoryengine/internal/observability"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

// App is the fully-wired process. A single binary can run the HTTP server,
// the worker/scheduler harness, both, or neither, gated by Cfg.RunServer /
// Cfg.RunWorker (§5.1: the queue harness and the HTTP surface are
// independently scalable).
type App struct {
	Log     *logger.Logger
	Cfg     Config
	Clients Clients
	Repos   Repos
	Services Services
	Workers *Workers
	Router  *gin.Engine

	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)

	otelShutdown := observability.Init(context.Background(), log, observability.Config{
		ServiceName: "memoryengine",
		Environment: os.Getenv("APP_ENV"),
	})

	clients, err := wireClients(log, cfg)
	if err != nil {
		return nil, fmt.Errorf("wire clients: %w", err)
	}

	repos := wireRepos(clients, log)
	services := wireServices(cfg, clients, repos, log)

	workers, err := wireWorkers(cfg, repos, services, log)
	if err != nil {
		clients.Close()
		return nil, fmt.Errorf("wire workers: %w", err)
	}

	handlers := wireHandlers(repos, services, log)
	router := wireRouter(handlers, log)

	return &App{
		Log: log, Cfg: cfg, Clients: clients, Repos: repos,
		Services: services, Workers: workers, Router: router,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the worker pools and scheduler, if this process is
// configured to play the worker role. It is safe to call even when
// Cfg.RunWorker is false: it is then a no-op.
func (a *App) Start() error {
	if !a.Cfg.RunWorker {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.Log.Info("starting worker harness")
	return a.Workers.Start(ctx)
}

// Run blocks serving HTTP on addr until the server stops. It is a no-op if
// this process is not configured to play the server role; the caller is
// expected to block on its own signal handling in that case.
func (a *App) Run(addr string) error {
	if !a.Cfg.RunServer {
		return nil
	}
	a.Log.Info("starting http server", "addr", addr)
	return a.Router.Run(addr)
}

// Close cancels the worker context (which in-flight job handlers also run
// under), stops the cron scheduler, pauses for ShutdownDrainTimeout (30s
// when unset or above 30s), then releases every platform client. It does
// not track in-flight jobs: the pause is fixed and does not end early.
func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Workers != nil {
		a.Workers.Stop()
	}
	time.Sleep(minDuration(a.Cfg.ShutdownDrainTimeout, 30*time.Second))
	a.Clients.Close()
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
	}
	a.Log.Sync()
}

func minDuration(d, max time.Duration) time.Duration {
	if d <= 0 || d > max {
		return max
	}
	return d
}
