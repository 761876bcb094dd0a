package app

import (
	"context"
	"fmt"

	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/memory/handlers"
	"github.com/lumenmind/memoryengine/internal/memory/worker"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

// Workers collects the queue harness (§5.1/C11): a registry mapping
// job_type to handler, one Worker goroutine pool per queue, and the
// robfig/cron-based scheduler for the sweeps that don't originate from an
// API call.
type Workers struct {
	registry  *worker.Registry
	pool      []*worker.Worker
	scheduler *worker.Scheduler
	log       *logger.Logger
}

func wireWorkers(cfg Config, r Repos, s Services, log *logger.Logger) (*Workers, error) {
	registry := worker.NewRegistry()

	registrations := []worker.Handler{
		handlers.NewIngestHandler(s.Pipeline, r.RawRecords),
		handlers.NewAttachChunkHandler(s.Attacher),
		handlers.NewConsolidateHandler(s.Consolidator),
		handlers.NewGenerateThoughtsHandler(s.ThoughtGen),
	}
	for _, h := range registrations {
		if err := registry.Register(h); err != nil {
			return nil, fmt.Errorf("register handler: %w", err)
		}
	}

	queues := []string{
		domain.QueueIngest,
		domain.QueueAttachEpisode,
		domain.QueueConsolidate,
		domain.QueueGenerateThoughts,
	}
	pool := make([]*worker.Worker, 0, len(queues))
	for _, q := range queues {
		pool = append(pool, worker.NewWorker(q, worker.QueueConcurrency(q), r.JobRuns, registry, log))
	}

	scheduler := worker.NewScheduler(log, cfg.Tunables.ThoughtCron, r.RawRecords, r.Chunks, s.Enqueuer)

	return &Workers{registry: registry, pool: pool, scheduler: scheduler, log: log.With("component", "Workers")}, nil
}

// Start launches every queue's goroutine pool and the cron scheduler under
// ctx. Stopping ctx drains the worker loops; Stop additionally halts cron.
func (w *Workers) Start(ctx context.Context) error {
	for _, p := range w.pool {
		p.Start(ctx)
	}
	if err := w.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

func (w *Workers) Stop() {
	if w == nil || w.scheduler == nil {
		return
	}
	w.scheduler.Stop()
}
