package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/observability"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
	"github.com/lumenmind/memoryengine/internal/repos"
)

var tracer = observability.Tracer("memoryengine/worker")

const (
	maxAttempts     = 3
	backoffBase     = 5 * time.Second
	backoffCap      = 5 * time.Minute
	staleRunning    = 30 * time.Minute
	heartbeatPeriod = 30 * time.Second
	pollInterval    = 1 * time.Second
)

// Worker polls a single named queue and dispatches claimed jobs to the
// registry. One Worker per queue is started with its own concurrency
// (goroutine count) per §5's per-queue caps.
type Worker struct {
	queue      string
	concurrency int
	repo       repos.JobRunRepo
	registry   *Registry
	log        *logger.Logger
}

func NewWorker(queue string, concurrency int, repo repos.JobRunRepo, registry *Registry, baseLog *logger.Logger) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Worker{
		queue: queue, concurrency: concurrency, repo: repo, registry: registry,
		log: baseLog.With("component", "Worker", "queue", queue),
	}
}

// Start spawns w.concurrency goroutines, each running an independent claim
// loop. The DB-level SKIP LOCKED claim in ClaimNextRunnable prevents any two
// goroutines (in this process or another) from double-executing a job.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("starting worker", "concurrency", w.concurrency)
	for i := 0; i < w.concurrency; i++ {
		go w.runLoop(ctx, i+1)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			w.claimAndRun(ctx, workerID)
		}
	}
}

func (w *Worker) claimAndRun(ctx context.Context, workerID int) {
	job, err := w.repo.ClaimNextRunnable(dbctx.Bare(ctx), w.queue, maxAttempts, backoffBase, staleRunning)
	if err != nil {
		w.log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
		return
	}
	if job == nil {
		return
	}

	h, ok := w.registry.Get(job.JobType)
	jc := NewContext(ctx, job, w.repo)
	if !ok {
		w.log.Warn("no handler registered for job_type", "worker_id", workerID, "job_type", job.JobType, "job_id", job.ID)
		jc.Fail("dispatch", &missingHandlerError{JobType: job.JobType})
		return
	}

	stopHB := w.startHeartbeat(ctx, job.ID)
	defer stopHB()

	spanCtx, span := tracer.Start(ctx, "job."+job.JobType)
	span.SetAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("job.queue", w.queue),
		attribute.String("job.type", job.JobType),
	)
	jc = NewContext(spanCtx, job, w.repo)

	func() {
		defer span.End()
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("job handler panic", "worker_id", workerID, "job_id", job.ID, "job_type", job.JobType, "panic", r)
				span.SetStatus(codes.Error, "panic")
				jc.Fail("panic", &panicError{Val: r})
			}
		}()
		if runErr := h.Run(jc); runErr != nil {
			// Handlers normally call jc.Fail themselves with a precise stage;
			// this is a safety net for the ones that just return an error.
			span.SetStatus(codes.Error, runErr.Error())
			jc.Fail("run", runErr)
		}
	}()
}

func (w *Worker) startHeartbeat(ctx context.Context, jobID uuid.UUID) func() {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(heartbeatPeriod)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				_ = w.repo.Heartbeat(dbctx.Bare(ctx), jobID)
			}
		}
	}()
	return func() { close(done) }
}

type missingHandlerError struct{ JobType string }

func (e *missingHandlerError) Error() string { return "no handler registered for job_type=" + e.JobType }

type panicError struct{ Val any }

func (e *panicError) Error() string { return "panic: unexpected error during job execution" }

// QueueConcurrency returns the per-queue goroutine cap §5 assigns, keeping
// one source of truth for both the harness wiring and any shared deployment
// config that needs to describe the same caps.
func QueueConcurrency(queue string) int {
	switch queue {
	case domain.QueueIngest:
		return 5
	case domain.QueueAttachEpisode:
		return 5
	case domain.QueueConsolidate:
		return 1
	case domain.QueueGenerateThoughts:
		return 1
	case domain.QueueFileUpload:
		return 2
	default:
		return 1
	}
}
