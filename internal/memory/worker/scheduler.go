package worker

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron"

	"github.com/lumenmind/memoryengine/internal/memory/jobqueue"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
	"github.com/lumenmind/memoryengine/internal/repos"
)

// activeUserLookbackHours bounds who counts as "active" for the nightly
// thought-generation sweep; a user with no activity in the last week isn't
// worth waking a cron tick for.
const activeUserLookbackHours = 24 * 7

// pendingVectorSweepInterval matches §5's backpressure policy: chunks that
// fell back to pending_vector because the vector store was unreachable get
// retried every 5 minutes rather than waiting for another ingest.
const pendingVectorSweepInterval = 5 * time.Minute
const pendingVectorSweepBatch = 200

// Scheduler owns the in-process robfig/cron instance (§5.1): the nightly
// thought-generation sweep and the 5-minute pending-vector sweeper both run
// through it. It is the only scheduler; there is no Temporal path.
type Scheduler struct {
	cron       *cron.Cron
	log        *logger.Logger
	rawRecords repos.RawRecordRepo
	chunks     repos.ChunkRepo
	enqueuer   *jobqueue.Enqueuer
	thoughtCron string
}

func NewScheduler(
	log *logger.Logger,
	thoughtCronExpr string,
	rawRecords repos.RawRecordRepo,
	chunks repos.ChunkRepo,
	enqueuer *jobqueue.Enqueuer,
) *Scheduler {
	return &Scheduler{
		cron: cron.New(), log: log.With("component", "Scheduler"),
		rawRecords: rawRecords, chunks: chunks, enqueuer: enqueuer, thoughtCron: thoughtCronExpr,
	}
}

// Start registers both cron entries and starts the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	// robfig/cron v1 expects a leading seconds field; a standard 5-field
	// expression such as the "0 3 * * *" default gets "0" seconds prepended
	// so it fires once a day at 03:00 rather than at minute 3 of every hour.
	thoughtSpec := s.thoughtCron
	if len(strings.Fields(thoughtSpec)) == 5 {
		thoughtSpec = "0 " + thoughtSpec
	}
	if err := s.cron.AddFunc(thoughtSpec, func() { s.sweepThoughtGeneration(ctx) }); err != nil {
		return err
	}
	pendingVectorSpec := "@every " + pendingVectorSweepInterval.String()
	if err := s.cron.AddFunc(pendingVectorSpec, func() { s.sweepPendingVector(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) sweepThoughtGeneration(ctx context.Context) {
	userIDs, err := s.rawRecords.ListActiveUserIDs(dbctx.Bare(ctx), activeUserLookbackHours)
	if err != nil {
		s.log.Warn("failed to list active users for thought-generation sweep", "error", err)
		return
	}
	for _, userID := range userIDs {
		if err := s.enqueuer.EnqueueGenerateThoughts(ctx, userID); err != nil {
			s.log.Warn("failed to enqueue generateThoughts", "user_id", userID, "error", err)
		}
	}
	s.log.Info("thought-generation sweep enqueued", "user_count", len(userIDs))
}

func (s *Scheduler) sweepPendingVector(ctx context.Context) {
	dbc := dbctx.Bare(ctx)
	chunks, err := s.chunks.ListPendingVector(dbc, pendingVectorSweepBatch)
	if err != nil {
		s.log.Warn("pending-vector sweep failed to list chunks", "error", err)
		return
	}
	for _, c := range chunks {
		if err := s.enqueuer.EnqueueChunkAttach(ctx, c.UserID, c.ID, 0); err != nil {
			s.log.Warn("pending-vector sweep failed to re-enqueue chunk", "chunk_id", c.ID, "error", err)
		}
	}
	if len(chunks) > 0 {
		s.log.Info("pending-vector sweep re-enqueued chunks", "count", len(chunks))
	}
}
