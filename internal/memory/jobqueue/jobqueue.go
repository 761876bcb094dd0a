// Package jobqueue provides the thin enqueue helpers every C6-C9 component
// uses to create job_run rows, keeping payload marshaling and the
// per-(queue, owner) exclusivity check in one place.
package jobqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/repos"
)

type Enqueuer struct {
	jobs repos.JobRunRepo
}

func New(jobs repos.JobRunRepo) *Enqueuer {
	return &Enqueuer{jobs: jobs}
}

func marshalPayload(payload map[string]any) datatypes.JSON {
	if payload == nil {
		return datatypes.JSON([]byte("{}"))
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(raw)
}

// EnqueueChunkAttach schedules an attachChunk job no sooner than delay
// (§4.6 step 8 requires ≥5s so the vector-store upsert has settled).
func (e *Enqueuer) EnqueueChunkAttach(ctx context.Context, userID, chunkID uuid.UUID, delay time.Duration) error {
	runAfter := time.Now().Add(delay)
	job := &domain.JobRun{
		Queue:       domain.QueueAttachEpisode,
		JobType:     JobTypeAttachChunk,
		OwnerUserID: userID,
		EntityType:  "chunk",
		EntityID:    &chunkID,
		Status:      domain.JobStatusQueued,
		Stage:       "pending",
		Payload:     marshalPayload(map[string]any{"chunk_id": chunkID.String(), "user_id": userID.String()}),
		RunAfter:    &runAfter,
	}
	_, err := e.jobs.Create(dbctx.Bare(ctx), []*domain.JobRun{job})
	return err
}

// EnqueueConsolidate is idempotent per §4.8: it no-ops if the user already
// has a queued or running consolidate job.
func (e *Enqueuer) EnqueueConsolidate(ctx context.Context, userID uuid.UUID) error {
	dbc := dbctx.Bare(ctx)
	has, err := e.jobs.HasRunnableForOwner(dbc, userID, JobTypeConsolidate)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	job := &domain.JobRun{
		Queue:       domain.QueueConsolidate,
		JobType:     JobTypeConsolidate,
		OwnerUserID: userID,
		EntityType:  "user",
		Status:      domain.JobStatusQueued,
		Stage:       "pending",
		Payload:     marshalPayload(map[string]any{"user_id": userID.String()}),
	}
	_, err = e.jobs.Create(dbc, []*domain.JobRun{job})
	return err
}

// EnqueueGenerateThoughts is idempotent per-user, same pattern as consolidate.
func (e *Enqueuer) EnqueueGenerateThoughts(ctx context.Context, userID uuid.UUID) error {
	dbc := dbctx.Bare(ctx)
	has, err := e.jobs.HasRunnableForOwner(dbc, userID, JobTypeGenerateThoughts)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	job := &domain.JobRun{
		Queue:       domain.QueueGenerateThoughts,
		JobType:     JobTypeGenerateThoughts,
		OwnerUserID: userID,
		EntityType:  "user",
		Status:      domain.JobStatusQueued,
		Stage:       "pending",
		Payload:     marshalPayload(map[string]any{"user_id": userID.String()}),
	}
	_, err = e.jobs.Create(dbc, []*domain.JobRun{job})
	return err
}

// Job type names, distinguishing the handler within a queue's registry.
const (
	JobTypeAttachChunk      = "attachChunk"
	JobTypeConsolidate      = "consolidate"
	JobTypeGenerateThoughts = "generateThoughts"
)
