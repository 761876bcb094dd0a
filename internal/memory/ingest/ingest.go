// Package ingest implements the C6 ingestion pipeline: validate, score,
// chunk, embed, and index a single RawRecord, then hand each resulting
// chunk off to the episode attacher via the job queue.
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lumenmind/memoryengine/internal/config"
	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/memory/chunker"
	"github.com/lumenmind/memoryengine/internal/memory/importance"
	"github.com/lumenmind/memoryengine/internal/memory/jobqueue"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/llm"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
	"github.com/lumenmind/memoryengine/internal/platform/vectorstore"
	"github.com/lumenmind/memoryengine/internal/repos"
)

// attachDelay is the minimum delay (§4.6 step 8, §5) before a chunk's
// attach job becomes runnable, giving the vector-store upsert time to settle.
const attachDelay = 5 * time.Second

type Pipeline struct {
	log        *logger.Logger
	tunables   config.Tunables
	rawRecords repos.RawRecordRepo
	chunks     repos.ChunkRepo
	importance importance.Evaluator
	llm        llm.Client
	store      vectorstore.Store
	enqueuer   *jobqueue.Enqueuer
}

func New(
	log *logger.Logger,
	tunables config.Tunables,
	rawRecords repos.RawRecordRepo,
	chunks repos.ChunkRepo,
	importanceEval importance.Evaluator,
	llmClient llm.Client,
	store vectorstore.Store,
	enqueuer *jobqueue.Enqueuer,
) *Pipeline {
	return &Pipeline{
		log:        log.With("service", "IngestPipeline"),
		tunables:   tunables,
		rawRecords: rawRecords,
		chunks:     chunks,
		importance: importanceEval,
		llm:        llmClient,
		store:      store,
		enqueuer:   enqueuer,
	}
}

// Result reports the outcome of an ingest call to the synchronous caller.
type Result struct {
	RawRecordID uuid.UUID
	Status      domain.RawRecordStatus
}

// Ingest runs §4.6's 8-step pipeline against an already-created RawRecord.
// It never returns an error for a recoverable condition: every branch ends
// by marking the RawRecord and returning the terminal status, so synchronous
// callers (the HTTP ingest handler) can report it without special-casing.
func (p *Pipeline) Ingest(ctx context.Context, rec *domain.RawRecord) (Result, error) {
	dbc := dbctx.Bare(ctx)

	// Step 1: validate non-empty content.
	if strings.TrimSpace(rec.Content) == "" {
		if err := p.rawRecords.MarkSkipped(dbc, rec.ID); err != nil {
			return Result{}, err
		}
		return Result{RawRecordID: rec.ID, Status: domain.RawRecordStatusSkipped}, nil
	}

	// Step 2: compute importance unless the record bypasses the check.
	score, err := p.importance.Score(ctx, rec)
	if err != nil {
		return Result{}, err
	}

	// Step 3: threshold gate, unless bypassed.
	if !rec.SkipImportanceCheck && score < p.tunables.ImportanceThreshold {
		if err := p.rawRecords.UpdateFields(dbc, rec.ID, map[string]interface{}{"importance_score": score}); err != nil {
			return Result{}, err
		}
		if err := p.rawRecords.MarkSkipped(dbc, rec.ID); err != nil {
			return Result{}, err
		}
		return Result{RawRecordID: rec.ID, Status: domain.RawRecordStatusSkipped}, nil
	}

	// Step 4: chunk content.
	pieces := chunker.Split(rec.Content, rec.SkipImportanceCheck, chunker.Params{
		Min: p.tunables.ChunkMin, Target: p.tunables.ChunkTarget, Max: p.tunables.ChunkMax,
	})
	if len(pieces) == 0 {
		if err := p.rawRecords.MarkSkipped(dbc, rec.ID); err != nil {
			return Result{}, err
		}
		return Result{RawRecordID: rec.ID, Status: domain.RawRecordStatusSkipped}, nil
	}

	// Step 5: create Chunk rows, status=pending, inheriting importance.
	meta := domain.ChunkMetadata{
		ContentType:        rec.ContentType,
		SourceCreatedAt:    rec.CreatedAt,
		PerspectiveOwnerID: rec.PerspectiveOwnerID,
		SubjectID:          rec.SubjectID,
		TopicKey:           rec.TopicKey,
	}
	chunkRows := make([]*domain.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		m := meta
		m.ForceImportant = piece.ForceImportant
		chunkRows = append(chunkRows, &domain.Chunk{
			RawRecordID:      rec.ID,
			UserID:           rec.UserID,
			SessionID:        rec.SessionID,
			Text:             piece.Text,
			Index:            i,
			TokenCount:       piece.TokenCount,
			ImportanceScore:  score,
			ProcessingStatus: domain.ChunkStatusPending,
		})
		chunkRows[i].SetMetadata(m)
	}
	created, err := p.chunks.CreateBatch(dbc, chunkRows)
	if err != nil {
		return Result{}, err
	}

	// Step 6: embed all chunk texts in one batch.
	texts := make([]string, len(created))
	for i, c := range created {
		texts[i] = c.Text
	}
	vectors, err := p.llm.Embed(ctx, texts)
	if err != nil || len(vectors) != len(created) {
		errMsg := "embedding count mismatch"
		if err != nil {
			errMsg = err.Error()
		}
		for _, c := range created {
			_ = p.chunks.UpdateFields(dbc, c.ID, map[string]interface{}{"processing_status": domain.ChunkStatusEmbeddingError})
		}
		_ = p.rawRecords.MarkError(dbc, rec.ID, truncateErr(errMsg))
		return Result{RawRecordID: rec.ID, Status: domain.RawRecordStatusError}, nil
	}

	// Step 7: upsert ChunkEmbedding shadows into the vector store.
	namespace := vectorstore.Namespace(rec.UserID.String(), vectorstore.ClassChunk)
	storeVectors := make([]vectorstore.Vector, len(created))
	for i, c := range created {
		c.SetVector(domain.Vector(vectors[i]))
		storeVectors[i] = vectorstore.Vector{
			ID:     c.ID.String(),
			Values: vectors[i],
			Metadata: map[string]any{
				"user_id":    c.UserID.String(),
				"importance": c.ImportanceScore,
			},
		}
	}

	finalChunkStatus := domain.ChunkStatusProcessed
	finalRecordStatus := domain.RawRecordStatusProcessed
	if err := p.store.Upsert(ctx, namespace, storeVectors); err != nil {
		p.log.Warn("vector store unreachable, chunks left pending_vector", "raw_record_id", rec.ID, "error", err)
		finalChunkStatus = domain.ChunkStatusPendingVector
		finalRecordStatus = domain.RawRecordStatusPending
	}

	for _, c := range created {
		if err := p.chunks.UpdateFields(dbc, c.ID, map[string]interface{}{
			"processing_status": finalChunkStatus,
			"vector":            c.VectorJSON,
		}); err != nil {
			return Result{}, err
		}
	}

	if finalRecordStatus == domain.RawRecordStatusProcessed {
		if err := p.rawRecords.MarkProcessed(dbc, rec.ID, score); err != nil {
			return Result{}, err
		}
	} else {
		if err := p.rawRecords.UpdateFields(dbc, rec.ID, map[string]interface{}{"importance_score": score}); err != nil {
			return Result{}, err
		}
	}

	// Step 8: enqueue attach jobs for every successfully indexed chunk.
	if finalChunkStatus == domain.ChunkStatusProcessed {
		for _, c := range created {
			if err := p.enqueuer.EnqueueChunkAttach(ctx, rec.UserID, c.ID, attachDelay); err != nil {
				p.log.Warn("failed to enqueue attach job", "chunk_id", c.ID, "error", err)
			}
		}
	}

	return Result{RawRecordID: rec.ID, Status: finalRecordStatus}, nil
}

func truncateErr(s string) string {
	const max = 1000
	if len(s) <= max {
		return s
	}
	return s[:max]
}
