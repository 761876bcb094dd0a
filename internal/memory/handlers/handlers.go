// Package handlers adapts the C6-C9 memory components to worker.Handler so
// the queue/worker harness (C11) can dispatch job_run rows to them by
// job_type, independent of how each component is invoked synchronously from
// HTTP.
package handlers

import (
	"fmt"

	"github.com/lumenmind/memoryengine/internal/memory/attacher"
	"github.com/lumenmind/memoryengine/internal/memory/consolidator"
	"github.com/lumenmind/memoryengine/internal/memory/ingest"
	"github.com/lumenmind/memoryengine/internal/memory/jobqueue"
	"github.com/lumenmind/memoryengine/internal/memory/thoughtgen"
	"github.com/lumenmind/memoryengine/internal/memory/worker"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/repos"
)

// IngestHandler lets ingestion run through the memory.ingest queue as an
// alternative to the synchronous HTTP path §4.6 also allows ("the job
// carrying ingest, or a direct call").
type IngestHandler struct {
	pipeline   *ingest.Pipeline
	rawRecords repos.RawRecordRepo
}

func NewIngestHandler(pipeline *ingest.Pipeline, rawRecords repos.RawRecordRepo) *IngestHandler {
	return &IngestHandler{pipeline: pipeline, rawRecords: rawRecords}
}

func (*IngestHandler) Type() string { return JobTypeIngest }

func (h *IngestHandler) Run(ctx *worker.Context) error {
	rawRecordID, ok := ctx.PayloadUUID("raw_record_id")
	if !ok {
		err := fmt.Errorf("ingest job missing raw_record_id")
		ctx.Fail("payload", err)
		return err
	}
	rec, err := h.rawRecords.GetByID(dbctx.Bare(ctx.Ctx), rawRecordID)
	if err != nil {
		ctx.Fail("load", err)
		return err
	}
	result, err := h.pipeline.Ingest(ctx.Ctx, rec)
	if err != nil {
		ctx.Fail("ingest", err)
		return err
	}
	ctx.Succeed("done", result)
	return nil
}

// AttachChunkHandler runs the episode attacher for one chunk (§4.7).
type AttachChunkHandler struct {
	attacher *attacher.Attacher
}

func NewAttachChunkHandler(a *attacher.Attacher) *AttachChunkHandler {
	return &AttachChunkHandler{attacher: a}
}

func (*AttachChunkHandler) Type() string { return jobqueue.JobTypeAttachChunk }

func (h *AttachChunkHandler) Run(ctx *worker.Context) error {
	chunkID, ok := ctx.PayloadUUID("chunk_id")
	if !ok {
		err := fmt.Errorf("attachChunk job missing chunk_id")
		ctx.Fail("payload", err)
		return err
	}
	userID, ok := ctx.PayloadUUID("user_id")
	if !ok {
		err := fmt.Errorf("attachChunk job missing user_id")
		ctx.Fail("payload", err)
		return err
	}
	decision, err := h.attacher.Attach(ctx.Ctx, chunkID, userID)
	if err != nil {
		ctx.Fail("attach", err)
		return err
	}
	ctx.Succeed("done", map[string]any{"decision": decision})
	return nil
}

// ConsolidateHandler runs the batch consolidator for one user (§4.8).
type ConsolidateHandler struct {
	consolidator *consolidator.Consolidator
}

func NewConsolidateHandler(c *consolidator.Consolidator) *ConsolidateHandler {
	return &ConsolidateHandler{consolidator: c}
}

func (*ConsolidateHandler) Type() string { return jobqueue.JobTypeConsolidate }

func (h *ConsolidateHandler) Run(ctx *worker.Context) error {
	userID, ok := ctx.PayloadUUID("user_id")
	if !ok {
		err := fmt.Errorf("consolidate job missing user_id")
		ctx.Fail("payload", err)
		return err
	}
	result, err := h.consolidator.Consolidate(ctx.Ctx, userID)
	if err != nil {
		ctx.Fail("consolidate", err)
		return err
	}
	ctx.Succeed("done", result)
	return nil
}

// GenerateThoughtsHandler runs the nightly thought generator for one user (§4.9).
type GenerateThoughtsHandler struct {
	generator *thoughtgen.Generator
}

func NewGenerateThoughtsHandler(g *thoughtgen.Generator) *GenerateThoughtsHandler {
	return &GenerateThoughtsHandler{generator: g}
}

func (*GenerateThoughtsHandler) Type() string { return jobqueue.JobTypeGenerateThoughts }

func (h *GenerateThoughtsHandler) Run(ctx *worker.Context) error {
	userID, ok := ctx.PayloadUUID("user_id")
	if !ok {
		err := fmt.Errorf("generateThoughts job missing user_id")
		ctx.Fail("payload", err)
		return err
	}
	result, err := h.generator.Generate(ctx.Ctx, userID)
	if err != nil {
		ctx.Fail("generate", err)
		return err
	}
	ctx.Succeed("done", result)
	return nil
}

// JobTypeIngest names the memory.ingest queue's sole handler; it lives here
// rather than in jobqueue since nothing enqueues it synchronously today (the
// HTTP path calls ingest.Pipeline directly per §4.6's "or a direct call").
const JobTypeIngest = "ingest"
