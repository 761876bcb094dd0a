// Package handlers exposes the collaborator-facing API of the core (§6) as
// thin Gin wrappers: each handler validates the request shape, delegates to
// the corresponding memory-domain component, and translates the result into
// the shared response envelope.
package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/http/middleware"
	"github.com/lumenmind/memoryengine/internal/http/response"
	"github.com/lumenmind/memoryengine/internal/memory/ingest"
	"github.com/lumenmind/memoryengine/internal/memory/jobqueue"
	"github.com/lumenmind/memoryengine/internal/memory/retriever"
	"github.com/lumenmind/memoryengine/internal/platform/apierr"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
	"github.com/lumenmind/memoryengine/internal/repos"
)

type MemoriesHandler struct {
	log        *logger.Logger
	rawRecords repos.RawRecordRepo
	pipeline   *ingest.Pipeline
	retriever  *retriever.Retriever
	enqueuer   *jobqueue.Enqueuer
}

func NewMemoriesHandler(
	log *logger.Logger,
	rawRecords repos.RawRecordRepo,
	pipeline *ingest.Pipeline,
	r *retriever.Retriever,
	enqueuer *jobqueue.Enqueuer,
) *MemoriesHandler {
	return &MemoriesHandler{
		log: log.With("handler", "MemoriesHandler"), rawRecords: rawRecords,
		pipeline: pipeline, retriever: r, enqueuer: enqueuer,
	}
}

type ingestRequest struct {
	SessionID           string `json:"session_id" binding:"required"`
	ContentType         string `json:"content_type" binding:"required"`
	Content             string `json:"content" binding:"required"`
	PerspectiveOwnerID  string `json:"perspective_owner_id,omitempty"`
	SubjectID           string `json:"subject_id,omitempty"`
	TopicKey            string `json:"topic_key,omitempty"`
	SkipImportanceCheck bool   `json:"skip_importance_check,omitempty"`
}

type ingestResponse struct {
	RawRecordID string `json:"raw_record_id"`
	Status      string `json:"status"`
}

// Ingest implements `ingestRawRecord(record) → {rawRecordId}` (§6) over
// HTTP: POST /v1/memories/ingest.
func (h *MemoriesHandler) Ingest(c *gin.Context) {
	userID := middleware.UserID(c)

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, apierr.Invalid(err))
		return
	}
	contentType := domain.ContentType(req.ContentType)
	if !contentType.Valid() {
		response.RespondError(c, apierr.Invalid(unknownContentTypeError(req.ContentType)))
		return
	}

	perspectiveOwnerID := userID
	if strings.TrimSpace(req.PerspectiveOwnerID) != "" {
		parsed, err := uuid.Parse(req.PerspectiveOwnerID)
		if err != nil {
			response.RespondError(c, apierr.Invalid(err))
			return
		}
		perspectiveOwnerID = parsed
	}
	var subjectID *uuid.UUID
	if strings.TrimSpace(req.SubjectID) != "" {
		parsed, err := uuid.Parse(req.SubjectID)
		if err != nil {
			response.RespondError(c, apierr.Invalid(err))
			return
		}
		subjectID = &parsed
	}

	rec := &domain.RawRecord{
		UserID:              userID,
		SessionID:           req.SessionID,
		ContentType:         contentType,
		Content:             req.Content,
		PerspectiveOwnerID:  perspectiveOwnerID,
		SubjectID:           subjectID,
		TopicKey:            req.TopicKey,
		SkipImportanceCheck: req.SkipImportanceCheck,
		ProcessingStatus:    domain.RawRecordStatusPending,
	}

	dbc := dbctx.Bare(c.Request.Context())
	created, err := h.rawRecords.Create(dbc, rec)
	if err != nil {
		response.RespondError(c, apierr.Internal(err))
		return
	}

	// §7: on ingest failure, surface an error to the caller while the raw
	// content the caller submitted is already durably persisted above.
	result, err := h.pipeline.Ingest(c.Request.Context(), created)
	if err != nil {
		response.RespondError(c, apierr.Internal(err))
		return
	}
	response.RespondOK(c, ingestResponse{RawRecordID: result.RawRecordID.String(), Status: string(result.Status)})
}

// Retrieve implements `retrieveMemories(userId, query, options) → memory[]`
// (§4.10): GET /v1/memories/retrieve.
func (h *MemoriesHandler) Retrieve(c *gin.Context) {
	userID := middleware.UserID(c)
	query := c.Query("query")
	if strings.TrimSpace(query) == "" {
		response.RespondError(c, apierr.Invalid(emptyQueryError()))
		return
	}

	opts := retriever.Options{}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := c.Query("min_importance"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			opts.MinImportance = f
		}
	}
	if v := c.Query("certainty"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			opts.Certainty = f
		}
	}
	opts.IncludeEpisodes = c.Query("include_episodes") != "false"
	opts.IncludeChunks = c.Query("include_chunks") != "false"

	// §7 user-visible behavior: on retrieve failure, return an empty list
	// rather than a 5xx; the retriever itself already swallows embedding
	// failures, so this handler never has a separate error branch to take.
	items := h.retriever.Retrieve(c.Request.Context(), userID, query, opts)
	response.RespondOK(c, gin.H{"memories": items})
}

// Consolidate implements `triggerConsolidation(userId)` (§6): POST
// /v1/memories/consolidate. It enqueues rather than runs inline, matching
// the idempotent, coalesced-per-user semantics the spec requires.
func (h *MemoriesHandler) Consolidate(c *gin.Context) {
	userID := middleware.UserID(c)
	if err := h.enqueuer.EnqueueConsolidate(c.Request.Context(), userID); err != nil {
		response.RespondError(c, apierr.Internal(err))
		return
	}
	response.RespondOK(c, gin.H{"status": "enqueued"})
}

// GenerateThoughts implements `generateThoughtsForUser(userId)` (§6): POST
// /v1/memories/thoughts/generate.
func (h *MemoriesHandler) GenerateThoughts(c *gin.Context) {
	userID := middleware.UserID(c)
	if err := h.enqueuer.EnqueueGenerateThoughts(c.Request.Context(), userID); err != nil {
		response.RespondError(c, apierr.Internal(err))
		return
	}
	response.RespondOK(c, gin.H{"status": "enqueued"})
}

type unknownContentTypeErr struct{ value string }

func (e *unknownContentTypeErr) Error() string { return "unknown content_type: " + e.value }

func unknownContentTypeError(value string) error { return &unknownContentTypeErr{value: value} }

type emptyQueryErr struct{}

func (e *emptyQueryErr) Error() string { return "query must not be empty" }

func emptyQueryError() error { return &emptyQueryErr{} }
