package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/lumenmind/memoryengine/internal/config"
	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/memory/attacher"
	"github.com/lumenmind/memoryengine/internal/memory/consolidator"
	"github.com/lumenmind/memoryengine/internal/memory/ingest"
	"github.com/lumenmind/memoryengine/internal/memory/jobqueue"
	"github.com/lumenmind/memoryengine/internal/memory/thoughtgen"
	"github.com/lumenmind/memoryengine/internal/memory/worker"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/llm"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
	"github.com/lumenmind/memoryengine/internal/platform/vectorstore"
)

// fakeJobRunRepo is just enough of repos.JobRunRepo for worker.Context's
// Fail/Succeed to record the terminal state a handler left a job in.
type fakeJobRunRepo struct {
	updates map[string]interface{}
}

func (f *fakeJobRunRepo) Create(dbc dbctx.Context, jobs []*domain.JobRun) ([]*domain.JobRun, error) {
	return jobs, nil
}
func (f *fakeJobRunRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.JobRun, error) {
	return nil, nil
}
func (f *fakeJobRunRepo) ClaimNextRunnable(dbc dbctx.Context, queue string, maxAttempts int, retryBase, staleRunning time.Duration) (*domain.JobRun, error) {
	return nil, nil
}
func (f *fakeJobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	f.updates = updates
	return nil
}
func (f *fakeJobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error { return nil }
func (f *fakeJobRunRepo) HasRunnableForOwner(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string) (bool, error) {
	return false, nil
}

func newJobContext(job *domain.JobRun, jobs *fakeJobRunRepo) *worker.Context {
	return worker.NewContext(context.Background(), job, jobs)
}

func jobWithPayload(payload map[string]any) *domain.JobRun {
	b, _ := json.Marshal(payload)
	return &domain.JobRun{ID: uuid.New(), Payload: datatypes.JSON(b)}
}

type fakeRawRecordRepo struct {
	records map[uuid.UUID]*domain.RawRecord
}

func (f *fakeRawRecordRepo) Create(dbc dbctx.Context, rec *domain.RawRecord) (*domain.RawRecord, error) {
	return rec, nil
}
func (f *fakeRawRecordRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.RawRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, errNotFound
	}
	return rec, nil
}
func (f *fakeRawRecordRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	return nil
}
func (f *fakeRawRecordRepo) MarkProcessed(dbc dbctx.Context, id uuid.UUID, importance float64) error {
	return nil
}
func (f *fakeRawRecordRepo) MarkSkipped(dbc dbctx.Context, id uuid.UUID) error { return nil }
func (f *fakeRawRecordRepo) MarkError(dbc dbctx.Context, id uuid.UUID, errMsg string) error {
	return nil
}
func (f *fakeRawRecordRepo) ListActiveUserIDs(dbc dbctx.Context, sinceHours int) ([]uuid.UUID, error) {
	return nil, nil
}

type fakeChunkRepo struct{}

func (f *fakeChunkRepo) CreateBatch(dbc dbctx.Context, chunks []*domain.Chunk) ([]*domain.Chunk, error) {
	return chunks, nil
}
func (f *fakeChunkRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Chunk, error) {
	return nil, errNotFound
}
func (f *fakeChunkRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Chunk, error) {
	return nil, nil
}
func (f *fakeChunkRepo) GetByRawRecordID(dbc dbctx.Context, rawRecordID uuid.UUID) ([]*domain.Chunk, error) {
	return nil, nil
}
func (f *fakeChunkRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	return nil
}
func (f *fakeChunkRepo) ListUnattached(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*domain.Chunk, error) {
	return nil, nil
}
func (f *fakeChunkRepo) ListPendingVector(dbc dbctx.Context, limit int) ([]*domain.Chunk, error) {
	return nil, nil
}
func (f *fakeChunkRepo) ListAllForConsolidation(dbc dbctx.Context, userID uuid.UUID) ([]*domain.Chunk, error) {
	return nil, nil
}

type fakeEpisodeRepo struct{}

func (f *fakeEpisodeRepo) Create(dbc dbctx.Context, ep *domain.Episode) (*domain.Episode, error) {
	return ep, nil
}
func (f *fakeEpisodeRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Episode, error) {
	return nil, errNotFound
}
func (f *fakeEpisodeRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Episode, error) {
	return nil, nil
}
func (f *fakeEpisodeRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*domain.Episode, error) {
	return nil, nil
}
func (f *fakeEpisodeRepo) UpdateCentroid(dbc dbctx.Context, id uuid.UUID, centroid domain.Vector) error {
	return nil
}
func (f *fakeEpisodeRepo) Delete(dbc dbctx.Context, id uuid.UUID) error { return nil }
func (f *fakeEpisodeRepo) LockForUpdate(dbc dbctx.Context, id uuid.UUID) (*domain.Episode, error) {
	return nil, errNotFound
}
func (f *fakeEpisodeRepo) WithTx(dbc dbctx.Context, fn func(dbctx.Context) error) error {
	return fn(dbc)
}
func (f *fakeEpisodeRepo) AttachChunk(dbc dbctx.Context, chunkID, episodeID uuid.UUID) error {
	return nil
}
func (f *fakeEpisodeRepo) DetachAllChunks(dbc dbctx.Context, episodeID uuid.UUID) error { return nil }
func (f *fakeEpisodeRepo) CountMembers(dbc dbctx.Context, episodeID uuid.UUID) (int64, error) {
	return 0, nil
}
func (f *fakeEpisodeRepo) MemberIDs(dbc dbctx.Context, episodeID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}
func (f *fakeEpisodeRepo) AttachedChunkIDs(dbc dbctx.Context, candidateIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	return map[uuid.UUID]bool{}, nil
}

type fakeThoughtRepo struct{}

func (f *fakeThoughtRepo) Create(dbc dbctx.Context, th *domain.Thought) (*domain.Thought, error) {
	return th, nil
}
func (f *fakeThoughtRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Thought, error) {
	return nil, nil
}
func (f *fakeThoughtRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*domain.Thought, error) {
	return nil, nil
}
func (f *fakeThoughtRepo) LinkEpisode(dbc dbctx.Context, thoughtID, episodeID uuid.UUID, weight float64) error {
	return nil
}

type fakeLLM struct{}

func (fakeLLM) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range out {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}
func (fakeLLM) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}
func (fakeLLM) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", nil
}
func (fakeLLM) GenerateTextWithImages(ctx context.Context, system, user string, images []llm.ImageInput) (string, error) {
	return "", nil
}

type fakeStore struct{}

func (fakeStore) Upsert(ctx context.Context, namespace string, vectors []vectorstore.Vector) error {
	return nil
}
func (fakeStore) QueryMatches(ctx context.Context, namespace string, query []float32, topK int, filter map[string]any) ([]vectorstore.Match, error) {
	return nil, nil
}
func (fakeStore) QueryIDs(ctx context.Context, namespace string, query []float32, topK int, filter map[string]any) ([]string, error) {
	return nil, nil
}
func (fakeStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error { return nil }

type fakeCache struct{}

func (fakeCache) GetImportance(ctx context.Context, key string) (float64, bool, error) {
	return 0, false, nil
}
func (fakeCache) SetImportance(ctx context.Context, key string, score float64, ttl time.Duration) error {
	return nil
}
func (fakeCache) IncrOrphanCount(ctx context.Context, userID string) (int64, error) { return 0, nil }
func (fakeCache) ResetOrphanCount(ctx context.Context, userID string) error          { return nil }
func (fakeCache) Close() error                                                       { return nil }

type fakeImportance struct{ score float64 }

func (f fakeImportance) Score(ctx context.Context, rec *domain.RawRecord) (float64, error) {
	return f.score, nil
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "not found" }

func mustLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func testTunables() config.Tunables {
	return config.Tunables{
		ChunkMin: 10, ChunkTarget: 100, ChunkMax: 500,
		ImportanceThreshold: 0.3,
		EmbeddingDim:        4,
	}
}

func TestHandlerTypes(t *testing.T) {
	enqueuer := jobqueue.New(&fakeJobRunRepo{})
	ingestH := NewIngestHandler(ingest.New(mustLogger(t), testTunables(), &fakeRawRecordRepo{}, &fakeChunkRepo{}, fakeImportance{}, fakeLLM{}, fakeStore{}, enqueuer), &fakeRawRecordRepo{})
	attachH := NewAttachChunkHandler(attacher.New(mustLogger(t), testTunables(), &fakeChunkRepo{}, &fakeEpisodeRepo{}, fakeLLM{}, fakeStore{}, fakeCache{}, enqueuer))
	consolidateH := NewConsolidateHandler(consolidator.New(mustLogger(t), testTunables(), &fakeChunkRepo{}, &fakeEpisodeRepo{}, fakeLLM{}, fakeStore{}, fakeCache{}))
	thoughtH := NewGenerateThoughtsHandler(thoughtgen.New(mustLogger(t), testTunables(), &fakeEpisodeRepo{}, &fakeThoughtRepo{}, fakeLLM{}, fakeStore{}))

	if ingestH.Type() != JobTypeIngest {
		t.Fatalf("expected ingest job type %q, got %q", JobTypeIngest, ingestH.Type())
	}
	if attachH.Type() != jobqueue.JobTypeAttachChunk {
		t.Fatalf("expected attachChunk job type, got %q", attachH.Type())
	}
	if consolidateH.Type() != jobqueue.JobTypeConsolidate {
		t.Fatalf("expected consolidate job type, got %q", consolidateH.Type())
	}
	if thoughtH.Type() != jobqueue.JobTypeGenerateThoughts {
		t.Fatalf("expected generateThoughts job type, got %q", thoughtH.Type())
	}
}

func TestIngestHandler_MissingRawRecordIDFails(t *testing.T) {
	enqueuer := jobqueue.New(&fakeJobRunRepo{})
	h := NewIngestHandler(ingest.New(mustLogger(t), testTunables(), &fakeRawRecordRepo{}, &fakeChunkRepo{}, fakeImportance{}, fakeLLM{}, fakeStore{}, enqueuer), &fakeRawRecordRepo{})

	jobs := &fakeJobRunRepo{}
	ctx := newJobContext(jobWithPayload(map[string]any{}), jobs)

	if err := h.Run(ctx); err == nil {
		t.Fatal("expected an error for a job missing raw_record_id")
	}
	if jobs.updates["status"] != domain.JobStatusFailed {
		t.Fatalf("expected job marked failed, got %+v", jobs.updates)
	}
}

func TestIngestHandler_SkippedContentSucceeds(t *testing.T) {
	userID := uuid.New()
	rec := &domain.RawRecord{ID: uuid.New(), UserID: userID, Content: "   ", ContentType: domain.ContentTypeUserChat}
	rawRecords := &fakeRawRecordRepo{records: map[uuid.UUID]*domain.RawRecord{rec.ID: rec}}
	enqueuer := jobqueue.New(&fakeJobRunRepo{})
	pipeline := ingest.New(mustLogger(t), testTunables(), rawRecords, &fakeChunkRepo{}, fakeImportance{score: 0.9}, fakeLLM{}, fakeStore{}, enqueuer)
	h := NewIngestHandler(pipeline, rawRecords)

	jobs := &fakeJobRunRepo{}
	ctx := newJobContext(jobWithPayload(map[string]any{"raw_record_id": rec.ID.String()}), jobs)

	if err := h.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobs.updates["status"] != domain.JobStatusSucceeded {
		t.Fatalf("expected job marked succeeded, got %+v", jobs.updates)
	}
}

func TestAttachChunkHandler_MissingPayloadFieldsFail(t *testing.T) {
	enqueuer := jobqueue.New(&fakeJobRunRepo{})
	h := NewAttachChunkHandler(attacher.New(mustLogger(t), testTunables(), &fakeChunkRepo{}, &fakeEpisodeRepo{}, fakeLLM{}, fakeStore{}, fakeCache{}, enqueuer))

	jobs := &fakeJobRunRepo{}
	ctx := newJobContext(jobWithPayload(map[string]any{"chunk_id": uuid.New().String()}), jobs)

	if err := h.Run(ctx); err == nil {
		t.Fatal("expected an error for a job missing user_id")
	}
	if jobs.updates["status"] != domain.JobStatusFailed {
		t.Fatalf("expected job marked failed, got %+v", jobs.updates)
	}
}

func TestConsolidateHandler_MissingUserIDFails(t *testing.T) {
	h := NewConsolidateHandler(consolidator.New(mustLogger(t), testTunables(), &fakeChunkRepo{}, &fakeEpisodeRepo{}, fakeLLM{}, fakeStore{}, fakeCache{}))

	jobs := &fakeJobRunRepo{}
	ctx := newJobContext(jobWithPayload(map[string]any{}), jobs)

	if err := h.Run(ctx); err == nil {
		t.Fatal("expected an error for a job missing user_id")
	}
}

func TestConsolidateHandler_NoCandidatesSucceedsWithZeroEpisodes(t *testing.T) {
	h := NewConsolidateHandler(consolidator.New(mustLogger(t), testTunables(), &fakeChunkRepo{}, &fakeEpisodeRepo{}, fakeLLM{}, fakeStore{}, fakeCache{}))

	jobs := &fakeJobRunRepo{}
	ctx := newJobContext(jobWithPayload(map[string]any{"user_id": uuid.New().String()}), jobs)

	if err := h.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobs.updates["status"] != domain.JobStatusSucceeded {
		t.Fatalf("expected job marked succeeded, got %+v", jobs.updates)
	}
}

func TestGenerateThoughtsHandler_MissingUserIDFails(t *testing.T) {
	h := NewGenerateThoughtsHandler(thoughtgen.New(mustLogger(t), testTunables(), &fakeEpisodeRepo{}, &fakeThoughtRepo{}, fakeLLM{}, fakeStore{}))

	jobs := &fakeJobRunRepo{}
	ctx := newJobContext(jobWithPayload(map[string]any{}), jobs)

	if err := h.Run(ctx); err == nil {
		t.Fatal("expected an error for a job missing user_id")
	}
}

func TestGenerateThoughtsHandler_NoEpisodesSucceedsWithZeroThoughts(t *testing.T) {
	h := NewGenerateThoughtsHandler(thoughtgen.New(mustLogger(t), testTunables(), &fakeEpisodeRepo{}, &fakeThoughtRepo{}, fakeLLM{}, fakeStore{}))

	jobs := &fakeJobRunRepo{}
	ctx := newJobContext(jobWithPayload(map[string]any{"user_id": uuid.New().String()}), jobs)

	if err := h.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobs.updates["status"] != domain.JobStatusSucceeded {
		t.Fatalf("expected job marked succeeded, got %+v", jobs.updates)
	}
}
