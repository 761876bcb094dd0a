package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumenmind/memoryengine/internal/config"
	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/memory/ingest"
	"github.com/lumenmind/memoryengine/internal/memory/jobqueue"
	"github.com/lumenmind/memoryengine/internal/memory/retriever"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/llm"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
	"github.com/lumenmind/memoryengine/internal/platform/vectorstore"
	"github.com/lumenmind/memoryengine/internal/repos"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRawRecordRepo struct {
	created []*domain.RawRecord
}

func (f *fakeRawRecordRepo) Create(dbc dbctx.Context, rec *domain.RawRecord) (*domain.RawRecord, error) {
	rec.ID = uuid.New()
	f.created = append(f.created, rec)
	return rec, nil
}
func (f *fakeRawRecordRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.RawRecord, error) {
	for _, r := range f.created {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errNotFound
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

type fakeJobRunRepo struct{}

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
	return nil
}
func (f *fakeJobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error { return nil }
func (f *fakeJobRunRepo) HasRunnableForOwner(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string) (bool, error) {
	return false, nil
}

var _ repos.RawRecordRepo = (*fakeRawRecordRepo)(nil)
var _ repos.ChunkRepo = (*fakeChunkRepo)(nil)
var _ repos.EpisodeRepo = (*fakeEpisodeRepo)(nil)
var _ repos.ThoughtRepo = (*fakeThoughtRepo)(nil)
var _ repos.JobRunRepo = (*fakeJobRunRepo)(nil)

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
		RetrievalLimit:      5,
	}
}

func newTestHandler(t *testing.T) (*MemoriesHandler, *fakeRawRecordRepo) {
	t.Helper()
	log := mustLogger(t)
	tunables := testTunables()
	rawRecords := &fakeRawRecordRepo{}
	chunks := &fakeChunkRepo{}
	episodes := &fakeEpisodeRepo{}
	thoughts := &fakeThoughtRepo{}
	jobs := &fakeJobRunRepo{}

	enqueuer := jobqueue.New(jobs)
	pipeline := ingest.New(log, tunables, rawRecords, chunks, fakeImportance{score: 0.9}, fakeLLM{}, fakeStore{}, enqueuer)
	r := retriever.New(log, tunables, chunks, episodes, thoughts, fakeLLM{}, fakeStore{})

	return NewMemoriesHandler(log, rawRecords, pipeline, r, enqueuer), rawRecords
}

func newTestContext(method, path string, body string, userID uuid.UUID) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if userID != uuid.Nil {
		c.Set("user_id_uuid", userID)
	}
	return c, w
}

func TestIngest_HappyPath(t *testing.T) {
	h, _ := newTestHandler(t)
	userID := uuid.New()
	body := `{"session_id":"s1","content_type":"user_chat","content":"I am planning a trip to Japan next spring."}`
	c, w := newTestContext(http.MethodPost, "/v1/memories/ingest", body, userID)

	h.Ingest(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp ingestResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RawRecordID == "" {
		t.Fatal("expected a non-empty raw_record_id")
	}
}

func TestIngest_UnknownContentTypeIsRejected(t *testing.T) {
	h, _ := newTestHandler(t)
	userID := uuid.New()
	body := `{"session_id":"s1","content_type":"not_a_real_type","content":"hello"}`
	c, w := newTestContext(http.MethodPost, "/v1/memories/ingest", body, userID)

	h.Ingest(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown content_type, got %d: %s", w.Code, w.Body.String())
	}
}

func TestIngest_MissingRequiredFieldIsRejected(t *testing.T) {
	h, _ := newTestHandler(t)
	userID := uuid.New()
	body := `{"content_type":"user_chat"}`
	c, w := newTestContext(http.MethodPost, "/v1/memories/ingest", body, userID)

	h.Ingest(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing required field, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRetrieve_EmptyQueryIsRejected(t *testing.T) {
	h, _ := newTestHandler(t)
	userID := uuid.New()
	c, w := newTestContext(http.MethodGet, "/v1/memories/retrieve", "", userID)

	h.Retrieve(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty query, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRetrieve_NeverErrorsOnAQuery(t *testing.T) {
	h, _ := newTestHandler(t)
	userID := uuid.New()
	c, w := newTestContext(http.MethodGet, "/v1/memories/retrieve?query=trip+to+japan", "", userID)

	h.Retrieve(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestConsolidate_EnqueuesAndReturnsOK(t *testing.T) {
	h, _ := newTestHandler(t)
	userID := uuid.New()
	c, w := newTestContext(http.MethodPost, "/v1/memories/consolidate", "", userID)

	h.Consolidate(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGenerateThoughts_EnqueuesAndReturnsOK(t *testing.T) {
	h, _ := newTestHandler(t)
	userID := uuid.New()
	c, w := newTestContext(http.MethodPost, "/v1/memories/thoughts/generate", "", userID)

	h.GenerateThoughts(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
