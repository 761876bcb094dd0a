package retriever

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/lumenmind/memoryengine/internal/config"
	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/llm"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
	"github.com/lumenmind/memoryengine/internal/platform/vectorstore"
)

type fakeLLM struct{}

func (fakeLLM) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return [][]float32{{1, 0, 0, 0}}, nil
}
func (fakeLLM) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	return nil, nil
}
func (fakeLLM) GenerateText(ctx context.Context, system, user string) (string, error) { return "", nil }
func (fakeLLM) GenerateTextWithImages(ctx context.Context, system, user string, images []llm.ImageInput) (string, error) {
	return "", nil
}

type fakeStore struct {
	episodeMatches []vectorstore.Match
	chunkMatches   []vectorstore.Match
	thoughtMatches []vectorstore.Match
}

func (f *fakeStore) Upsert(ctx context.Context, namespace string, vectors []vectorstore.Vector) error {
	return nil
}
func (f *fakeStore) QueryMatches(ctx context.Context, namespace string, query []float32, topK int, filter map[string]any) ([]vectorstore.Match, error) {
	switch {
	case containsSuffix(namespace, string(vectorstore.ClassEpisode)):
		return cap0(f.episodeMatches, topK), nil
	case containsSuffix(namespace, string(vectorstore.ClassChunk)):
		return cap0(f.chunkMatches, topK), nil
	case containsSuffix(namespace, string(vectorstore.ClassThought)):
		return cap0(f.thoughtMatches, topK), nil
	}
	return nil, nil
}
func (f *fakeStore) QueryIDs(ctx context.Context, namespace string, query []float32, topK int, filter map[string]any) ([]string, error) {
	return nil, nil
}
func (f *fakeStore) DeleteIDs(ctx context.Context, namespace string, ids []string) error { return nil }

func containsSuffix(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	return s[len(s)-len(suffix):] == suffix
}

func cap0(matches []vectorstore.Match, topK int) []vectorstore.Match {
	if topK > 0 && len(matches) > topK {
		return matches[:topK]
	}
	return matches
}

type fakeEpisodeRepo struct {
	episodes map[uuid.UUID]*domain.Episode
	members  map[uuid.UUID][]uuid.UUID
}

func (f *fakeEpisodeRepo) Create(dbc dbctx.Context, ep *domain.Episode) (*domain.Episode, error) {
	return ep, nil
}
func (f *fakeEpisodeRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Episode, error) {
	ep, ok := f.episodes[id]
	if !ok {
		return nil, errNotFound
	}
	return ep, nil
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
	return f.GetByID(dbc, id)
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
	return f.members[episodeID], nil
}
func (f *fakeEpisodeRepo) AttachedChunkIDs(dbc dbctx.Context, candidateIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	return map[uuid.UUID]bool{}, nil
}

type fakeChunkRepo struct {
	chunks map[uuid.UUID]*domain.Chunk
}

func (f *fakeChunkRepo) CreateBatch(dbc dbctx.Context, chunks []*domain.Chunk) ([]*domain.Chunk, error) {
	return nil, nil
}
func (f *fakeChunkRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Chunk, error) {
	c, ok := f.chunks[id]
	if !ok {
		return nil, errNotFound
	}
	return c, nil
}
func (f *fakeChunkRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Chunk, error) {
	out := make([]*domain.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := f.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
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

type fakeThoughtRepo struct {
	thoughts map[uuid.UUID]*domain.Thought
}

func (f *fakeThoughtRepo) Create(dbc dbctx.Context, th *domain.Thought) (*domain.Thought, error) {
	return th, nil
}
func (f *fakeThoughtRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Thought, error) {
	out := make([]*domain.Thought, 0, len(ids))
	for _, id := range ids {
		if th, ok := f.thoughts[id]; ok {
			out = append(out, th)
		}
	}
	return out, nil
}
func (f *fakeThoughtRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*domain.Thought, error) {
	return nil, nil
}
func (f *fakeThoughtRepo) LinkEpisode(dbc dbctx.Context, thoughtID, episodeID uuid.UUID, weight float64) error {
	return nil
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (*notFoundErr) Error() string { return "not found" }

func testTunables() config.Tunables {
	return config.Tunables{
		RetrievalFloor:     0.45,
		RetrievalCertainty: 0.65,
		RetrievalLimit:     5,
		EmbeddingDim:       4,
	}
}

func mustLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func TestRetrieve_EpisodeHitPullsLinkedChunks(t *testing.T) {
	userID := uuid.New()
	epID := uuid.New()
	chunkID := uuid.New()

	episodes := &fakeEpisodeRepo{
		episodes: map[uuid.UUID]*domain.Episode{epID: {ID: epID, UserID: userID, Title: "Trip planning", Narrative: "Discussed a trip to Japan."}},
		members:  map[uuid.UUID][]uuid.UUID{epID: {chunkID}},
	}
	chunks := &fakeChunkRepo{chunks: map[uuid.UUID]*domain.Chunk{chunkID: {ID: chunkID, UserID: userID, Text: "Flights booked for Tokyo."}}}
	thoughts := &fakeThoughtRepo{thoughts: map[uuid.UUID]*domain.Thought{}}
	store := &fakeStore{episodeMatches: []vectorstore.Match{{ID: epID.String(), Score: 0.9}}}

	r := New(mustLogger(t), testTunables(), chunks, episodes, thoughts, fakeLLM{}, store)
	items := r.Retrieve(context.Background(), userID, "tell me about my trip", Options{IncludeEpisodes: true, IncludeChunks: true})

	if len(items) != 2 {
		t.Fatalf("expected episode + linked chunk, got %d items: %+v", len(items), items)
	}
	if items[0].Type != ItemTypeEpisode || items[0].ID != epID.String() {
		t.Fatalf("expected first item to be the episode, got %+v", items[0])
	}
	if items[1].Type != ItemTypeChunk || items[1].EpisodeID != epID.String() {
		t.Fatalf("expected second item to be the linked chunk carrying episode id, got %+v", items[1])
	}
}

func TestRetrieve_BelowCertaintyFloorIsExcluded(t *testing.T) {
	userID := uuid.New()
	epID := uuid.New()

	episodes := &fakeEpisodeRepo{episodes: map[uuid.UUID]*domain.Episode{epID: {ID: epID, UserID: userID, Title: "x", Narrative: "y"}}}
	chunks := &fakeChunkRepo{chunks: map[uuid.UUID]*domain.Chunk{}}
	thoughts := &fakeThoughtRepo{thoughts: map[uuid.UUID]*domain.Thought{}}
	store := &fakeStore{episodeMatches: []vectorstore.Match{{ID: epID.String(), Score: 0.1}}}

	r := New(mustLogger(t), testTunables(), chunks, episodes, thoughts, fakeLLM{}, store)
	items := r.Retrieve(context.Background(), userID, "unrelated", Options{IncludeEpisodes: true})

	if len(items) != 0 {
		t.Fatalf("expected no items below the certainty floor, got %+v", items)
	}
}

func TestRetrieve_CrossUserEpisodeNeverLeaks(t *testing.T) {
	userID := uuid.New()
	otherUserID := uuid.New()
	epID := uuid.New()

	episodes := &fakeEpisodeRepo{episodes: map[uuid.UUID]*domain.Episode{epID: {ID: epID, UserID: otherUserID, Title: "not yours", Narrative: "n"}}}
	chunks := &fakeChunkRepo{chunks: map[uuid.UUID]*domain.Chunk{}}
	thoughts := &fakeThoughtRepo{thoughts: map[uuid.UUID]*domain.Thought{}}
	store := &fakeStore{episodeMatches: []vectorstore.Match{{ID: epID.String(), Score: 0.95}}}

	r := New(mustLogger(t), testTunables(), chunks, episodes, thoughts, fakeLLM{}, store)
	items := r.Retrieve(context.Background(), userID, "query", Options{IncludeEpisodes: true})

	if len(items) != 0 {
		t.Fatalf("expected episode owned by a different user to be filtered out, got %+v", items)
	}
}

func TestRetrieve_EmptyOnEmbeddingFailure(t *testing.T) {
	userID := uuid.New()
	r := New(mustLogger(t), testTunables(), &fakeChunkRepo{chunks: map[uuid.UUID]*domain.Chunk{}},
		&fakeEpisodeRepo{episodes: map[uuid.UUID]*domain.Episode{}}, &fakeThoughtRepo{thoughts: map[uuid.UUID]*domain.Thought{}},
		failingLLM{}, &fakeStore{})

	items := r.Retrieve(context.Background(), userID, "query", Options{IncludeEpisodes: true})
	if items == nil || len(items) != 0 {
		t.Fatalf("expected a non-nil empty slice on embedding failure, got %+v", items)
	}
}

type failingLLM struct{ fakeLLM }

func (failingLLM) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	return nil, errNotFound
}

func TestDedupSortTruncate(t *testing.T) {
	items := []Item{
		{Type: ItemTypeChunk, ID: "a", Similarity: 0.5},
		{Type: ItemTypeChunk, ID: "a", Similarity: 0.5},
		{Type: ItemTypeEpisode, ID: "b", Similarity: 0.9},
		{Type: ItemTypeThought, ID: "c", Similarity: 0.7},
	}
	out := dedupSortTruncate(items, 2)
	if len(out) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(out))
	}
	if out[0].ID != "b" || out[1].ID != "c" {
		t.Fatalf("expected descending similarity order after dedup, got %+v", out)
	}
}
