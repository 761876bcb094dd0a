// Package retriever implements the C10 multi-stage semantic retrieval
// algorithm: episodes first, then a direct chunk nearest-neighbor pass to
// backfill, then thoughts, merged and ranked by similarity (§4.10).
package retriever

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/lumenmind/memoryengine/internal/config"
	"github.com/lumenmind/memoryengine/internal/memory/vecmath"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/llm"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
	"github.com/lumenmind/memoryengine/internal/platform/vectorstore"
	"github.com/lumenmind/memoryengine/internal/repos"
)

type ItemType string

const (
	ItemTypeEpisode ItemType = "episode"
	ItemTypeChunk   ItemType = "chunk"
	ItemTypeThought ItemType = "thought"
)

// Item is one retrieval hit, in the shape §4.10 specifies.
type Item struct {
	Type         ItemType `json:"type"`
	ID           string   `json:"id"`
	Title        string   `json:"title,omitempty"`
	Content      string   `json:"content"`
	Similarity   float64  `json:"similarity"`
	EpisodeID    string   `json:"episode_id,omitempty"`
	EpisodeTitle string   `json:"episode_title,omitempty"`
}

// Options carries the retrieval tunables the collaborator may override per
// call; zero values fall back to the component's configured defaults.
type Options struct {
	Limit           int
	MinImportance   float64
	Certainty       float64
	IncludeEpisodes bool
	IncludeChunks   bool
}

const maxChunksPerEpisode = 10
const maxThoughtHits = 3
const episodeChunkSimilarityFactor = 0.9
const thoughtCertaintyFactor = 0.75

type Retriever struct {
	log      *logger.Logger
	tunables config.Tunables
	chunks   repos.ChunkRepo
	episodes repos.EpisodeRepo
	thoughts repos.ThoughtRepo
	llm      llm.Client
	store    vectorstore.Store
}

func New(
	log *logger.Logger,
	tunables config.Tunables,
	chunks repos.ChunkRepo,
	episodes repos.EpisodeRepo,
	thoughts repos.ThoughtRepo,
	llmClient llm.Client,
	store vectorstore.Store,
) *Retriever {
	return &Retriever{
		log: log.With("service", "Retriever"), tunables: tunables,
		chunks: chunks, episodes: episodes, thoughts: thoughts, llm: llmClient, store: store,
	}
}

// Retrieve runs §4.10's algorithm. On any failure it logs and returns an
// empty, non-nil slice rather than propagating an error to the caller (§7:
// "on retrieve failure, return an empty list rather than a 5xx").
func (r *Retriever) Retrieve(ctx context.Context, userID uuid.UUID, queryText string, opts Options) []Item {
	opts = r.withDefaults(opts)
	dbc := dbctx.Bare(ctx)

	vectors, err := r.llm.Embed(ctx, []string{queryText})
	if err != nil || len(vectors) != 1 {
		r.log.Warn("query embedding failed, returning empty retrieval", "user_id", userID, "error", err)
		return []Item{}
	}
	queryVector := vecmath.ResizeToDim(vectors[0], r.tunables.EmbeddingDim)

	var items []Item

	if opts.IncludeEpisodes {
		items = append(items, r.stageEpisodes(ctx, dbc, userID, queryVector, opts)...)
	}

	if len(items) < opts.Limit && opts.IncludeChunks {
		items = append(items, r.stageChunks(ctx, dbc, userID, queryVector, opts, opts.Limit-len(items))...)
	}

	items = append(items, r.stageThoughts(ctx, userID, queryVector, opts)...)

	return dedupSortTruncate(items, opts.Limit)
}

func (r *Retriever) withDefaults(opts Options) Options {
	if opts.Limit <= 0 {
		opts.Limit = r.tunables.RetrievalLimit
	}
	if opts.MinImportance <= 0 {
		opts.MinImportance = r.tunables.RetrievalFloor
	}
	if opts.Certainty <= 0 {
		opts.Certainty = r.tunables.RetrievalCertainty
	}
	return opts
}

// stageEpisodes implements §4.10 step 2: nearest-neighbor over episodes,
// then for each hit, pull up to 10 linked chunks and surface both.
func (r *Retriever) stageEpisodes(ctx context.Context, dbc dbctx.Context, userID uuid.UUID, queryVector []float32, opts Options) []Item {
	namespace := vectorstore.Namespace(userID.String(), vectorstore.ClassEpisode)
	matches, err := r.store.QueryMatches(ctx, namespace, queryVector, opts.Limit, map[string]any{"user_id": userID.String()})
	if err != nil {
		r.log.Warn("episode nearest-neighbor query failed", "user_id", userID, "error", err)
		return nil
	}

	var out []Item
	for _, m := range matches {
		certaintyFloor := opts.Certainty
		if m.Score < certaintyFloor {
			continue
		}
		epID, err := uuid.Parse(m.ID)
		if err != nil {
			continue
		}
		ep, err := r.episodes.GetByID(dbc, epID)
		if err != nil || ep.UserID != userID {
			continue
		}
		out = append(out, Item{Type: ItemTypeEpisode, ID: ep.ID.String(), Title: ep.Title, Content: ep.Narrative, Similarity: m.Score})

		memberIDs, err := r.episodes.MemberIDs(dbc, epID)
		if err != nil {
			continue
		}
		if len(memberIDs) > maxChunksPerEpisode {
			memberIDs = memberIDs[:maxChunksPerEpisode]
		}
		chunks, err := r.chunks.GetByIDs(dbc, memberIDs)
		if err != nil {
			continue
		}
		for _, c := range chunks {
			if c.UserID != userID {
				continue
			}
			out = append(out, Item{
				Type: ItemTypeChunk, ID: c.ID.String(), Content: c.Text,
				Similarity:   m.Score * episodeChunkSimilarityFactor,
				EpisodeID:    ep.ID.String(),
				EpisodeTitle: ep.Title,
			})
		}
	}
	return out
}

// stageChunks implements §4.10 step 3: a direct chunk nearest-neighbor pass,
// used only to backfill when stage 1 didn't reach the requested limit.
func (r *Retriever) stageChunks(ctx context.Context, dbc dbctx.Context, userID uuid.UUID, queryVector []float32, opts Options, remaining int) []Item {
	namespace := vectorstore.Namespace(userID.String(), vectorstore.ClassChunk)
	filter := map[string]any{"user_id": userID.String(), "importance_gte": opts.MinImportance}
	matches, err := r.store.QueryMatches(ctx, namespace, queryVector, remaining, filter)
	if err != nil {
		r.log.Warn("chunk nearest-neighbor query failed", "user_id", userID, "error", err)
		return nil
	}

	var out []Item
	for _, m := range matches {
		chunkID, err := uuid.Parse(m.ID)
		if err != nil {
			continue
		}
		c, err := r.chunks.GetByID(dbc, chunkID)
		if err != nil || c.UserID != userID {
			continue
		}
		if c.ImportanceScore < opts.MinImportance {
			continue
		}
		out = append(out, Item{Type: ItemTypeChunk, ID: c.ID.String(), Content: c.Text, Similarity: m.Score})
	}
	return out
}

// stageThoughts implements §4.10 step 4: nearest-neighbor over thoughts with
// a lower certainty floor, capped at 3 hits.
func (r *Retriever) stageThoughts(ctx context.Context, userID uuid.UUID, queryVector []float32, opts Options) []Item {
	namespace := vectorstore.Namespace(userID.String(), vectorstore.ClassThought)
	matches, err := r.store.QueryMatches(ctx, namespace, queryVector, maxThoughtHits, map[string]any{"user_id": userID.String()})
	if err != nil {
		r.log.Warn("thought nearest-neighbor query failed", "user_id", userID, "error", err)
		return nil
	}

	certaintyFloor := opts.Certainty * thoughtCertaintyFactor
	dbc := dbctx.Bare(ctx)
	var out []Item
	for _, m := range matches {
		if m.Score < certaintyFloor {
			continue
		}
		thoughtID, err := uuid.Parse(m.ID)
		if err != nil {
			continue
		}
		ths, err := r.thoughts.GetByIDs(dbc, []uuid.UUID{thoughtID})
		if err != nil || len(ths) == 0 || ths[0].UserID != userID {
			continue
		}
		th := ths[0]
		out = append(out, Item{Type: ItemTypeThought, ID: th.ID.String(), Title: th.Name, Content: th.Description, Similarity: m.Score})
		if len(out) >= maxThoughtHits {
			break
		}
	}
	return out
}

// dedupSortTruncate implements §4.10 step 5.
func dedupSortTruncate(items []Item, limit int) []Item {
	seen := map[string]bool{}
	deduped := make([]Item, 0, len(items))
	for _, it := range items {
		key := string(it.Type) + ":" + it.ID
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, it)
	}
	sort.SliceStable(deduped, func(i, j int) bool { return deduped[i].Similarity > deduped[j].Similarity })
	if limit > 0 && len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return deduped
}
