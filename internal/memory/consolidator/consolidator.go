// Package consolidator implements the C8 batch consolidator: density
// clusters a user's orphan chunks into new episodes (§4.8).
package consolidator

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/lumenmind/memoryengine/internal/config"
	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/memory/llmtext"
	"github.com/lumenmind/memoryengine/internal/memory/vecmath"
	"github.com/lumenmind/memoryengine/internal/platform/cache"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/llm"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
	"github.com/lumenmind/memoryengine/internal/platform/vectorstore"
	"github.com/lumenmind/memoryengine/internal/repos"
)

// promptCharBudget caps the concatenated member text sent to the LLM for
// title/narrative generation (§4.8 step 4).
const promptCharBudget = 6000

type Consolidator struct {
	log      *logger.Logger
	tunables config.Tunables
	chunks   repos.ChunkRepo
	episodes repos.EpisodeRepo
	llm      llm.Client
	store    vectorstore.Store
	cache    cache.Cache
}

func New(
	log *logger.Logger,
	tunables config.Tunables,
	chunks repos.ChunkRepo,
	episodes repos.EpisodeRepo,
	llmClient llm.Client,
	store vectorstore.Store,
	cacheClient cache.Cache,
) *Consolidator {
	return &Consolidator{
		log: log.With("service", "Consolidator"), tunables: tunables,
		chunks: chunks, episodes: episodes, llm: llmClient, store: store, cache: cacheClient,
	}
}

// Result reports how many new episodes a consolidation run produced, for
// worker logging and tests.
type Result struct {
	EpisodesCreated int
	OrphansSeen     int
}

// Consolidate runs §4.8's 5-step batch clustering for one user.
func (c *Consolidator) Consolidate(ctx context.Context, userID uuid.UUID) (Result, error) {
	dbc := dbctx.Bare(ctx)

	// Step 1: load all user chunks not yet in any ChunkEpisode, with a
	// retrievable vector. ListAllForConsolidation already scopes to processed
	// chunks with no time bound, so an orphan stays a candidate indefinitely;
	// membership and vector presence are filtered below since the repo layer
	// has no anti-join.
	candidates, err := c.chunks.ListAllForConsolidation(dbc, userID)
	if err != nil {
		return Result{}, err
	}

	candidateIDs := make([]uuid.UUID, len(candidates))
	for i, chunk := range candidates {
		candidateIDs[i] = chunk.ID
	}
	attached, err := c.episodes.AttachedChunkIDs(dbc, candidateIDs)
	if err != nil {
		return Result{}, err
	}

	orphans := make([]*domain.Chunk, 0, len(candidates))
	vectors := make([][]float32, 0, len(candidates))
	for _, chunk := range candidates {
		if attached[chunk.ID] {
			continue
		}
		vec, err := chunk.Vector()
		if err != nil || len(vec) == 0 {
			continue
		}
		orphans = append(orphans, chunk)
		vectors = append(vectors, vecmath.ResizeToDim([]float32(vec), c.tunables.EmbeddingDim))
	}

	// Step 2: threshold gate.
	if len(orphans) < c.tunables.ConsolidationThreshold {
		return Result{OrphansSeen: len(orphans)}, nil
	}

	// Step 3: DBSCAN over the vectors.
	labels := vecmath.DBSCAN(vectors, c.tunables.DBSCANEpsilon, c.tunables.DBSCANMinPoints)

	clusters := map[int][]int{}
	for i, label := range labels {
		if label < 0 {
			continue // noise: remains orphan
		}
		clusters[label] = append(clusters[label], i)
	}

	created := 0
	for _, memberIdx := range clusters {
		if len(memberIdx) < c.tunables.DBSCANMinPoints {
			continue
		}
		if len(memberIdx) > c.tunables.MaxChunksPerEpisode {
			memberIdx = memberIdx[:c.tunables.MaxChunksPerEpisode]
		}

		members := make([]*domain.Chunk, len(memberIdx))
		memberVectors := make([][]float32, len(memberIdx))
		for i, idx := range memberIdx {
			members[i] = orphans[idx]
			memberVectors[i] = vectors[idx]
		}

		centroid := vecmath.Normalize(vecmath.Centroid(memberVectors))

		text, err := c.llm.GenerateText(ctx, llmtext.TitleNarrativeSystemPrompt, llmtext.TruncateForPrompt(concatTexts(members), promptCharBudget))
		if err != nil {
			c.log.Warn("title/narrative generation failed for consolidated cluster, using excerpt", "user_id", userID, "error", err)
			text = concatTexts(members)
		}
		parsed := llmtext.ParseTitleNarrative(text)

		ep := &domain.Episode{UserID: userID, Title: parsed.Title, Narrative: parsed.Narrative}
		ep.SetCentroid(domain.Vector(centroid))
		createdEp, err := c.episodes.Create(dbc, ep)
		if err != nil {
			return Result{}, err
		}
		for _, m := range members {
			if err := c.episodes.AttachChunk(dbc, m.ID, createdEp.ID); err != nil {
				return Result{}, err
			}
		}

		namespace := vectorstore.Namespace(userID.String(), vectorstore.ClassEpisode)
		if err := c.store.Upsert(ctx, namespace, []vectorstore.Vector{{
			ID:       createdEp.ID.String(),
			Values:   centroid,
			Metadata: map[string]any{"user_id": userID.String(), "title": createdEp.Title},
		}}); err != nil {
			c.log.Warn("episode vector upsert failed; the episode row keeps its centroid", "episode_id", createdEp.ID, "error", err)
		}
		created++
	}

	// Step 5: noise points remain orphans; reset the orphan trigger since
	// this consolidation pass has now acted on the authoritative DB state.
	if c.cache != nil {
		if err := c.cache.ResetOrphanCount(ctx, userID.String()); err != nil {
			c.log.Warn("failed to reset orphan count", "user_id", userID, "error", err)
		}
	}

	return Result{EpisodesCreated: created, OrphansSeen: len(orphans)}, nil
}

func concatTexts(chunks []*domain.Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(c.Text)
	}
	return b.String()
}
