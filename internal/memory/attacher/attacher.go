// Package attacher implements the C7 episode attacher: given a chunk that
// has just been indexed, decide whether it belongs to an existing episode,
// seeds a new one, or is an orphan awaiting consolidation (§4.7).
package attacher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenmind/memoryengine/internal/config"
	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/memory/jobqueue"
	"github.com/lumenmind/memoryengine/internal/memory/llmtext"
	"github.com/lumenmind/memoryengine/internal/memory/vecmath"
	"github.com/lumenmind/memoryengine/internal/platform/cache"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/llm"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
	"github.com/lumenmind/memoryengine/internal/platform/vectorstore"
	"github.com/lumenmind/memoryengine/internal/repos"
)

// Decision reports which branch of §4.7 step 5 a chunk took, for tests and
// worker logging.
type Decision string

const (
	DecisionMultiAttach   Decision = "multi_attach"
	DecisionPrimaryAttach Decision = "primary_attach"
	DecisionSeedNew       Decision = "seed_new"
	DecisionOrphan        Decision = "orphan"
)

type Attacher struct {
	log      *logger.Logger
	tunables config.Tunables
	chunks   repos.ChunkRepo
	episodes repos.EpisodeRepo
	llm      llm.Client
	store    vectorstore.Store
	cache    cache.Cache
	enqueuer *jobqueue.Enqueuer
}

func New(
	log *logger.Logger,
	tunables config.Tunables,
	chunks repos.ChunkRepo,
	episodes repos.EpisodeRepo,
	llmClient llm.Client,
	store vectorstore.Store,
	cacheClient cache.Cache,
	enqueuer *jobqueue.Enqueuer,
) *Attacher {
	return &Attacher{
		log: log.With("service", "EpisodeAttacher"), tunables: tunables,
		chunks: chunks, episodes: episodes, llm: llmClient, store: store, cache: cacheClient, enqueuer: enqueuer,
	}
}

const vectorFetchRetries = 3

// Attach runs §4.7's 5-step decision logic for one chunk.
func (a *Attacher) Attach(ctx context.Context, chunkID, userID uuid.UUID) (Decision, error) {
	dbc := dbctx.Bare(ctx)

	// Step 1: load chunk and read its vector from the chunk row, with retries;
	// the vector store is not queried.
	chunk, chunkVector, err := a.loadChunkAndVectorWithRetry(dbc, chunkID)
	if err != nil {
		return "", fmt.Errorf("persistent vector miss for chunk %s: %w", chunkID, err)
	}

	// Step 2: normalize to dimension D.
	normalized := vecmath.ResizeToDim([]float32(chunkVector), a.tunables.EmbeddingDim)

	// Step 3: load the user's N most recent episodes created within
	// EpisodeTimeWindow.
	candidates, err := a.episodes.ListByUser(dbc, userID)
	if err != nil {
		return "", err
	}
	if a.tunables.EpisodeTimeWindow > 0 {
		cutoff := time.Now().Add(-a.tunables.EpisodeTimeWindow)
		recent := candidates[:0]
		for _, ep := range candidates {
			if !ep.CreatedAt.Before(cutoff) {
				recent = append(recent, ep)
			}
		}
		candidates = recent
	}
	if len(candidates) > a.tunables.MaxCandidates {
		candidates = candidates[:a.tunables.MaxCandidates]
	}

	// Step 4: compute similarity to each candidate centroid.
	type scored struct {
		episode *domain.Episode
		sim     float64
	}
	scoredCandidates := make([]scored, 0, len(candidates))
	for _, ep := range candidates {
		centroid, err := ep.Centroid()
		if err != nil {
			a.log.Warn("skipping candidate with unreadable centroid", "episode_id", ep.ID, "error", err)
			continue
		}
		aligned := vecmath.ResizeToDim([]float32(centroid), a.tunables.EmbeddingDim)
		sim := vecmath.Cosine(normalized, aligned)
		scoredCandidates = append(scoredCandidates, scored{episode: ep, sim: sim})
	}

	// Step 5: decision order.
	var multi []scored
	var best *scored
	for i := range scoredCandidates {
		sc := scoredCandidates[i]
		if sc.sim >= a.tunables.MultiAttach {
			multi = append(multi, sc)
		}
		if best == nil || sc.sim > best.sim {
			best = &sc
		}
	}

	if len(multi) > 0 {
		for _, sc := range multi {
			if err := a.link(dbc, chunk.ID, sc.episode, normalized); err != nil {
				return "", err
			}
		}
		return DecisionMultiAttach, nil
	}

	if best != nil && best.sim >= a.tunables.PrimaryAttach {
		if err := a.link(dbc, chunk.ID, best.episode, normalized); err != nil {
			return "", err
		}
		return DecisionPrimaryAttach, nil
	}

	bestSim := 0.0
	if best != nil {
		bestSim = best.sim
	}
	if bestSim < a.tunables.SeedThreshold && chunk.ImportanceScore >= a.tunables.ImportanceThreshold {
		if err := a.seedEpisode(ctx, dbc, chunk, normalized); err != nil {
			return "", err
		}
		return DecisionSeedNew, nil
	}

	if a.cache != nil {
		if _, err := a.cache.IncrOrphanCount(ctx, userID.String()); err != nil {
			a.log.Warn("failed to increment orphan count", "user_id", userID, "error", err)
		}
	}
	if err := a.enqueuer.EnqueueConsolidate(ctx, userID); err != nil {
		a.log.Warn("failed to enqueue consolidate", "user_id", userID, "error", err)
	}
	return DecisionOrphan, nil
}

// loadChunkAndVectorWithRetry reads the chunk's embedding back off its
// relational row, which is the authoritative copy (§7 reconciliation: DB
// wins) written during ingestion before the vector-store upsert is even
// attempted. Up to vectorFetchRetries reads, 200ms apart and doubling,
// cover a row whose vector column is still empty or unreadable; a row that
// cannot be loaded at all fails at once without a retry.
func (a *Attacher) loadChunkAndVectorWithRetry(dbc dbctx.Context, chunkID uuid.UUID) (*domain.Chunk, domain.Vector, error) {
	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < vectorFetchRetries; attempt++ {
		chunk, err := a.chunks.GetByID(dbc, chunkID)
		if err != nil {
			return nil, nil, err
		}
		vec, err := chunk.Vector()
		if err != nil {
			lastErr = err
		} else if len(vec) > 0 {
			return chunk, vec, nil
		} else {
			lastErr = fmt.Errorf("chunk %s has no embedded vector yet", chunkID)
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return nil, nil, lastErr
}

// link performs §4.7's centroid update inside one relational transaction:
// it locks the episode row with SELECT ... FOR UPDATE, then the ChunkEpisode
// insert and the Episode centroid update happen together so concurrent
// attach jobs for the same episode (QueueAttachEpisode runs at concurrency
// 5) never read a stale member count or interleave their centroid writes.
func (a *Attacher) link(dbc dbctx.Context, chunkID uuid.UUID, ep *domain.Episode, chunkVector []float32) error {
	return a.episodes.WithTx(dbc, func(txDbc dbctx.Context) error {
		locked, err := a.episodes.LockForUpdate(txDbc, ep.ID)
		if err != nil {
			return err
		}
		prevCentroid, err := locked.Centroid()
		if err != nil {
			return err
		}
		n, err := a.episodes.CountMembers(txDbc, locked.ID)
		if err != nil {
			return err
		}
		newCentroid := vecmath.UpdateCentroid([]float32(prevCentroid), chunkVector, int(n))

		if err := a.episodes.AttachChunk(txDbc, chunkID, locked.ID); err != nil {
			return err
		}
		return a.episodes.UpdateCentroid(txDbc, locked.ID, domain.Vector(newCentroid))
	})
}

func (a *Attacher) seedEpisode(ctx context.Context, dbc dbctx.Context, chunk *domain.Chunk, chunkVector []float32) error {
	text, err := a.llm.GenerateText(ctx, llmtext.TitleNarrativeSystemPrompt, chunk.Text)
	if err != nil {
		a.log.Warn("title/narrative generation failed, using raw excerpt", "chunk_id", chunk.ID, "error", err)
		text = chunk.Text
	}
	parsed := llmtext.ParseTitleNarrative(text)

	ep := &domain.Episode{UserID: chunk.UserID, Title: parsed.Title, Narrative: parsed.Narrative}
	ep.SetCentroid(domain.Vector(chunkVector))
	created, err := a.episodes.Create(dbc, ep)
	if err != nil {
		return err
	}
	if err := a.episodes.AttachChunk(dbc, chunk.ID, created.ID); err != nil {
		return err
	}

	namespace := vectorstore.Namespace(chunk.UserID.String(), vectorstore.ClassEpisode)
	return a.store.Upsert(ctx, namespace, []vectorstore.Vector{{
		ID:     created.ID.String(),
		Values: chunkVector,
		Metadata: map[string]any{
			"user_id": chunk.UserID.String(),
			"title":   created.Title,
		},
	}})
}
