// Package thoughtgen implements the C9 nightly thought generator: clusters a
// user's recent episodes by centroid similarity and asks the LLM to name the
// cross-episode insight each cluster represents (§4.9).
package thoughtgen

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumenmind/memoryengine/internal/config"
	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/memory/llmtext"
	"github.com/lumenmind/memoryengine/internal/memory/vecmath"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/llm"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
	"github.com/lumenmind/memoryengine/internal/platform/vectorstore"
	"github.com/lumenmind/memoryengine/internal/repos"
)

const recentEpisodeLimit = 50

type Generator struct {
	log      *logger.Logger
	tunables config.Tunables
	episodes repos.EpisodeRepo
	thoughts repos.ThoughtRepo
	llm      llm.Client
	store    vectorstore.Store
}

func New(
	log *logger.Logger,
	tunables config.Tunables,
	episodes repos.EpisodeRepo,
	thoughts repos.ThoughtRepo,
	llmClient llm.Client,
	store vectorstore.Store,
) *Generator {
	return &Generator{
		log: log.With("service", "ThoughtGenerator"), tunables: tunables,
		episodes: episodes, thoughts: thoughts, llm: llmClient, store: store,
	}
}

// Result reports how many thoughts a run produced, for worker logging.
type Result struct {
	ThoughtsCreated int
}

type epVec struct {
	ep  *domain.Episode
	vec []float32
}

// Generate runs §4.9's 5-step nightly process for one user.
func (g *Generator) Generate(ctx context.Context, userID uuid.UUID) (Result, error) {
	dbc := dbctx.Bare(ctx)

	// Step 1: load up to the 50 most recent episodes.
	episodes, err := g.episodes.ListByUser(dbc, userID)
	if err != nil {
		return Result{}, err
	}
	if len(episodes) > recentEpisodeLimit {
		episodes = episodes[:recentEpisodeLimit]
	}

	candidates := make([]epVec, 0, len(episodes))
	for _, ep := range episodes {
		centroid, err := ep.Centroid()
		if err != nil || len(centroid) == 0 {
			continue
		}
		candidates = append(candidates, epVec{ep: ep, vec: vecmath.ResizeToDim([]float32(centroid), g.tunables.EmbeddingDim)})
	}

	// Step 2: greedy clustering by centroid similarity.
	processed := make([]bool, len(candidates))
	var clusters [][]epVec
	for i := range candidates {
		if processed[i] {
			continue
		}
		cluster := []epVec{candidates[i]}
		processed[i] = true
		for j := i + 1; j < len(candidates); j++ {
			if processed[j] {
				continue
			}
			if vecmath.Cosine(candidates[i].vec, candidates[j].vec) >= g.tunables.EpisodeSimMin {
				cluster = append(cluster, candidates[j])
				processed[j] = true
			}
		}
		if len(cluster) >= g.tunables.MinEpisodesForThought {
			clusters = append(clusters, cluster)
		}
	}

	created := 0
	for _, cluster := range clusters {
		prompt := clusterPrompt(cluster)
		text, err := g.llm.GenerateText(ctx, llmtext.ThoughtSystemPrompt, prompt)
		if err != nil {
			g.log.Warn("thought generation LLM call failed, skipping cluster", "user_id", userID, "error", err)
			continue
		}
		fields := llmtext.ParseThoughtFields(text)

		// Step 3: importance gate.
		if fields.Importance < g.tunables.MinThoughtImportance {
			continue
		}

		// Step 4: embed "name: description"; create Thought; link episodes.
		embedInput := fields.Name + ": " + fields.Description
		vectors, err := g.llm.Embed(ctx, []string{embedInput})
		if err != nil || len(vectors) != 1 {
			g.log.Warn("thought embedding failed, skipping cluster", "user_id", userID, "error", err)
			continue
		}
		thoughtVector := vecmath.ResizeToDim(vectors[0], g.tunables.EmbeddingDim)

		th := &domain.Thought{UserID: userID, Name: fields.Name, Description: fields.Description, Importance: fields.Importance}
		th.SetVector(domain.Vector(thoughtVector))
		createdTh, err := g.thoughts.Create(dbc, th)
		if err != nil {
			return Result{}, err
		}

		for _, member := range cluster {
			weight := 0.5
			if len(member.vec) == len(thoughtVector) {
				weight = vecmath.Cosine(thoughtVector, member.vec)
			}
			if err := g.thoughts.LinkEpisode(dbc, createdTh.ID, member.ep.ID, weight); err != nil {
				return Result{}, err
			}
		}

		// Step 5: upsert ThoughtEmbedding shadow.
		namespace := vectorstore.Namespace(userID.String(), vectorstore.ClassThought)
		if err := g.store.Upsert(ctx, namespace, []vectorstore.Vector{{
			ID:       createdTh.ID.String(),
			Values:   thoughtVector,
			Metadata: map[string]any{"user_id": userID.String(), "name": createdTh.Name},
		}}); err != nil {
			g.log.Warn("thought vector upsert failed; the thought row keeps its vector", "thought_id", createdTh.ID, "error", err)
		}

		created++
	}

	return Result{ThoughtsCreated: created}, nil
}

func clusterPrompt(cluster []epVec) string {
	out := ""
	for i, m := range cluster {
		if i > 0 {
			out += "\n\n"
		}
		out += m.ep.Title + "\n" + m.ep.Narrative
	}
	return out
}
