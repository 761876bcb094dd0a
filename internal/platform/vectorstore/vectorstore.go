// Package vectorstore defines the dual-backend abstraction over the
// embedding index (§4.4): a hosted Pinecone index or a self-hosted Qdrant
// instance, selected at startup by which environment variables are present.
package vectorstore

import "context"

// Class names one of the three embedding classes the core maintains.
// KnowledgeNode/Relationship classes are reserved by spec §9 and are never
// written by this version.
type Class string

const (
	ClassChunk   Class = "chunk"
	ClassEpisode Class = "episode"
	ClassThought Class = "thought"
)

type Vector struct {
	ID       string
	Values   []float32
	Metadata map[string]any
}

type Match struct {
	ID    string
	Score float64
}

// Store is the vector-store-agnostic interface every memory-domain
// component depends on. Namespace scoping (per user, per class) is the
// caller's responsibility via the namespace argument.
type Store interface {
	Upsert(ctx context.Context, namespace string, vectors []Vector) error
	QueryMatches(ctx context.Context, namespace string, query []float32, topK int, filter map[string]any) ([]Match, error)
	QueryIDs(ctx context.Context, namespace string, query []float32, topK int, filter map[string]any) ([]string, error)
	DeleteIDs(ctx context.Context, namespace string, ids []string) error
}

// Namespace builds the per-user, per-class namespace string used to scope
// every vector-store operation. Users are fully isolated from one another at
// the namespace level, never by filter alone.
func Namespace(userID string, class Class) string {
	return userID + ":" + string(class)
}
