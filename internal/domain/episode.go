package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Episode is a user-scoped cluster of related chunks with a generated title,
// a generated narrative, and a centroid vector maintained online (§4.7) or by
// batch consolidation (§4.8).
type Episode struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Title        string         `gorm:"type:text;not null" json:"title"`
	Narrative    string         `gorm:"type:text;not null" json:"narrative"`
	CentroidJSON datatypes.JSON `gorm:"column:centroid_vec;type:jsonb;not null" json:"centroid_vec"`
	CreatedAt    time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (Episode) TableName() string { return "episode" }

func (e *Episode) Centroid() (Vector, error) {
	return UnmarshalVector(e.CentroidJSON)
}

func (e *Episode) SetCentroid(v Vector) {
	e.CentroidJSON = v.Marshal()
}

// ChunkEpisode is the many-to-many link between Chunk and Episode. A chunk
// may belong to more than one episode (multi-attach, §4.7).
type ChunkEpisode struct {
	ChunkID   uuid.UUID `gorm:"type:uuid;not null;primaryKey" json:"chunk_id"`
	EpisodeID uuid.UUID `gorm:"type:uuid;not null;primaryKey" json:"episode_id"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (ChunkEpisode) TableName() string { return "chunk_episode" }

// Thought is a cross-episode insight with weighted links to its source
// episodes (§3, §4.9).
type Thought struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Name         string         `gorm:"type:text;not null" json:"name"`
	Description  string         `gorm:"type:text;not null" json:"description"`
	VectorJSON   datatypes.JSON `gorm:"column:vector;type:jsonb;not null" json:"vector"`
	Importance   float64        `gorm:"type:double precision;not null" json:"importance"`
	CreatedAt    time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (Thought) TableName() string { return "thought" }

func (t *Thought) Vector() (Vector, error) {
	return UnmarshalVector(t.VectorJSON)
}

func (t *Thought) SetVector(v Vector) {
	t.VectorJSON = v.Marshal()
}

// EpisodeThought links a Thought back to the episodes it was derived from,
// weighted by cosine similarity between the thought vector and the episode
// centroid at creation time.
type EpisodeThought struct {
	EpisodeID uuid.UUID `gorm:"type:uuid;not null;primaryKey" json:"episode_id"`
	ThoughtID uuid.UUID `gorm:"type:uuid;not null;primaryKey" json:"thought_id"`
	Weight    float64   `gorm:"type:double precision;not null" json:"weight"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (EpisodeThought) TableName() string { return "episode_thought" }
