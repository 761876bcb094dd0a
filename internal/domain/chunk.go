package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChunkStatus string

const (
	ChunkStatusPending        ChunkStatus = "pending"
	ChunkStatusEmbeddingError ChunkStatus = "embedding_error"
	ChunkStatusPendingVector  ChunkStatus = "pending_vector"
	ChunkStatusProcessed      ChunkStatus = "processed"
)

// ChunkMetadata is the fixed, typed replacement for the ad hoc dictionary
// payload the original system attached to chunks (see SPEC_FULL.md §9).
// It is persisted as a JSON column but never read or written as a bare map.
type ChunkMetadata struct {
	ContentType        ContentType `json:"content_type"`
	SourceCreatedAt     time.Time   `json:"source_created_at"`
	PerspectiveOwnerID  uuid.UUID   `json:"perspective_owner_id"`
	SubjectID           *uuid.UUID  `json:"subject_id,omitempty"`
	TopicKey            string      `json:"topic_key,omitempty"`
	ForceImportant      bool        `json:"force_important,omitempty"`
}

func (m ChunkMetadata) Marshal() datatypes.JSON {
	raw, _ := json.Marshal(m)
	return datatypes.JSON(raw)
}

func UnmarshalChunkMetadata(raw datatypes.JSON) (ChunkMetadata, error) {
	var m ChunkMetadata
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return ChunkMetadata{}, err
	}
	return m, nil
}

// Vector is a float32 vector stored as a JSON array so a vector-store rebuild
// sweep never depends on the vector store being reachable (spec §3.1).
type Vector []float32

func (v Vector) Marshal() datatypes.JSON {
	if v == nil {
		return datatypes.JSON([]byte("null"))
	}
	raw, _ := json.Marshal(v)
	return datatypes.JSON(raw)
}

func UnmarshalVector(raw datatypes.JSON) (Vector, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v Vector
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Chunk is a semantic slice of exactly one RawRecord; it is the unit of
// embedding and retrieval.
type Chunk struct {
	ID               uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RawRecordID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"raw_record_id"`
	UserID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	SessionID        string         `gorm:"type:text;not null;index" json:"session_id"`
	Text             string         `gorm:"type:text;not null" json:"text"`
	Index            int            `gorm:"not null" json:"index"`
	TokenCount        int            `gorm:"not null" json:"token_count"`
	ImportanceScore  float64        `gorm:"type:double precision;not null" json:"importance_score"`
	VectorJSON       datatypes.JSON `gorm:"column:vector;type:jsonb" json:"vector,omitempty"`
	ProcessingStatus ChunkStatus    `gorm:"type:text;not null;index;default:'pending'" json:"processing_status"`
	MetadataJSON     datatypes.JSON `gorm:"column:metadata;type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt        time.Time      `gorm:"not null;default:now();index" json:"created_at"`
}

func (Chunk) TableName() string { return "chunk" }

func (c *Chunk) Metadata() (ChunkMetadata, error) {
	return UnmarshalChunkMetadata(c.MetadataJSON)
}

func (c *Chunk) SetMetadata(m ChunkMetadata) {
	c.MetadataJSON = m.Marshal()
}

func (c *Chunk) Vector() (Vector, error) {
	return UnmarshalVector(c.VectorJSON)
}

func (c *Chunk) SetVector(v Vector) {
	c.VectorJSON = v.Marshal()
}
