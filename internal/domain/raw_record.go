package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContentType enumerates the kinds of utterances the core will ingest.
// The front-end/upload collaborators are responsible for classifying raw
// input into one of these before calling the ingestion entry point.
type ContentType string

const (
	ContentTypeUserChat                 ContentType = "user_chat"
	ContentTypeAIResponse                ContentType = "ai_response"
	ContentTypeUploadedFileEvent         ContentType = "uploaded_file_event"
	ContentTypeUploadedDocumentContent   ContentType = "uploaded_document_content"
	ContentTypeImageAnalysis             ContentType = "image_analysis"
)

func (c ContentType) Valid() bool {
	switch c {
	case ContentTypeUserChat, ContentTypeAIResponse, ContentTypeUploadedFileEvent,
		ContentTypeUploadedDocumentContent, ContentTypeImageAnalysis:
		return true
	default:
		return false
	}
}

// IsFileSourced reports whether this content type originates from a file
// upload rather than live conversation; the importance heuristic (§4.1)
// gives file-sourced content a base-score bump.
func (c ContentType) IsFileSourced() bool {
	switch c {
	case ContentTypeUploadedFileEvent, ContentTypeUploadedDocumentContent:
		return true
	default:
		return false
	}
}

type RawRecordStatus string

const (
	RawRecordStatusPending   RawRecordStatus = "pending"
	RawRecordStatusProcessed RawRecordStatus = "processed"
	RawRecordStatusSkipped   RawRecordStatus = "skipped"
	RawRecordStatusError     RawRecordStatus = "error"
)

// Terminal reports whether a RawRecordStatus is one of the terminal states
// the lifecycle invariant in spec §3 forbids leaving once entered.
func (s RawRecordStatus) Terminal() bool {
	switch s {
	case RawRecordStatusProcessed, RawRecordStatusSkipped, RawRecordStatusError:
		return true
	default:
		return false
	}
}

// RawRecord is a single ingested item: a user utterance, an AI reply, a file
// upload event, extracted document text, or an image analysis result.
type RawRecord struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID             uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	SessionID          string          `gorm:"type:text;not null;index" json:"session_id"`
	ContentType        ContentType     `gorm:"type:text;not null;index" json:"content_type"`
	Content            string          `gorm:"type:text;not null" json:"content"`
	PerspectiveOwnerID uuid.UUID       `gorm:"type:uuid;not null;index" json:"perspective_owner_id"`
	SubjectID          *uuid.UUID      `gorm:"type:uuid;index" json:"subject_id,omitempty"`
	TopicKey           string          `gorm:"type:text;index" json:"topic_key,omitempty"`
	ImportanceScore    *float64        `gorm:"type:double precision" json:"importance_score,omitempty"`
	ProcessingStatus   RawRecordStatus `gorm:"type:text;not null;index;default:'pending'" json:"processing_status"`
	SkipImportanceCheck bool           `gorm:"not null;default:false" json:"skip_importance_check"`
	CreatedAt          time.Time       `gorm:"not null;default:now();index" json:"created_at"`
	ProcessedAt        *time.Time      `json:"processed_at,omitempty"`
	ProcessingError    string          `gorm:"type:text" json:"processing_error,omitempty"`
}

func (RawRecord) TableName() string { return "raw_record" }
