package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// JobRun is the durable queue row backing the C11 queue/worker harness.
// `Queue` names one of the memory.* queues (spec §5); `JobType` names the
// handler within that queue's registry.
type JobRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Queue       string         `gorm:"column:queue;not null;index" json:"queue"`
	JobType     string         `gorm:"column:job_type;not null;index" json:"job_type"`
	OwnerUserID uuid.UUID      `gorm:"type:uuid;column:owner_user_id;not null;index" json:"owner_user_id"`
	EntityType  string         `gorm:"column:entity_type;index" json:"entity_type,omitempty"`
	EntityID    *uuid.UUID     `gorm:"type:uuid;column:entity_id;index" json:"entity_id,omitempty"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Stage       string         `gorm:"column:stage;not null;index" json:"stage"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb;not null;default:'{}'" json:"payload"`
	Result      datatypes.JSON `gorm:"column:result;type:jsonb;not null;default:'{}'" json:"result"`
	LastError   string         `gorm:"column:last_error" json:"last_error,omitempty"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at;index" json:"last_error_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	RunAfter    *time.Time     `gorm:"column:run_after;index" json:"run_after,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
}

func (JobRun) TableName() string { return "job_run" }

// Queue names, matching spec §5.
const (
	QueueIngest          = "memory.ingest"
	QueueAttachEpisode   = "memory.attachEpisode"
	QueueConsolidate     = "memory.consolidate"
	QueueGenerateThoughts = "memory.generateThoughts"
	QueueFileUpload      = "memory.fileUpload" // reserved: never enqueued by the core itself.
)

// Job statuses.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)
