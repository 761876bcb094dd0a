package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

type RawRecordRepo interface {
	Create(dbc dbctx.Context, rec *domain.RawRecord) (*domain.RawRecord, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.RawRecord, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	MarkProcessed(dbc dbctx.Context, id uuid.UUID, importance float64) error
	MarkSkipped(dbc dbctx.Context, id uuid.UUID) error
	MarkError(dbc dbctx.Context, id uuid.UUID, errMsg string) error
	// ListActiveUserIDs returns the distinct users with at least one raw
	// record created within the lookback window, used by the nightly
	// thought-generation sweep to decide which users to enqueue for.
	ListActiveUserIDs(dbc dbctx.Context, sinceHours int) ([]uuid.UUID, error)
}

type rawRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRawRecordRepo(db *gorm.DB, baseLog *logger.Logger) RawRecordRepo {
	return &rawRecordRepo{db: db, log: baseLog.With("repo", "RawRecordRepo")}
}

func (r *rawRecordRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *rawRecordRepo) Create(dbc dbctx.Context, rec *domain.RawRecord) (*domain.RawRecord, error) {
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *rawRecordRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.RawRecord, error) {
	var rec domain.RawRecord
	if err := r.tx(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *rawRecordRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	return r.tx(dbc).WithContext(dbc.Ctx).Model(&domain.RawRecord{}).Where("id = ?", id).Updates(updates).Error
}

func (r *rawRecordRepo) MarkProcessed(dbc dbctx.Context, id uuid.UUID, importance float64) error {
	now := time.Now()
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"processing_status": domain.RawRecordStatusProcessed,
		"importance_score":  importance,
		"processed_at":      now,
	})
}

func (r *rawRecordRepo) MarkSkipped(dbc dbctx.Context, id uuid.UUID) error {
	now := time.Now()
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"processing_status": domain.RawRecordStatusSkipped,
		"processed_at":      now,
	})
}

func (r *rawRecordRepo) MarkError(dbc dbctx.Context, id uuid.UUID, errMsg string) error {
	now := time.Now()
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"processing_status": domain.RawRecordStatusError,
		"processing_error":  errMsg,
		"processed_at":      now,
	})
}

func (r *rawRecordRepo) ListActiveUserIDs(dbc dbctx.Context, sinceHours int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.RawRecord{}).
		Where("created_at >= NOW() - (? || ' hours')::interval", sinceHours).
		Distinct().
		Pluck("user_id", &ids).Error
	return ids, err
}
