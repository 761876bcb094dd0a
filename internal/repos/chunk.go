package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

type ChunkRepo interface {
	CreateBatch(dbc dbctx.Context, chunks []*domain.Chunk) ([]*domain.Chunk, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Chunk, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Chunk, error)
	GetByRawRecordID(dbc dbctx.Context, rawRecordID uuid.UUID) ([]*domain.Chunk, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	// ListUnattached returns chunks with status pending_vector for a user.
	ListUnattached(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*domain.Chunk, error)
	// ListPendingVector returns chunks with status pending_vector across all
	// users, oldest first, for the cross-user 5-minute sweeper that requeues
	// chunks whose vector-store upsert failed at ingest time (§5 Backpressure).
	ListPendingVector(dbc dbctx.Context, limit int) ([]*domain.Chunk, error)
	// ListAllForConsolidation returns every one of a user's processed chunks,
	// with no time bound: an orphan that never clustered stays a candidate
	// indefinitely, until a later consolidation run picks it up (§4.8 step 1).
	ListAllForConsolidation(dbc dbctx.Context, userID uuid.UUID) ([]*domain.Chunk, error)
}

type chunkRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChunkRepo(db *gorm.DB, baseLog *logger.Logger) ChunkRepo {
	return &chunkRepo{db: db, log: baseLog.With("repo", "ChunkRepo")}
}

func (r *chunkRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *chunkRepo) CreateBatch(dbc dbctx.Context, chunks []*domain.Chunk) ([]*domain.Chunk, error) {
	if len(chunks) == 0 {
		return []*domain.Chunk{}, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(&chunks).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

func (r *chunkRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Chunk, error) {
	var c domain.Chunk
	if err := r.tx(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *chunkRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Chunk, error) {
	var out []*domain.Chunk
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chunkRepo) GetByRawRecordID(dbc dbctx.Context, rawRecordID uuid.UUID) ([]*domain.Chunk, error) {
	var out []*domain.Chunk
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("raw_record_id = ?", rawRecordID).
		Order(`"index" ASC`).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chunkRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	return r.tx(dbc).WithContext(dbc.Ctx).Model(&domain.Chunk{}).Where("id = ?", id).Updates(updates).Error
}

func (r *chunkRepo) ListUnattached(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*domain.Chunk, error) {
	var out []*domain.Chunk
	q := r.tx(dbc).WithContext(dbc.Ctx).
		Where("user_id = ? AND processing_status = ?", userID, domain.ChunkStatusPendingVector).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chunkRepo) ListPendingVector(dbc dbctx.Context, limit int) ([]*domain.Chunk, error) {
	var out []*domain.Chunk
	q := r.tx(dbc).WithContext(dbc.Ctx).
		Where("processing_status = ?", domain.ChunkStatusPendingVector).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *chunkRepo) ListAllForConsolidation(dbc dbctx.Context, userID uuid.UUID) ([]*domain.Chunk, error) {
	var out []*domain.Chunk
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Where("user_id = ? AND processing_status = ?", userID, domain.ChunkStatusProcessed).
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
