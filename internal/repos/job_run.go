// Package repos holds the GORM-backed persistence layer for every domain
// entity: raw records, chunks, episodes, thoughts, and the job_run queue.
package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

type JobRunRepo interface {
	Create(dbc dbctx.Context, jobs []*domain.JobRun) ([]*domain.JobRun, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.JobRun, error)
	// ClaimNextRunnable pops one queued, retry-eligible, or stale-running job
	// off the named queue using SELECT ... FOR UPDATE SKIP LOCKED so that
	// concurrent workers never double-claim a row. retryBase seeds the
	// per-attempt exponential backoff (retryBase * 2^attempts, capped at 5m).
	ClaimNextRunnable(dbc dbctx.Context, queue string, maxAttempts int, retryBase, staleRunning time.Duration) (*domain.JobRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	// HasRunnableForOwner reports whether owner already has a queued or
	// running job of jobType, used to enforce per-(queue, owner) exclusivity
	// for consolidation and thought generation.
	HasRunnableForOwner(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string) (bool, error)
}

type jobRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRunRepo(db *gorm.DB, baseLog *logger.Logger) JobRunRepo {
	return &jobRunRepo{db: db, log: baseLog.With("repo", "JobRunRepo")}
}

func (r *jobRunRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *jobRunRepo) Create(dbc dbctx.Context, jobs []*domain.JobRun) ([]*domain.JobRun, error) {
	if len(jobs) == 0 {
		return []*domain.JobRun{}, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRunRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.JobRun, error) {
	var out []*domain.JobRun
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimNextRunnable's retry branch computes each failed job's own backoff
// window in SQL as retryBase * 2^attempts (capped at retryCapSeconds) rather than
// applying one flat delay to every row, so later attempts wait longer per §6
// ("exponential backoff base 5s ... capped at 5 minutes").
func (r *jobRunRepo) ClaimNextRunnable(dbc dbctx.Context, queue string, maxAttempts int, retryBase, staleRunning time.Duration) (*domain.JobRun, error) {
	now := time.Now()
	staleCutoff := now.Add(-staleRunning)
	retryBaseSeconds := retryBase.Seconds()
	retryCapSeconds := (5 * time.Minute).Seconds()
	var claimed *domain.JobRun
	err := r.tx(dbc).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var job domain.JobRun
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("queue = ?", queue).
			Where(`
				(run_after IS NULL OR run_after <= ?)
				AND (
					status = ?
					OR (
						status = ? AND attempts < ?
						AND (
							last_error_at IS NULL
							OR last_error_at < ? - (LEAST(? * POWER(2, attempts), ?) || ' seconds')::interval
						)
					)
					OR (status = ? AND heartbeat_at IS NOT NULL AND heartbeat_at < ?)
				)
			`, now, domain.JobStatusQueued,
				domain.JobStatusFailed, maxAttempts, now, retryBaseSeconds, retryCapSeconds,
				domain.JobStatusRunning, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&job).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&domain.JobRun{}).
			Where("id = ?", job.ID).
			Updates(map[string]interface{}{
				"status":       domain.JobStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.tx(dbc).WithContext(dbc.Ctx).Model(&domain.JobRun{}).Where("id = ?", id).Updates(updates).Error
}

func (r *jobRunRepo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.JobRun{}).
		Where("id = ? AND status = ?", id, domain.JobStatusRunning).
		Updates(map[string]interface{}{"heartbeat_at": now, "updated_at": now}).Error
}

func (r *jobRunRepo) HasRunnableForOwner(dbc dbctx.Context, ownerUserID uuid.UUID, jobType string) (bool, error) {
	if ownerUserID == uuid.Nil || jobType == "" {
		return false, nil
	}
	var count int64
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.JobRun{}).
		Where("owner_user_id = ? AND job_type = ? AND status IN ?", ownerUserID, jobType, []string{domain.JobStatusQueued, domain.JobStatusRunning}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
