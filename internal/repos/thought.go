package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

type ThoughtRepo interface {
	Create(dbc dbctx.Context, th *domain.Thought) (*domain.Thought, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Thought, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*domain.Thought, error)
	LinkEpisode(dbc dbctx.Context, thoughtID, episodeID uuid.UUID, weight float64) error
}

type thoughtRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThoughtRepo(db *gorm.DB, baseLog *logger.Logger) ThoughtRepo {
	return &thoughtRepo{db: db, log: baseLog.With("repo", "ThoughtRepo")}
}

func (r *thoughtRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *thoughtRepo) Create(dbc dbctx.Context, th *domain.Thought) (*domain.Thought, error) {
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(th).Error; err != nil {
		return nil, err
	}
	return th, nil
}

func (r *thoughtRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Thought, error) {
	var out []*domain.Thought
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *thoughtRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*domain.Thought, error) {
	var out []*domain.Thought
	if err := r.tx(dbc).WithContext(dbc.Ctx).Where("user_id = ?", userID).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *thoughtRepo) LinkEpisode(dbc dbctx.Context, thoughtID, episodeID uuid.UUID, weight float64) error {
	link := domain.EpisodeThought{ThoughtID: thoughtID, EpisodeID: episodeID, Weight: weight}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error
}
