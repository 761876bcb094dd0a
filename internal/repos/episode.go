package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lumenmind/memoryengine/internal/domain"
	"github.com/lumenmind/memoryengine/internal/platform/dbctx"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

type EpisodeRepo interface {
	Create(dbc dbctx.Context, ep *domain.Episode) (*domain.Episode, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Episode, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Episode, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*domain.Episode, error)
	UpdateCentroid(dbc dbctx.Context, id uuid.UUID, centroid domain.Vector) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
	// LockForUpdate re-reads an episode row with SELECT ... FOR UPDATE,
	// serializing concurrent attach jobs that would otherwise race on its
	// member count and centroid.
	LockForUpdate(dbc dbctx.Context, id uuid.UUID) (*domain.Episode, error)
	// WithTx runs fn inside one relational transaction, handing it a
	// dbctx.Context carrying the open *gorm.DB so every repo call fn makes
	// commits or rolls back together.
	WithTx(dbc dbctx.Context, fn func(txDbc dbctx.Context) error) error

	AttachChunk(dbc dbctx.Context, chunkID, episodeID uuid.UUID) error
	DetachAllChunks(dbc dbctx.Context, episodeID uuid.UUID) error
	CountMembers(dbc dbctx.Context, episodeID uuid.UUID) (int64, error)
	MemberIDs(dbc dbctx.Context, episodeID uuid.UUID) ([]uuid.UUID, error)
	// AttachedChunkIDs returns the subset of candidateIDs that already
	// belong to at least one episode, letting the consolidator filter its
	// orphan candidate set down to chunks genuinely unattached (§4.8 step 1).
	AttachedChunkIDs(dbc dbctx.Context, candidateIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

type episodeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEpisodeRepo(db *gorm.DB, baseLog *logger.Logger) EpisodeRepo {
	return &episodeRepo{db: db, log: baseLog.With("repo", "EpisodeRepo")}
}

func (r *episodeRepo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *episodeRepo) Create(dbc dbctx.Context, ep *domain.Episode) (*domain.Episode, error) {
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(ep).Error; err != nil {
		return nil, err
	}
	return ep, nil
}

func (r *episodeRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Episode, error) {
	var ep domain.Episode
	if err := r.tx(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&ep).Error; err != nil {
		return nil, err
	}
	return &ep, nil
}

func (r *episodeRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Episode, error) {
	var out []*domain.Episode
	if len(ids) == 0 {
		return out, nil
	}
	if err := r.tx(dbc).WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *episodeRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*domain.Episode, error) {
	var out []*domain.Episode
	if err := r.tx(dbc).WithContext(dbc.Ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *episodeRepo) UpdateCentroid(dbc dbctx.Context, id uuid.UUID, centroid domain.Vector) error {
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.Episode{}).
		Where("id = ?", id).
		Update("centroid_vec", centroid.Marshal()).Error
}

func (r *episodeRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return r.tx(dbc).WithContext(dbc.Ctx).Where("id = ?", id).Delete(&domain.Episode{}).Error
}

func (r *episodeRepo) LockForUpdate(dbc dbctx.Context, id uuid.UUID) (*domain.Episode, error) {
	var ep domain.Episode
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&ep).Error
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

func (r *episodeRepo) WithTx(dbc dbctx.Context, fn func(txDbc dbctx.Context) error) error {
	return r.tx(dbc).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: dbc.Ctx, Tx: txx})
	})
}

func (r *episodeRepo) AttachChunk(dbc dbctx.Context, chunkID, episodeID uuid.UUID) error {
	link := domain.ChunkEpisode{ChunkID: chunkID, EpisodeID: episodeID}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error
}

func (r *episodeRepo) DetachAllChunks(dbc dbctx.Context, episodeID uuid.UUID) error {
	return r.tx(dbc).WithContext(dbc.Ctx).Where("episode_id = ?", episodeID).Delete(&domain.ChunkEpisode{}).Error
}

func (r *episodeRepo) CountMembers(dbc dbctx.Context, episodeID uuid.UUID) (int64, error) {
	var count int64
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.ChunkEpisode{}).
		Where("episode_id = ?", episodeID).
		Count(&count).Error
	return count, err
}

func (r *episodeRepo) MemberIDs(dbc dbctx.Context, episodeID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.ChunkEpisode{}).
		Where("episode_id = ?", episodeID).
		Pluck("chunk_id", &ids).Error
	return ids, err
}

func (r *episodeRepo) AttachedChunkIDs(dbc dbctx.Context, candidateIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := map[uuid.UUID]bool{}
	if len(candidateIDs) == 0 {
		return out, nil
	}
	var attached []uuid.UUID
	if err := r.tx(dbc).WithContext(dbc.Ctx).
		Model(&domain.ChunkEpisode{}).
		Where("chunk_id IN ?", candidateIDs).
		Pluck("chunk_id", &attached).Error; err != nil {
		return nil, err
	}
	for _, id := range attached {
		out[id] = true
	}
	return out, nil
}
