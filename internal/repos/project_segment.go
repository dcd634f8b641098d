package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/types"
)

type ProjectSegmentRepo interface {
	CreateMany(ctx context.Context, tx *gorm.DB, segments []*types.ProjectSegment) error
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectSegment, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ProjectSegment, error)
	GetByProjectAndIndex(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, segmentIndex int) (*types.ProjectSegment, error)
}

type projectSegmentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectSegmentRepo(db *gorm.DB, baseLog *logger.Logger) ProjectSegmentRepo {
	return &projectSegmentRepo{db: db, log: baseLog.With("repo", "ProjectSegmentRepo")}
}

func (r *projectSegmentRepo) CreateMany(ctx context.Context, tx *gorm.DB, segments []*types.ProjectSegment) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(segments) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&segments).Error
}

func (r *projectSegmentRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectSegment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProjectSegment
	err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("segment_index ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *projectSegmentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ProjectSegment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var segment types.ProjectSegment
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&segment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &segment, nil
}

func (r *projectSegmentRepo) GetByProjectAndIndex(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, segmentIndex int) (*types.ProjectSegment, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var segment types.ProjectSegment
	err := transaction.WithContext(ctx).
		Where("project_id = ? AND segment_index = ?", projectID, segmentIndex).
		Limit(1).
		Find(&segment).Error
	if err != nil {
		return nil, err
	}
	if segment.ID == uuid.Nil {
		return nil, ErrNotFound
	}
	return &segment, nil
}
