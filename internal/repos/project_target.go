package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/types"
)

type ProjectTargetRepo interface {
	Create(ctx context.Context, tx *gorm.DB, targets []*types.ProjectTarget) error
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectTarget, error)
	GetByProjectAndLanguage(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, languageCode string) (*types.ProjectTarget, error)
	UpdateByProjectAndLanguage(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, languageCode string, status types.TargetStatus, progress int) error
}

type projectTargetRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectTargetRepo(db *gorm.DB, baseLog *logger.Logger) ProjectTargetRepo {
	return &projectTargetRepo{db: db, log: baseLog.With("repo", "ProjectTargetRepo")}
}

func (r *projectTargetRepo) Create(ctx context.Context, tx *gorm.DB, targets []*types.ProjectTarget) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(targets) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).Create(&targets).Error
}

func (r *projectTargetRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectTarget, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ProjectTarget
	err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *projectTargetRepo) GetByProjectAndLanguage(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, languageCode string) (*types.ProjectTarget, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var target types.ProjectTarget
	err := transaction.WithContext(ctx).
		Where("project_id = ? AND language_code = ?", projectID, languageCode).
		Limit(1).
		Find(&target).Error
	if err != nil {
		return nil, err
	}
	if target.ID == uuid.Nil {
		return nil, ErrNotFound
	}
	return &target, nil
}

func (r *projectTargetRepo) UpdateByProjectAndLanguage(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, languageCode string, status types.TargetStatus, progress int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.ProjectTarget{}).
		Where("project_id = ? AND language_code = ?", projectID, languageCode).
		Updates(map[string]interface{}{
			"status":     status,
			"progress":   progress,
			"updated_at": time.Now().UTC(),
		}).Error
}
