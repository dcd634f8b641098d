package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/types"
)

type JobStatusUpdate struct {
	Status    types.JobStatus
	ResultKey *string
	Error     *string
	Metadata  datatypes.JSON
	Message   string
}

type JobRepo interface {
	Create(ctx context.Context, tx *gorm.DB, job *types.Job) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Job, error)
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Job, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, upd JobStatusUpdate) (*types.Job, error)
	LatestByProjectAndTarget(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, targetLang string, task types.JobTask) (*types.Job, error)
}

type jobRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJobRepo(db *gorm.DB, baseLog *logger.Logger) JobRepo {
	return &jobRepo{db: db, log: baseLog.With("repo", "JobRepo")}
}

func (r *jobRepo) Create(ctx context.Context, tx *gorm.DB, job *types.Job) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(job).Error
}

func (r *jobRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Job, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var job types.Job
	err := transaction.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.Job, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Job
	err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus is the one mutation path for jobs: status/result/error plus one
// appended history entry. It must succeed before any callback side effects run.
func (r *jobRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, upd JobStatusUpdate) (*types.Job, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	job, err := r.GetByID(ctx, transaction, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	job.Status = upd.Status
	if upd.ResultKey != nil {
		job.ResultKey = *upd.ResultKey
	}
	if upd.Error != nil {
		job.Error = *upd.Error
	}
	if len(upd.Metadata) > 0 {
		job.Metadata = upd.Metadata
	}
	job.AppendHistory(upd.Status, now, upd.Message)
	job.UpdatedAt = now
	if err := transaction.WithContext(ctx).Save(job).Error; err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) LatestByProjectAndTarget(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, targetLang string, task types.JobTask) (*types.Job, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var job types.Job
	err := transaction.WithContext(ctx).
		Where("project_id = ? AND target_lang = ? AND task = ?", projectID, targetLang, task).
		Order("created_at DESC").
		Limit(1).
		Find(&job).Error
	if err != nil {
		return nil, err
	}
	if job.ID == uuid.Nil {
		return nil, ErrNotFound
	}
	return &job, nil
}
