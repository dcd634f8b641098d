package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/repos"
	"github.com/yungbote/dubpilot-backend/internal/types"
)

// JobService owns job record lifecycle: creation with a minted callback URL,
// reads for the API surface, and the failed-mark used by the dispatch path.
type JobService interface {
	CreateJob(ctx context.Context, projectID uuid.UUID, task types.JobTask, sourceLang, targetLang, inputKey string, payload map[string]any) (*types.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*types.Job, error)
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

type jobService struct {
	log             *logger.Logger
	jobs            repos.JobRepo
	callbackBaseURL string
}

func NewJobService(log *logger.Logger, jobs repos.JobRepo, callbackBaseURL string) JobService {
	return &jobService{
		log:             log.With("service", "JobService"),
		jobs:            jobs,
		callbackBaseURL: callbackBaseURL,
	}
}

func (s *jobService) CreateJob(ctx context.Context, projectID uuid.UUID, task types.JobTask, sourceLang, targetLang, inputKey string, payload map[string]any) (*types.Job, error) {
	id := uuid.New()

	var taskPayload datatypes.JSON
	if len(payload) > 0 {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode task payload: %w", err)
		}
		taskPayload = datatypes.JSON(raw)
	}

	job := &types.Job{
		ID:          id,
		ProjectID:   projectID,
		Task:        task,
		Status:      types.JobStatusQueued,
		InputKey:    inputKey,
		CallbackURL: fmt.Sprintf("%s/api/jobs/%s/status", s.callbackBaseURL, id),
		SourceLang:  sourceLang,
		TargetLang:  targetLang,
		TaskPayload: taskPayload,
	}
	if err := s.jobs.Create(ctx, nil, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	s.log.Info("Job created", "jobID", job.ID, "projectID", projectID, "task", task, "targetLang", targetLang)
	return job, nil
}

func (s *jobService) GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error) {
	return s.jobs.GetByID(ctx, nil, id)
}

func (s *jobService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*types.Job, error) {
	return s.jobs.ListByProject(ctx, nil, projectID)
}

func (s *jobService) MarkFailed(ctx context.Context, id uuid.UUID, message string) error {
	_, err := s.jobs.UpdateStatus(ctx, nil, id, repos.JobStatusUpdate{
		Status:  types.JobStatusFailed,
		Error:   &message,
		Message: message,
	})
	return err
}
