package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/dubpilot-backend/internal/types"
)

// NewProject inserts a project with the given target languages.
func NewProject(t *testing.T, gdb *gorm.DB, targetLanguages ...string) *types.Project {
	t.Helper()

	var langs datatypes.JSON
	if len(targetLanguages) > 0 {
		raw, err := json.Marshal(targetLanguages)
		if err != nil {
			t.Fatalf("failed to encode target languages: %v", err)
		}
		langs = datatypes.JSON(raw)
	}

	project := &types.Project{
		OwnerID:         uuid.New(),
		Title:           "fixture project",
		Status:          "uploaded",
		SourceType:      "file",
		VideoSource:     "uploads/source.mp4",
		SourceLanguage:  "zh",
		TargetLanguages: langs,
	}
	if err := gdb.WithContext(context.Background()).Create(project).Error; err != nil {
		t.Fatalf("failed to create fixture project: %v", err)
	}
	return project
}

// NewTarget inserts one pending target row.
func NewTarget(t *testing.T, gdb *gorm.DB, projectID uuid.UUID, lang string) *types.ProjectTarget {
	t.Helper()
	target := &types.ProjectTarget{
		ProjectID:    projectID,
		LanguageCode: lang,
		Status:       types.TargetStatusPending,
		Progress:     0,
	}
	if err := gdb.WithContext(context.Background()).Create(target).Error; err != nil {
		t.Fatalf("failed to create fixture target: %v", err)
	}
	return target
}

// NewJob inserts a queued full-pipeline job.
func NewJob(t *testing.T, gdb *gorm.DB, projectID uuid.UUID, targetLang string) *types.Job {
	t.Helper()
	job := &types.Job{
		ProjectID:   projectID,
		Task:        types.JobTaskFullPipeline,
		Status:      types.JobStatusQueued,
		CallbackURL: "http://localhost:8080/api/jobs/unset/status",
		SourceLang:  "zh",
		TargetLang:  targetLang,
	}
	if err := gdb.WithContext(context.Background()).Create(job).Error; err != nil {
		t.Fatalf("failed to create fixture job: %v", err)
	}
	return job
}

// NewSegment inserts one segment row.
func NewSegment(t *testing.T, gdb *gorm.DB, projectID uuid.UUID, index int, speakerTag, sourceText string) *types.ProjectSegment {
	t.Helper()
	segment := &types.ProjectSegment{
		ProjectID:    projectID,
		SegmentIndex: index,
		SpeakerTag:   speakerTag,
		Start:        float64(index),
		End:          float64(index) + 1.5,
		SourceText:   sourceText,
	}
	if err := gdb.WithContext(context.Background()).Create(segment).Error; err != nil {
		t.Fatalf("failed to create fixture segment: %v", err)
	}
	return segment
}
