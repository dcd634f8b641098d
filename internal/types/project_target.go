package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TargetStatus string

const (
	TargetStatusPending    TargetStatus = "pending"
	TargetStatusProcessing TargetStatus = "processing"
	TargetStatusCompleted  TargetStatus = "completed"
	TargetStatusFailed     TargetStatus = "failed"
)

// ProjectTarget tracks the per-language progress of one project run.
type ProjectTarget struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID    uuid.UUID    `gorm:"type:uuid;column:project_id;not null;uniqueIndex:idx_target_project_lang,priority:1" json:"project_id"`
	LanguageCode string       `gorm:"column:language_code;not null;uniqueIndex:idx_target_project_lang,priority:2" json:"language_code"`
	Status       TargetStatus `gorm:"column:status;not null" json:"status"`
	Progress     int          `gorm:"column:progress;not null" json:"progress"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (ProjectTarget) TableName() string { return "project_target" }

func (t *ProjectTarget) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TargetStatusPending
	}
	return nil
}
