package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProjectSegment is a time-bounded unit of source content. segment_index is the
// join key shared by all target languages of a project: whichever language's
// worker reports first creates the rows, later languages only attach translations.
type ProjectSegment struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID    uuid.UUID `gorm:"type:uuid;column:project_id;not null;uniqueIndex:idx_segment_project_index,priority:1" json:"project_id"`
	SegmentIndex int       `gorm:"column:segment_index;not null;uniqueIndex:idx_segment_project_index,priority:2" json:"segment_index"`
	SpeakerTag   string    `gorm:"column:speaker_tag" json:"speaker_tag"`
	Start        float64   `gorm:"column:start;not null" json:"start"`
	End          float64   `gorm:"column:end;not null" json:"end"`
	SourceText   string    `gorm:"column:source_text" json:"source_text"`
	IsVerified   bool      `gorm:"column:is_verified;not null;default:false" json:"is_verified"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (ProjectSegment) TableName() string { return "project_segment" }

func (s *ProjectSegment) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
