package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SegmentTranslation is the per-language rendering of one segment: translated
// text plus the synthesized audio key once TTS has produced one.
type SegmentTranslation struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SegmentID       uuid.UUID `gorm:"type:uuid;column:segment_id;not null;uniqueIndex:idx_translation_segment_lang,priority:1" json:"segment_id"`
	LanguageCode    string    `gorm:"column:language_code;not null;uniqueIndex:idx_translation_segment_lang,priority:2" json:"language_code"`
	TargetText      string    `gorm:"column:target_text" json:"target_text"`
	SegmentAudioURL string    `gorm:"column:segment_audio_url" json:"segment_audio_url,omitempty"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time `gorm:"not null" json:"updated_at"`
}

func (SegmentTranslation) TableName() string { return "segment_translation" }

func (t *SegmentTranslation) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
