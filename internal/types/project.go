package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Project struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID uuid.UUID `gorm:"type:uuid;column:owner_id;not null;index" json:"owner_id"`
	Title   string    `gorm:"column:title;not null" json:"title"`
	// uploading | uploaded | <last reported stage> | done | failed
	Status     string `gorm:"column:status;not null;index" json:"status"`
	SourceType string `gorm:"column:source_type;not null" json:"source_type"` // file | youtube

	VideoSource           string `gorm:"column:video_source" json:"video_source,omitempty"`
	AudioSource           string `gorm:"column:audio_source" json:"audio_source,omitempty"`
	VocalSource           string `gorm:"column:vocal_source" json:"vocal_source,omitempty"`
	BackgroundAudioSource string `gorm:"column:background_audio_source" json:"background_audio_source,omitempty"`

	SourceLanguage  string         `gorm:"column:source_language" json:"source_language,omitempty"`
	TargetLanguages datatypes.JSON `gorm:"column:target_languages;type:jsonb" json:"target_languages,omitempty"`

	// {target_lang: {speaker: {ref_wav_key, prompt_text}}}
	DefaultSpeakerVoices datatypes.JSON `gorm:"column:default_speaker_voices;type:jsonb" json:"default_speaker_voices,omitempty"`
	VoiceConfig          datatypes.JSON `gorm:"column:voice_config;type:jsonb" json:"voice_config,omitempty"`

	SpeakerCount        *int   `gorm:"column:speaker_count" json:"speaker_count,omitempty"`
	DurationSeconds     *int   `gorm:"column:duration_seconds" json:"duration_seconds,omitempty"`
	SegmentAssetsPrefix string `gorm:"column:segment_assets_prefix" json:"segment_assets_prefix,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Project) TableName() string { return "project" }

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
