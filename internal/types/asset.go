package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssetType string

const (
	AssetTypePreview  AssetType = "preview"
	AssetTypeOriginal AssetType = "original"
)

// Asset is a rendered artifact of a project run, e.g. the muxed preview video
// for one target language.
type Asset struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID    uuid.UUID `gorm:"type:uuid;column:project_id;not null;index" json:"project_id"`
	LanguageCode string    `gorm:"column:language_code;not null" json:"language_code"`
	AssetType    AssetType `gorm:"column:asset_type;not null" json:"asset_type"`
	FilePath     string    `gorm:"column:file_path;not null" json:"file_path"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (Asset) TableName() string { return "asset" }

func (a *Asset) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
