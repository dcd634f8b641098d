package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/types"
)

type SegmentTranslationRepo interface {
	// Upsert is keyed on (segment_id, language_code) and is last-write-wins;
	// replaying identical input leaves exactly one row.
	Upsert(ctx context.Context, tx *gorm.DB, translation *types.SegmentTranslation) error
	GetBySegmentAndLanguage(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID, languageCode string) (*types.SegmentTranslation, error)
	ListBySegment(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) ([]*types.SegmentTranslation, error)
	UpdateAudioURL(ctx context.Context, tx *gorm.DB, id uuid.UUID, audioURL string) error
}

type segmentTranslationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSegmentTranslationRepo(db *gorm.DB, baseLog *logger.Logger) SegmentTranslationRepo {
	return &segmentTranslationRepo{db: db, log: baseLog.With("repo", "SegmentTranslationRepo")}
}

func (r *segmentTranslationRepo) Upsert(ctx context.Context, tx *gorm.DB, translation *types.SegmentTranslation) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "segment_id"}, {Name: "language_code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"target_text", "segment_audio_url", "updated_at",
			}),
		}).
		Create(translation).Error
}

func (r *segmentTranslationRepo) GetBySegmentAndLanguage(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID, languageCode string) (*types.SegmentTranslation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var translation types.SegmentTranslation
	err := transaction.WithContext(ctx).
		Where("segment_id = ? AND language_code = ?", segmentID, languageCode).
		Limit(1).
		Find(&translation).Error
	if err != nil {
		return nil, err
	}
	if translation.ID == uuid.Nil {
		return nil, ErrNotFound
	}
	return &translation, nil
}

func (r *segmentTranslationRepo) ListBySegment(ctx context.Context, tx *gorm.DB, segmentID uuid.UUID) ([]*types.SegmentTranslation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SegmentTranslation
	err := transaction.WithContext(ctx).
		Where("segment_id = ?", segmentID).
		Order("language_code ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *segmentTranslationRepo) UpdateAudioURL(ctx context.Context, tx *gorm.DB, id uuid.UUID, audioURL string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.SegmentTranslation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"segment_audio_url": audioURL,
			"updated_at":        time.Now().UTC(),
		}).Error
}
