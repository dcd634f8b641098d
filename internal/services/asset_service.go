package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/repos"
	"github.com/yungbote/dubpilot-backend/internal/types"
)

type AssetService interface {
	CreatePreview(ctx context.Context, projectID uuid.UUID, languageCode, fileKey string) (*types.Asset, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*types.Asset, error)
}

type assetService struct {
	log    *logger.Logger
	assets repos.AssetRepo
}

func NewAssetService(log *logger.Logger, assets repos.AssetRepo) AssetService {
	return &assetService{
		log:    log.With("service", "AssetService"),
		assets: assets,
	}
}

func (s *assetService) CreatePreview(ctx context.Context, projectID uuid.UUID, languageCode, fileKey string) (*types.Asset, error) {
	if fileKey == "" {
		return nil, fmt.Errorf("missing file key for preview asset")
	}
	asset := &types.Asset{
		ProjectID:    projectID,
		LanguageCode: languageCode,
		AssetType:    types.AssetTypePreview,
		FilePath:     fileKey,
	}
	if err := s.assets.Create(ctx, nil, asset); err != nil {
		return nil, fmt.Errorf("failed to create preview asset: %w", err)
	}
	s.log.Info("Preview asset created", "projectID", projectID, "lang", languageCode, "key", fileKey)
	return asset, nil
}

func (s *assetService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*types.Asset, error) {
	return s.assets.ListByProject(ctx, nil, projectID)
}
