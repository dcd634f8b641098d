package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/dubpilot-backend/internal/logger"
)

// ErrFetch wraps any failure to read a remote object. Callers on the callback
// path degrade gracefully (inline fallback or skipped probe) instead of
// propagating it.
var ErrFetch = errors.New("bucket fetch failed")

// BucketService is the media-store collaborator: worker-written metadata
// documents and synthesized audio objects live in one bucket.
type BucketService interface {
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	FetchBytes(ctx context.Context, key string) ([]byte, error)
	PublicURL(key string) string
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
	cdnDomain     string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	serviceLog := log.With("service", "BucketService")

	bucketName := os.Getenv("MEDIA_GCS_BUCKET")
	if bucketName == "" {
		return nil, fmt.Errorf("missing env var MEDIA_GCS_BUCKET")
	}
	cdnDomain := os.Getenv("MEDIA_CDN_DOMAIN")

	ctx := context.Background()
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if creds := os.Getenv("GCP_CREDENTIALS_FILE"); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	stClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		bucketName:    bucketName,
		cdnDomain:     cdnDomain,
	}, nil
}

func (bs *bucketService) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrFetch)
	}
	reader, err := bs.storageClient.Bucket(bs.bucketName).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetch, key, err)
	}
	return reader, nil
}

func (bs *bucketService) FetchBytes(ctx context.Context, key string) ([]byte, error) {
	reader, err := bs.DownloadFile(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrFetch, key, err)
	}
	return data, nil
}

func (bs *bucketService) PublicURL(key string) string {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return ""
	}
	if bs.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", bs.cdnDomain, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.bucketName, key)
}
