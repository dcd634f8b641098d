package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/dubpilot-backend/internal/clients/gcs"
	"github.com/yungbote/dubpilot-backend/internal/logger"
)

// AudioProbe measures the duration of a synthesized audio object. Probe
// failures are soft; callers publish their event without a duration.
type AudioProbe interface {
	DurationFromKey(ctx context.Context, key string) (float64, error)
}

type ffprobeAudioProbe struct {
	log    *logger.Logger
	bucket gcs.BucketService
}

func NewAudioProbe(log *logger.Logger, bucket gcs.BucketService) AudioProbe {
	return &ffprobeAudioProbe{
		log:    log.With("service", "AudioProbe"),
		bucket: bucket,
	}
}

// DurationFromKey downloads the object to a temp file and asks ffprobe for the
// container duration.
func (p *ffprobeAudioProbe) DurationFromKey(ctx context.Context, key string) (float64, error) {
	if key == "" {
		return 0, fmt.Errorf("missing audio key")
	}
	if p.bucket == nil {
		return 0, fmt.Errorf("no media bucket configured")
	}

	reader, err := p.bucket.DownloadFile(ctx, key)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	tmp, err := os.CreateTemp("", "probe-*.wav")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to spool audio object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		tmpPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w", key, err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable ffprobe output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return duration, nil
}
