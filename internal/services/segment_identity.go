package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/repos"
)

// SegmentIdentityResolver turns heterogeneous callback metadata into one
// canonical segment id. Resolution failure is non-fatal: callers log and skip
// the per-segment update.
type SegmentIdentityResolver interface {
	Resolve(ctx context.Context, projectID uuid.UUID, cb *StageCallback) (uuid.UUID, bool)
}

type segmentIdentityResolver struct {
	log      *logger.Logger
	segments repos.ProjectSegmentRepo
}

func NewSegmentIdentityResolver(log *logger.Logger, segments repos.ProjectSegmentRepo) SegmentIdentityResolver {
	return &segmentIdentityResolver{
		log:      log.With("service", "SegmentIdentityResolver"),
		segments: segments,
	}
}

// Resolve prefers an explicit metadata segment_id; otherwise it falls back to
// the first inline segment's index and looks the row up by
// (project_id, segment_index).
func (r *segmentIdentityResolver) Resolve(ctx context.Context, projectID uuid.UUID, cb *StageCallback) (uuid.UUID, bool) {
	if cb == nil {
		return uuid.Nil, false
	}

	if cb.SegmentID != "" {
		id, err := uuid.Parse(cb.SegmentID)
		if err != nil {
			r.log.Warn("Unparseable segment_id in callback metadata", "projectID", projectID, "segmentID", cb.SegmentID)
			return uuid.Nil, false
		}
		return id, true
	}

	if len(cb.Segments) == 0 {
		return uuid.Nil, false
	}
	index, ok := declaredSegmentIndex(cb.Segments[0])
	if !ok {
		return uuid.Nil, false
	}

	segment, err := r.segments.GetByProjectAndIndex(ctx, nil, projectID, index)
	if err != nil {
		r.log.Warn("Segment lookup by index failed", "projectID", projectID, "segmentIndex", index, "error", err)
		return uuid.Nil, false
	}
	return segment.ID, true
}

// declaredSegmentIndex reads an explicitly declared index out of either
// payload shape: index/segment_index (new), seg_idx or an integer segment_id
// (legacy). No positional fallback here; an undeclared index is unresolvable.
func declaredSegmentIndex(raw map[string]any) (int, bool) {
	if idx := intField(raw, "index", "segment_index", "seg_idx", "segment_id"); idx != nil {
		return *idx, true
	}
	return 0, false
}
