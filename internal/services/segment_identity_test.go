package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/dubpilot-backend/internal/repos"
	"github.com/yungbote/dubpilot-backend/internal/repos/testutil"
)

func TestResolveExplicitAndIndexAgree(t *testing.T) {
	gdb := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	segmentRepo := repos.NewProjectSegmentRepo(gdb, log)
	resolver := NewSegmentIdentityResolver(log, segmentRepo)

	project := testutil.NewProject(t, gdb, "en")
	segment := testutil.NewSegment(t, gdb, project.ID, 3, "S0", "text")
	ctx := context.Background()

	byID, ok := resolver.Resolve(ctx, project.ID, ParseStageCallback(map[string]any{
		"segment_id": segment.ID.String(),
	}))
	if !ok {
		t.Fatalf("explicit id resolution failed")
	}

	byIndex, ok := resolver.Resolve(ctx, project.ID, ParseStageCallback(map[string]any{
		"segments": []any{map[string]any{"index": float64(3)}},
	}))
	if !ok {
		t.Fatalf("index resolution failed")
	}

	if byID != byIndex || byID != segment.ID {
		t.Fatalf("byID=%s byIndex=%s want %s", byID, byIndex, segment.ID)
	}
}

func TestResolveFailuresAreSoft(t *testing.T) {
	gdb := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	segmentRepo := repos.NewProjectSegmentRepo(gdb, log)
	resolver := NewSegmentIdentityResolver(log, segmentRepo)

	project := testutil.NewProject(t, gdb, "en")
	ctx := context.Background()

	cases := []map[string]any{
		nil,
		{},
		{"segment_id": "not-a-uuid"},
		{"segments": []any{map[string]any{"speaker": "S0"}}},
		{"segments": []any{map[string]any{"index": float64(99)}}},
	}
	for i, metadata := range cases {
		if id, ok := resolver.Resolve(ctx, project.ID, ParseStageCallback(metadata)); ok {
			t.Fatalf("case %d resolved unexpectedly to %s", i, id)
		}
	}

	if _, ok := resolver.Resolve(ctx, uuid.New(), nil); ok {
		t.Fatalf("nil callback resolved unexpectedly")
	}
}
