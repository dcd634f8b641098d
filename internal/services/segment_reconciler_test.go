package services

import (
	"context"
	"testing"

	"github.com/yungbote/dubpilot-backend/internal/repos"
	"github.com/yungbote/dubpilot-backend/internal/repos/testutil"
	"github.com/yungbote/dubpilot-backend/internal/types"
)

func newTestReconciler(t *testing.T) (SegmentReconciler, repos.ProjectSegmentRepo, repos.SegmentTranslationRepo, repos.AssetRepo, *types.Project) {
	t.Helper()
	gdb := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)

	segmentRepo := repos.NewProjectSegmentRepo(gdb, log)
	translationRepo := repos.NewSegmentTranslationRepo(gdb, log)
	assetRepo := repos.NewAssetRepo(gdb, log)
	assetSvc := NewAssetService(log, assetRepo)

	reconciler := NewSegmentReconciler(log, segmentRepo, translationRepo, nil, assetSvc)
	project := testutil.NewProject(t, gdb, "en")
	return reconciler, segmentRepo, translationRepo, assetRepo, project
}

func TestReconcileNewShapeCreatesSegmentsAndTranslations(t *testing.T) {
	reconciler, segmentRepo, translationRepo, _, project := newTestReconciler(t)
	ctx := context.Background()

	segments := []map[string]any{
		{"segment_index": float64(0), "speaker_tag": "S0", "start": 0.0, "end": 2.0, "source_text": "你好"},
		{"segment_index": float64(1), "speaker_tag": "S1", "start": 2.0, "end": 4.5, "source_text": "再见"},
	}
	created, err := reconciler.Reconcile(ctx, project.ID, segments, "en", []string{"Hello", "Goodbye"})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !created {
		t.Fatalf("Reconcile returned false, want true")
	}

	rows, err := segmentRepo.ListByProject(ctx, nil, project.ID)
	if err != nil {
		t.Fatalf("ListByProject failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("segment rows = %d, want 2", len(rows))
	}
	if rows[0].SpeakerTag != "S0" || rows[0].SourceText != "你好" {
		t.Fatalf("segment 0 = %+v", rows[0])
	}

	translation, err := translationRepo.GetBySegmentAndLanguage(ctx, nil, rows[1].ID, "en")
	if err != nil {
		t.Fatalf("translation lookup failed: %v", err)
	}
	if translation.TargetText != "Goodbye" {
		t.Fatalf("target_text = %q, want Goodbye", translation.TargetText)
	}
}

func TestReconcileLegacyShape(t *testing.T) {
	reconciler, segmentRepo, translationRepo, _, project := newTestReconciler(t)
	ctx := context.Background()

	segments := []map[string]any{
		{"seg_idx": float64(0), "speaker": "S0", "start": 0.0, "end": 2.0, "prompt_text": "Hi", "audio_file": "audio/seg0.wav"},
	}
	created, err := reconciler.Reconcile(ctx, project.ID, segments, "en", nil)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if !created {
		t.Fatalf("Reconcile returned false, want true")
	}

	rows, err := segmentRepo.ListByProject(ctx, nil, project.ID)
	if err != nil {
		t.Fatalf("ListByProject failed: %v", err)
	}
	if len(rows) != 1 || rows[0].SegmentIndex != 0 || rows[0].SpeakerTag != "S0" {
		t.Fatalf("segment rows = %+v", rows)
	}

	translation, err := translationRepo.GetBySegmentAndLanguage(ctx, nil, rows[0].ID, "en")
	if err != nil {
		t.Fatalf("translation lookup failed: %v", err)
	}
	if translation.TargetText != "Hi" {
		t.Fatalf("target_text = %q, want Hi", translation.TargetText)
	}
	if translation.SegmentAudioURL != "audio/seg0.wav" {
		t.Fatalf("segment_audio_url = %q", translation.SegmentAudioURL)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	reconciler, segmentRepo, translationRepo, _, project := newTestReconciler(t)
	ctx := context.Background()

	segments := []map[string]any{
		{"segment_index": float64(0), "speaker_tag": "S0", "start": 0.0, "end": 1.0, "source_text": "一"},
		{"segment_index": float64(1), "speaker_tag": "S0", "start": 1.0, "end": 2.0, "source_text": "二"},
	}
	texts := []string{"one", "two"}

	for i := 0; i < 3; i++ {
		if _, err := reconciler.Reconcile(ctx, project.ID, segments, "en", texts); err != nil {
			t.Fatalf("Reconcile pass %d failed: %v", i, err)
		}
	}

	rows, err := segmentRepo.ListByProject(ctx, nil, project.ID)
	if err != nil {
		t.Fatalf("ListByProject failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("segment rows = %d, want 2", len(rows))
	}
	for _, row := range rows {
		translations, err := translationRepo.ListBySegment(ctx, nil, row.ID)
		if err != nil {
			t.Fatalf("ListBySegment failed: %v", err)
		}
		if len(translations) != 1 {
			t.Fatalf("segment %d has %d translations, want 1", row.SegmentIndex, len(translations))
		}
	}
}

func TestReconcileSecondLanguageReusesSegments(t *testing.T) {
	reconciler, segmentRepo, translationRepo, _, project := newTestReconciler(t)
	ctx := context.Background()

	segments := []map[string]any{
		{"segment_index": float64(0), "speaker_tag": "S0", "start": 0.0, "end": 1.0, "source_text": "好"},
	}
	if _, err := reconciler.Reconcile(ctx, project.ID, segments, "en", []string{"Good"}); err != nil {
		t.Fatalf("Reconcile en failed: %v", err)
	}
	if _, err := reconciler.Reconcile(ctx, project.ID, segments, "es", []string{"Bueno"}); err != nil {
		t.Fatalf("Reconcile es failed: %v", err)
	}

	rows, err := segmentRepo.ListByProject(ctx, nil, project.ID)
	if err != nil {
		t.Fatalf("ListByProject failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("segment rows = %d, want 1", len(rows))
	}
	translations, err := translationRepo.ListBySegment(ctx, nil, rows[0].ID)
	if err != nil {
		t.Fatalf("ListBySegment failed: %v", err)
	}
	if len(translations) != 2 {
		t.Fatalf("translations = %d, want 2", len(translations))
	}
}

func TestCompletePipelineInlineSegments(t *testing.T) {
	reconciler, segmentRepo, _, assetRepo, project := newTestReconciler(t)
	ctx := context.Background()

	cb := ParseStageCallback(map[string]any{
		"stage":       "done",
		"target_lang": "en",
		"segments": []any{
			map[string]any{"seg_idx": float64(0), "speaker": "S0", "start": 0.0, "end": 2.0, "prompt_text": "Hi", "audio_file": "k"},
		},
	})

	reconciler.CompletePipeline(ctx, project.ID, cb, "results/final_en.mp4", "")

	rows, err := segmentRepo.ListByProject(ctx, nil, project.ID)
	if err != nil {
		t.Fatalf("ListByProject failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("segment rows = %d, want 1", len(rows))
	}

	assets, err := assetRepo.ListByProject(ctx, nil, project.ID)
	if err != nil {
		t.Fatalf("asset listing failed: %v", err)
	}
	if len(assets) != 1 {
		t.Fatalf("assets = %d, want 1", len(assets))
	}
	if assets[0].AssetType != types.AssetTypePreview || assets[0].FilePath != "results/final_en.mp4" || assets[0].LanguageCode != "en" {
		t.Fatalf("asset = %+v", assets[0])
	}
}

func TestNormalizeSegmentsPositionalFallback(t *testing.T) {
	records := normalizeSegments([]map[string]any{
		{"speaker": "S0", "prompt_text": "a"},
		{"speaker": "S1", "prompt_text": "b"},
	}, nil)
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Index != 0 || records[1].Index != 1 {
		t.Fatalf("indexes = %d, %d; want positional 0, 1", records[0].Index, records[1].Index)
	}
	if records[1].TranslatedText != "b" {
		t.Fatalf("translated text fallback = %q, want b", records[1].TranslatedText)
	}
}
