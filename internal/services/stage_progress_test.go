package services

import (
	"testing"

	"github.com/yungbote/dubpilot-backend/internal/types"
)

func TestStageProgressTable(t *testing.T) {
	cases := []struct {
		stage    string
		status   types.TargetStatus
		progress int
	}{
		{"starting", types.TargetStatusProcessing, 1},
		{"asr_started", types.TargetStatusProcessing, 10},
		{"asr_completed", types.TargetStatusProcessing, 20},
		{"translation_started", types.TargetStatusProcessing, 21},
		{"translation_completed", types.TargetStatusProcessing, 35},
		{"tts_started", types.TargetStatusProcessing, 36},
		{"tts_completed", types.TargetStatusCompleted, 70},
		{"segment_tts_completed", types.TargetStatusCompleted, 70},
		{"mux_started", types.TargetStatusProcessing, 71},
		{"done", types.TargetStatusCompleted, 100},
		{"failed", types.TargetStatusFailed, 0},
	}
	for _, tc := range cases {
		state, ok := StageProgressFor(tc.stage)
		if !ok {
			t.Fatalf("stage %q not in table", tc.stage)
		}
		if state.Status != tc.status || state.Progress != tc.progress {
			t.Fatalf("stage %q = (%s, %d), want (%s, %d)", tc.stage, state.Status, state.Progress, tc.status, tc.progress)
		}
	}
}

func TestUnknownStageNotMapped(t *testing.T) {
	for _, stage := range []string{"", "warming_up", "downloaded", "stt_completed"} {
		if _, ok := StageProgressFor(stage); ok {
			t.Fatalf("stage %q unexpectedly mapped", stage)
		}
	}
}

func TestLanguageIndependentStages(t *testing.T) {
	for _, stage := range []string{"downloaded", "stt_completed"} {
		if !StageIsLanguageIndependent(stage) {
			t.Fatalf("stage %q should be language independent", stage)
		}
	}
	if StageIsLanguageIndependent("asr_completed") {
		t.Fatalf("asr_completed should require a language")
	}
}
