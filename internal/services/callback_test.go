package services

import "testing"

func TestParseStageCallback(t *testing.T) {
	cb := ParseStageCallback(map[string]any{
		"stage":         "asr_completed",
		"target_lang":   "en",
		"audio_key":     "a.wav",
		"speaker_count": float64(2),
		"duration":      "12.5",
		"segments": []any{
			map[string]any{"seg_idx": float64(0), "prompt_text": "hi"},
			"garbage entry",
		},
		"translations": []any{"Hello"},
	})

	if cb.Stage != "asr_completed" || cb.TargetLang != "en" || cb.AudioKey != "a.wav" {
		t.Fatalf("parsed = %+v", cb)
	}
	if cb.SpeakerCount == nil || *cb.SpeakerCount != 2 {
		t.Fatalf("speaker_count = %v", cb.SpeakerCount)
	}
	if cb.Duration == nil || *cb.Duration != 12.5 {
		t.Fatalf("duration = %v", cb.Duration)
	}
	if len(cb.Segments) != 1 {
		t.Fatalf("segments = %d, want 1 (non-map entries dropped)", len(cb.Segments))
	}
	if len(cb.TranslatedTexts) != 1 || cb.TranslatedTexts[0] != "Hello" {
		t.Fatalf("translations = %v", cb.TranslatedTexts)
	}
}

func TestParseStageCallbackLanguageFallback(t *testing.T) {
	cb := ParseStageCallback(map[string]any{"language_code": "es"})
	if cb.Language() != "es" {
		t.Fatalf("language = %q, want es", cb.Language())
	}
	cb = ParseStageCallback(map[string]any{"target_lang": "en", "language_code": "es"})
	if cb.Language() != "en" {
		t.Fatalf("language = %q, want en (target_lang wins)", cb.Language())
	}
	if ParseStageCallback(nil).Language() != "" {
		t.Fatalf("nil metadata should have no language")
	}
}
