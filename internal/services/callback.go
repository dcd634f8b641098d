package services

import (
	"strconv"
	"strings"
)

// StageCallback is the decoded worker metadata document. Workers send free-form
// JSON; decoding happens once here so every consumer downstream works with one
// typed view instead of ad hoc key reads.
type StageCallback struct {
	Stage        string
	TargetLang   string
	LanguageCode string
	ResultKey    string
	MetadataKey  string
	Error        string

	// asr_completed object keys
	AudioKey      string
	VocalsKey     string
	BackgroundKey string
	SpeakerCount  *int
	Duration      *float64

	// segment-level stages
	SegmentID string
	AudioFile string

	SegmentAssetsPrefix string

	// voice map fragments, keyed by speaker tag
	SpeakerVoices map[string]any
	SpeakerRefs   map[string]any

	Segments        []map[string]any
	TranslatedTexts []string

	Raw map[string]any
}

// ParseStageCallback decodes the metadata map of one worker callback. Absent
// keys leave zero values; nothing here fails.
func ParseStageCallback(raw map[string]any) *StageCallback {
	cb := &StageCallback{Raw: raw}
	if raw == nil {
		return cb
	}

	cb.Stage = stringField(raw, "stage")
	cb.TargetLang = stringField(raw, "target_lang", "targetLang")
	cb.LanguageCode = stringField(raw, "language_code", "languageCode")
	cb.ResultKey = stringField(raw, "result_key")
	cb.MetadataKey = stringField(raw, "metadata_key")
	cb.Error = stringField(raw, "error", "message")

	cb.AudioKey = stringField(raw, "audio_key")
	cb.VocalsKey = stringField(raw, "vocals_key")
	cb.BackgroundKey = stringField(raw, "background_key")
	cb.SpeakerCount = intField(raw, "speaker_count")
	cb.Duration = floatField(raw, "duration", "duration_seconds")

	cb.SegmentID = stringField(raw, "segment_id")
	cb.AudioFile = stringField(raw, "audio_file", "audio_s3_key")
	cb.SegmentAssetsPrefix = stringField(raw, "segment_assets_prefix")

	cb.SpeakerVoices = mapField(raw, "speaker_voices")
	cb.SpeakerRefs = mapField(raw, "speaker_refs")

	cb.Segments = sliceOfMaps(raw, "segments")
	cb.TranslatedTexts = stringSlice(raw, "translations", "translated_texts")

	return cb
}

// SegmentAudioKey finds the synthesized audio object key for a segment-level
// callback: top-level audio_file/audio_s3_key first, else the first inline
// segment's audio_key/audio_file.
func (cb *StageCallback) SegmentAudioKey() string {
	if cb.AudioFile != "" {
		return cb.AudioFile
	}
	if len(cb.Segments) > 0 {
		if key := stringField(cb.Segments[0], "audio_key", "audio_file"); key != "" {
			return key
		}
	}
	return ""
}

// Language picks the callback's language with the documented fallback chain:
// target_lang, then language_code.
func (cb *StageCallback) Language() string {
	if cb.TargetLang != "" {
		return cb.TargetLang
	}
	return cb.LanguageCode
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			switch s := v.(type) {
			case string:
				if trimmed := strings.TrimSpace(s); trimmed != "" {
					return trimmed
				}
			case float64:
				return strconv.FormatFloat(s, 'f', -1, 64)
			}
		}
	}
	return ""
}

func intField(m map[string]any, keys ...string) *int {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			switch n := v.(type) {
			case float64:
				out := int(n)
				return &out
			case int:
				out := n
				return &out
			case string:
				if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
					return &parsed
				}
			}
		}
	}
	return nil
}

func floatField(m map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			switch n := v.(type) {
			case float64:
				out := n
				return &out
			case int:
				out := float64(n)
				return &out
			case string:
				if parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
					return &parsed
				}
			}
		}
	}
	return nil
}

func mapField(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := m[k].(map[string]any); ok && len(v) > 0 {
			return v
		}
	}
	return nil
}

func sliceOfMaps(m map[string]any, key string) []map[string]any {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if entry, ok := item.(map[string]any); ok {
			out = append(out, entry)
		}
	}
	return out
}

func stringSlice(m map[string]any, keys ...string) []string {
	for _, k := range keys {
		raw, ok := m[k].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, "")
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}
