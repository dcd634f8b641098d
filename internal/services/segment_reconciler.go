package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/yungbote/dubpilot-backend/internal/clients/gcs"
	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/repos"
	"github.com/yungbote/dubpilot-backend/internal/types"
)

// SegmentRecord is the canonical per-segment view after shape detection. All
// reconciliation logic runs on this, never on raw callback maps.
type SegmentRecord struct {
	Index          int
	SpeakerTag     string
	Start          float64
	End            float64
	SourceText     string
	TranslatedText string
	AudioKey       string
}

// SegmentReconciler merges worker-reported segments and translations into the
// stable record set. Reconcile is idempotent; replaying identical input leaves
// the row set unchanged.
type SegmentReconciler interface {
	Reconcile(ctx context.Context, projectID uuid.UUID, segments []map[string]any, targetLang string, translatedTexts []string) (bool, error)
	CompletePipeline(ctx context.Context, projectID uuid.UUID, cb *StageCallback, resultKey, defaultTargetLang string)
}

type segmentReconciler struct {
	log          *logger.Logger
	segments     repos.ProjectSegmentRepo
	translations repos.SegmentTranslationRepo
	bucket       gcs.BucketService
	assets       AssetService
}

func NewSegmentReconciler(
	log *logger.Logger,
	segments repos.ProjectSegmentRepo,
	translations repos.SegmentTranslationRepo,
	bucket gcs.BucketService,
	assets AssetService,
) SegmentReconciler {
	return &segmentReconciler{
		log:          log.With("service", "SegmentReconciler"),
		segments:     segments,
		translations: translations,
		bucket:       bucket,
		assets:       assets,
	}
}

// normalizeSegments detects each element's shape and produces canonical
// records. New-shape elements carry segment_index/speaker_tag/source_text;
// legacy elements carry speaker/prompt_text plus seg_idx or an integer
// segment_id, with the positional index as final fallback. Translated text
// prefers the batch translation result, then the legacy prompt_text.
func normalizeSegments(raw []map[string]any, translatedTexts []string) []SegmentRecord {
	out := make([]SegmentRecord, 0, len(raw))
	for i, element := range raw {
		record := SegmentRecord{Index: i}
		if idx, ok := declaredSegmentIndex(element); ok {
			record.Index = idx
		}

		record.SpeakerTag = stringField(element, "speaker_tag", "speaker")
		record.SourceText = stringField(element, "source_text", "text")
		record.AudioKey = stringField(element, "audio_file", "audio_s3_key")

		if start := floatField(element, "start", "s"); start != nil {
			record.Start = *start
		}
		if end := floatField(element, "end", "e"); end != nil {
			record.End = *end
		}
		if record.End < record.Start {
			record.End = record.Start
		}

		if i < len(translatedTexts) && translatedTexts[i] != "" {
			record.TranslatedText = translatedTexts[i]
		} else {
			record.TranslatedText = stringField(element, "prompt_text")
		}

		out = append(out, record)
	}
	return out
}

// Reconcile creates the project's segment rows on first contact (whichever
// language's worker reports first wins) and upserts one translation per
// (segment, language). Returns true when any segment existed or was created,
// which gates the downstream completion event.
func (s *segmentReconciler) Reconcile(ctx context.Context, projectID uuid.UUID, segments []map[string]any, targetLang string, translatedTexts []string) (bool, error) {
	records := normalizeSegments(segments, translatedTexts)
	if len(records) == 0 {
		return false, nil
	}

	existing, err := s.segments.ListByProject(ctx, nil, projectID)
	if err != nil {
		return false, err
	}

	indexToID := make(map[int]uuid.UUID, len(records))
	if len(existing) == 0 {
		rows := make([]*types.ProjectSegment, 0, len(records))
		for _, record := range records {
			rows = append(rows, &types.ProjectSegment{
				ProjectID:    projectID,
				SegmentIndex: record.Index,
				SpeakerTag:   record.SpeakerTag,
				Start:        record.Start,
				End:          record.End,
				SourceText:   record.SourceText,
			})
		}
		if err := s.segments.CreateMany(ctx, nil, rows); err != nil {
			return false, err
		}
		for _, row := range rows {
			indexToID[row.SegmentIndex] = row.ID
		}
	} else {
		for _, row := range existing {
			indexToID[row.SegmentIndex] = row.ID
		}
	}

	for _, record := range records {
		segmentID, ok := indexToID[record.Index]
		if !ok {
			s.log.Warn("No segment row for reported index; skipping translation", "projectID", projectID, "segmentIndex", record.Index)
			continue
		}
		err := s.translations.Upsert(ctx, nil, &types.SegmentTranslation{
			SegmentID:       segmentID,
			LanguageCode:    targetLang,
			TargetText:      record.TranslatedText,
			SegmentAudioURL: record.AudioKey,
		})
		if err != nil {
			s.log.Warn("Translation upsert failed", "projectID", projectID, "segmentIndex", record.Index, "lang", targetLang, "error", err)
		}
	}

	return true, nil
}

// metadataDocument is the worker-written completion manifest stored in the
// media bucket.
type metadataDocument struct {
	TargetLang      string           `json:"target_lang"`
	Segments        []map[string]any `json:"segments"`
	TranslatedTexts []string         `json:"translated_texts"`
}

// CompletePipeline finalizes one language's run: preview asset, then segment
// reconciliation from the remote metadata document with graceful fallback to
// the inline callback segments. Every step is guarded; nothing here fails the
// acknowledged callback.
func (s *segmentReconciler) CompletePipeline(ctx context.Context, projectID uuid.UUID, cb *StageCallback, resultKey, defaultTargetLang string) {
	targetLang := cb.TargetLang
	if targetLang == "" {
		targetLang = defaultTargetLang
	}
	if targetLang == "" {
		s.log.Warn("Pipeline completion without resolvable target language; skipping", "projectID", projectID)
		return
	}

	if resultKey != "" && s.assets != nil {
		if _, err := s.assets.CreatePreview(ctx, projectID, targetLang, resultKey); err != nil {
			s.log.Warn("Preview asset creation failed", "projectID", projectID, "lang", targetLang, "error", err)
		}
	}

	segments := cb.Segments
	translatedTexts := cb.TranslatedTexts

	if cb.MetadataKey != "" && s.bucket != nil {
		if doc, err := s.fetchMetadataDocument(ctx, cb.MetadataKey); err != nil {
			s.log.Warn("Metadata document fetch failed; falling back to inline segments", "projectID", projectID, "key", cb.MetadataKey, "error", err)
		} else {
			segments = doc.Segments
			translatedTexts = doc.TranslatedTexts
			if doc.TargetLang != "" {
				targetLang = doc.TargetLang
			}
		}
	}

	if len(segments) == 0 {
		s.log.Debug("Pipeline completion carried no segments", "projectID", projectID, "lang", targetLang)
		return
	}

	if _, err := s.Reconcile(ctx, projectID, segments, targetLang, translatedTexts); err != nil {
		s.log.Warn("Segment reconciliation failed on pipeline completion", "projectID", projectID, "lang", targetLang, "error", err)
	}
}

func (s *segmentReconciler) fetchMetadataDocument(ctx context.Context, key string) (*metadataDocument, error) {
	raw, err := s.bucket.FetchBytes(ctx, key)
	if err != nil {
		return nil, err
	}
	var doc metadataDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
