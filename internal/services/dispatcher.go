package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/repos"
	"github.com/yungbote/dubpilot-backend/internal/types"
)

// JobStatusRequest is the body of one worker callback.
type JobStatusRequest struct {
	Status    types.JobStatus `json:"status" binding:"required"`
	ResultKey *string         `json:"result_key"`
	Error     *string         `json:"error"`
	Metadata  map[string]any  `json:"metadata"`
}

// PipelineDispatcher consumes worker callbacks and drives all downstream
// state: job record, project mirror, per-language targets, segment records,
// and live events. The job-status write is the only operation allowed to fail
// the callback; every later step is individually guarded and logged.
type PipelineDispatcher interface {
	HandleCallback(ctx context.Context, jobID uuid.UUID, req JobStatusRequest) (*types.Job, error)
}

type pipelineDispatcher struct {
	log          *logger.Logger
	jobs         repos.JobRepo
	projects     repos.ProjectRepo
	targets      repos.ProjectTargetRepo
	translations repos.SegmentTranslationRepo
	identity     SegmentIdentityResolver
	reconciler   SegmentReconciler
	probe        AudioProbe
	notifier     *Notifier
}

func NewPipelineDispatcher(
	log *logger.Logger,
	jobs repos.JobRepo,
	projects repos.ProjectRepo,
	targets repos.ProjectTargetRepo,
	translations repos.SegmentTranslationRepo,
	identity SegmentIdentityResolver,
	reconciler SegmentReconciler,
	probe AudioProbe,
	notifier *Notifier,
) PipelineDispatcher {
	return &pipelineDispatcher{
		log:          log.With("service", "PipelineDispatcher"),
		jobs:         jobs,
		projects:     projects,
		targets:      targets,
		translations: translations,
		identity:     identity,
		reconciler:   reconciler,
		probe:        probe,
		notifier:     notifier,
	}
}

func (d *pipelineDispatcher) HandleCallback(ctx context.Context, jobID uuid.UUID, req JobStatusRequest) (*types.Job, error) {
	cb := ParseStageCallback(req.Metadata)

	var metadata datatypes.JSON
	if len(req.Metadata) > 0 {
		if raw, err := json.Marshal(req.Metadata); err == nil {
			metadata = datatypes.JSON(raw)
		}
	}

	job, err := d.jobs.UpdateStatus(ctx, nil, jobID, repos.JobStatusUpdate{
		Status:    req.Status,
		ResultKey: req.ResultKey,
		Error:     req.Error,
		Metadata:  metadata,
		Message:   cb.Stage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update job %s: %w", jobID, err)
	}

	d.applySideEffects(ctx, job, cb, req)
	return job, nil
}

// applySideEffects runs everything downstream of the acknowledged job write.
// Each step is guarded so one failure never blocks the rest.
func (d *pipelineDispatcher) applySideEffects(ctx context.Context, job *types.Job, cb *StageCallback, req JobStatusRequest) {
	log := d.log.With("jobID", job.ID, "projectID", job.ProjectID, "stage", cb.Stage)

	project := d.loadProject(ctx, log, job.ProjectID)
	d.mirrorProjectStatus(ctx, log, job, cb, req)

	lang := d.resolveLanguage(job, cb, project)

	var progress *int
	state, known := StageProgressFor(cb.Stage)
	if known {
		p := state.Progress
		progress = &p
	}
	d.notifier.StageUpdate(job.ProjectID, cb.Stage, req.Status, progress)

	switch cb.Stage {
	case "asr_completed":
		d.persistExtractedSources(ctx, log, job.ProjectID, cb)
	case "tts_completed":
		d.mergeProjectVoices(ctx, log, project, lang, cb.SpeakerVoices)
	case "segment_tts_completed":
		d.handleSegmentSynthesized(ctx, log, job, cb, lang)
	case "segment_tts_failed":
		d.handleSegmentFailed(ctx, log, job, cb, lang)
	case "done":
		voices := cb.SpeakerVoices
		if voices == nil {
			voices = cb.SpeakerRefs
		}
		d.mergeProjectVoices(ctx, log, project, lang, voices)
		d.reconciler.CompletePipeline(ctx, job.ProjectID, cb, d.resolveResultKey(job, cb, req), lang)
	case "failed", "starting", "asr_started", "translation_started", "translation_completed",
		"tts_started", "mux_started", "downloaded", "stt_completed", "":
		// status/progress handling below covers these
	default:
		log.Warn("Unknown pipeline stage; ignoring")
	}

	if !known {
		return
	}
	if lang == "" {
		if !StageIsLanguageIndependent(cb.Stage) {
			log.Warn("No language resolvable for stage; skipping target update")
		}
		return
	}
	if err := d.targets.UpdateByProjectAndLanguage(ctx, nil, job.ProjectID, lang, state.Status, state.Progress); err != nil {
		log.Warn("Target update failed", "lang", lang, "error", err)
		return
	}
	d.notifier.TargetUpdate(job.ProjectID, lang, state.Status, state.Progress)
}

func (d *pipelineDispatcher) loadProject(ctx context.Context, log *logger.Logger, projectID uuid.UUID) *types.Project {
	project, err := d.projects.GetByID(ctx, nil, projectID)
	if err != nil {
		log.Warn("Project lookup failed", "error", err)
		return nil
	}
	return project
}

// mirrorProjectStatus keeps the project record's coarse status in step with
// the pipeline so list views do not need target joins.
func (d *pipelineDispatcher) mirrorProjectStatus(ctx context.Context, log *logger.Logger, job *types.Job, cb *StageCallback, req JobStatusRequest) {
	updates := map[string]interface{}{}
	switch {
	case req.Status == types.JobStatusDone:
		updates["status"] = "done"
	case req.Status == types.JobStatusFailed:
		updates["status"] = "failed"
	case cb.Stage != "":
		updates["status"] = cb.Stage
	}
	if cb.SpeakerCount != nil {
		updates["speaker_count"] = *cb.SpeakerCount
	}
	if cb.Duration != nil {
		updates["duration_seconds"] = int(*cb.Duration)
	}
	if cb.SegmentAssetsPrefix != "" {
		updates["segment_assets_prefix"] = cb.SegmentAssetsPrefix
	}
	if len(updates) == 0 {
		return
	}
	if err := d.projects.UpdateFields(ctx, nil, job.ProjectID, updates); err != nil {
		log.Warn("Project status mirror failed", "error", err)
	}
}

// resolveLanguage applies the fallback chain: callback target_lang, callback
// language_code, the job's own target language, then the project's first
// declared target language.
func (d *pipelineDispatcher) resolveLanguage(job *types.Job, cb *StageCallback, project *types.Project) string {
	if lang := cb.Language(); lang != "" {
		return lang
	}
	if job.TargetLang != "" {
		return job.TargetLang
	}
	if project != nil {
		if declared := types.TargetLanguageList(project.TargetLanguages); len(declared) > 0 {
			return declared[0]
		}
	}
	return ""
}

func (d *pipelineDispatcher) resolveResultKey(job *types.Job, cb *StageCallback, req JobStatusRequest) string {
	if cb.ResultKey != "" {
		return cb.ResultKey
	}
	if req.ResultKey != nil && *req.ResultKey != "" {
		return *req.ResultKey
	}
	return job.ResultKey
}

// persistExtractedSources writes only the object keys the worker reported;
// absent fields stay untouched.
func (d *pipelineDispatcher) persistExtractedSources(ctx context.Context, log *logger.Logger, projectID uuid.UUID, cb *StageCallback) {
	updates := map[string]interface{}{}
	if cb.AudioKey != "" {
		updates["audio_source"] = cb.AudioKey
	}
	if cb.VocalsKey != "" {
		updates["vocal_source"] = cb.VocalsKey
	}
	if cb.BackgroundKey != "" {
		updates["background_audio_source"] = cb.BackgroundKey
	}
	if len(updates) == 0 {
		return
	}
	if err := d.projects.UpdateFields(ctx, nil, projectID, updates); err != nil {
		log.Warn("Failed to persist extracted source keys", "error", err)
	}
}

// mergeProjectVoices folds one language's speaker voices into the project's
// multi-language voice map, preserving entries for other languages.
func (d *pipelineDispatcher) mergeProjectVoices(ctx context.Context, log *logger.Logger, project *types.Project, lang string, voices map[string]any) {
	if project == nil || lang == "" || len(voices) == 0 {
		return
	}

	voiceMap := map[string]any{}
	if len(project.DefaultSpeakerVoices) > 0 {
		if err := json.Unmarshal(project.DefaultSpeakerVoices, &voiceMap); err != nil {
			log.Warn("Corrupt default voice map; rebuilding", "error", err)
			voiceMap = map[string]any{}
		}
	}
	voiceMap[lang] = voices

	raw, err := json.Marshal(voiceMap)
	if err != nil {
		log.Warn("Failed to encode voice map", "error", err)
		return
	}
	if err := d.projects.UpdateFields(ctx, nil, project.ID, map[string]interface{}{
		"default_speaker_voices": datatypes.JSON(raw),
	}); err != nil {
		log.Warn("Failed to persist voice map", "lang", lang, "error", err)
		return
	}
	project.DefaultSpeakerVoices = datatypes.JSON(raw)
}

func (d *pipelineDispatcher) handleSegmentSynthesized(ctx context.Context, log *logger.Logger, job *types.Job, cb *StageCallback, lang string) {
	segmentID, ok := d.identity.Resolve(ctx, job.ProjectID, cb)
	if !ok {
		log.Warn("Could not resolve segment for synthesized audio; skipping")
		return
	}
	if lang == "" {
		log.Warn("Synthesized audio without resolvable language; skipping", "segmentID", segmentID)
		return
	}

	audioKey := cb.SegmentAudioKey()
	if audioKey == "" {
		audioKey = cb.ResultKey
	}

	if audioKey != "" {
		d.patchTranslationAudio(ctx, log, segmentID, lang, audioKey)
	}

	var duration *float64
	if audioKey != "" && d.probe != nil {
		if probed, err := d.probe.DurationFromKey(ctx, audioKey); err != nil {
			log.Warn("Audio duration probe failed", "segmentID", segmentID, "key", audioKey, "error", err)
		} else {
			duration = &probed
		}
	}

	d.notifier.AudioCompleted(job.ProjectID, segmentID, lang, audioKey, duration)
}

func (d *pipelineDispatcher) handleSegmentFailed(ctx context.Context, log *logger.Logger, job *types.Job, cb *StageCallback, lang string) {
	segmentID, ok := d.identity.Resolve(ctx, job.ProjectID, cb)
	if !ok {
		log.Warn("Could not resolve segment for failed synthesis; skipping")
		return
	}
	if lang == "" {
		log.Warn("Failed synthesis without resolvable language; skipping", "segmentID", segmentID)
		return
	}
	message := cb.Error
	if message == "" && job.Error != "" {
		message = job.Error
	}
	d.notifier.AudioFailed(job.ProjectID, segmentID, lang, message)
}

func (d *pipelineDispatcher) patchTranslationAudio(ctx context.Context, log *logger.Logger, segmentID uuid.UUID, lang, audioKey string) {
	translation, err := d.translations.GetBySegmentAndLanguage(ctx, nil, segmentID, lang)
	if err == nil {
		if err := d.translations.UpdateAudioURL(ctx, nil, translation.ID, audioKey); err != nil {
			log.Warn("Failed to patch translation audio", "segmentID", segmentID, "lang", lang, "error", err)
		}
		return
	}
	// first contact for this (segment, language); create the row with audio only
	if upsertErr := d.translations.Upsert(ctx, nil, &types.SegmentTranslation{
		SegmentID:       segmentID,
		LanguageCode:    lang,
		SegmentAudioURL: audioKey,
	}); upsertErr != nil {
		log.Warn("Failed to create translation for synthesized audio", "segmentID", segmentID, "lang", lang, "error", upsertErr)
	}
}
