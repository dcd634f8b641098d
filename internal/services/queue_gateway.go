package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/dubpilot-backend/internal/clients/redisq"
	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/repos"
	"github.com/yungbote/dubpilot-backend/internal/types"
)

const fanOutParallelism = 4

// SegmentTTSOptions tunes a single-segment regeneration. An explicit voice
// sample overrides the project's stored default voice for the speaker;
// RefreshTranslation re-runs the translator over the source text before
// synthesis.
type SegmentTTSOptions struct {
	VoiceSampleKey     string
	PromptText         string
	RefreshTranslation bool
}

// JobQueueGateway turns job records into broker messages. Fan-out tolerates
// per-language enqueue failures: a failed language marks only its own job
// failed, and the call errors only when no language succeeded.
type JobQueueGateway interface {
	BuildMessage(job *types.Job) map[string]any
	Enqueue(ctx context.Context, job *types.Job) error
	FanOut(ctx context.Context, project *types.Project, targetLanguages []string) ([]*types.Job, error)
	StartSegmentTTSJob(ctx context.Context, projectID, segmentID uuid.UUID, languageCode string, opts SegmentTTSOptions) (*types.Job, error)
	StartTestSynthesisJob(ctx context.Context, projectID uuid.UUID, languageCode, text, refWavKey string) (*types.Job, error)
}

type jobQueueGateway struct {
	log          *logger.Logger
	queue        redisq.Queue
	jobSvc       JobService
	jobs         repos.JobRepo
	projects     repos.ProjectRepo
	segments     repos.ProjectSegmentRepo
	translations repos.SegmentTranslationRepo
	translator   Translator
	appEnv       string
}

func NewJobQueueGateway(
	log *logger.Logger,
	queue redisq.Queue,
	jobSvc JobService,
	jobs repos.JobRepo,
	projects repos.ProjectRepo,
	segments repos.ProjectSegmentRepo,
	translations repos.SegmentTranslationRepo,
	translator Translator,
	appEnv string,
) JobQueueGateway {
	return &jobQueueGateway{
		log:          log.With("service", "JobQueueGateway"),
		queue:        queue,
		jobSvc:       jobSvc,
		jobs:         jobs,
		projects:     projects,
		segments:     segments,
		translations: translations,
		translator:   translator,
		appEnv:       appEnv,
	}
}

// BuildMessage renders the wire envelope: common routing fields plus the job's
// task payload flattened in at the top level. Payload keys never shadow the
// routing fields.
func (g *jobQueueGateway) BuildMessage(job *types.Job) map[string]any {
	envelope := map[string]any{}
	for k, v := range job.TaskPayloadMap() {
		envelope[k] = v
	}

	envelope["task"] = string(job.Task)
	envelope["job_id"] = job.ID.String()
	envelope["project_id"] = job.ProjectID.String()
	envelope["callback_url"] = job.CallbackURL
	if job.InputKey != "" {
		envelope["input_key"] = job.InputKey
	}
	if job.SourceLang != "" {
		envelope["source_lang"] = job.SourceLang
	}
	if job.TargetLang != "" {
		envelope["target_lang"] = job.TargetLang
	}
	return envelope
}

// Enqueue serializes the envelope and hands it to the broker with
// group_id=project_id and dedup_id=job_id. With no broker configured (local
// dev) the message is skipped with a warning.
func (g *jobQueueGateway) Enqueue(ctx context.Context, job *types.Job) error {
	if g.queue == nil {
		g.log.Warn("No job queue configured; message not enqueued", "jobID", job.ID, "env", g.appEnv)
		return nil
	}

	body, err := json.Marshal(g.BuildMessage(job))
	if err != nil {
		return fmt.Errorf("%w: encode envelope: %v", redisq.ErrQueuePublish, err)
	}

	return g.queue.Publish(ctx, redisq.Message{
		Body:    body,
		GroupID: job.ProjectID.String(),
		DedupID: job.ID.String(),
		Attributes: map[string]string{
			"task": string(job.Task),
		},
	})
}

// FanOut creates and enqueues one full-pipeline job per target language.
func (g *jobQueueGateway) FanOut(ctx context.Context, project *types.Project, targetLanguages []string) ([]*types.Job, error) {
	if len(targetLanguages) == 0 {
		return nil, fmt.Errorf("no target languages to dispatch")
	}

	inputKey := project.VideoSource
	if inputKey == "" {
		inputKey = project.AudioSource
	}

	var payload map[string]any
	if len(project.VoiceConfig) > 0 {
		var voiceConfig map[string]any
		if err := json.Unmarshal(project.VoiceConfig, &voiceConfig); err == nil && len(voiceConfig) > 0 {
			payload = map[string]any{"voice_config": voiceConfig}
		}
	}

	var (
		mu       sync.Mutex
		enqueued []*types.Job
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(fanOutParallelism)

	for _, lang := range targetLanguages {
		lang := lang
		group.Go(func() error {
			job, err := g.jobSvc.CreateJob(groupCtx, project.ID, types.JobTaskFullPipeline, project.SourceLanguage, lang, inputKey, payload)
			if err != nil {
				g.log.Error("Job creation failed during fan-out", "projectID", project.ID, "lang", lang, "error", err)
				return nil
			}
			if err := g.Enqueue(groupCtx, job); err != nil {
				g.log.Error("Enqueue failed during fan-out; marking job failed", "jobID", job.ID, "lang", lang, "error", err)
				if markErr := g.jobSvc.MarkFailed(groupCtx, job.ID, err.Error()); markErr != nil {
					g.log.Error("Failed to mark job failed", "jobID", job.ID, "error", markErr)
				}
				return nil
			}
			mu.Lock()
			enqueued = append(enqueued, job)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	if len(enqueued) == 0 {
		return nil, fmt.Errorf("%w: all %d language dispatches failed", redisq.ErrQueuePublish, len(targetLanguages))
	}
	return enqueued, nil
}

// StartSegmentTTSJob dispatches a single-segment regeneration. The worker gets
// the segment's translated text plus the resolved reference voice, and the
// original full-pipeline job id so it can reuse that run's working directory.
func (g *jobQueueGateway) StartSegmentTTSJob(ctx context.Context, projectID, segmentID uuid.UUID, languageCode string, opts SegmentTTSOptions) (*types.Job, error) {
	segment, err := g.segments.GetByID(ctx, nil, segmentID)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", segmentID, err)
	}
	if segment.ProjectID != projectID {
		return nil, fmt.Errorf("segment %s does not belong to project %s", segmentID, projectID)
	}

	project, err := g.projects.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}

	translation, err := g.translations.GetBySegmentAndLanguage(ctx, nil, segmentID, languageCode)
	if err != nil {
		return nil, fmt.Errorf("no translation for segment %s in %s: %w", segmentID, languageCode, err)
	}

	text := translation.TargetText
	if opts.RefreshTranslation && g.translator == nil {
		g.log.Warn("Translation refresh requested but no translator configured; using stored text", "segmentID", segmentID, "lang", languageCode)
	}
	if opts.RefreshTranslation && g.translator != nil {
		if refreshed, trErr := g.translator.Translate(ctx, segment.SourceText, languageCode); trErr != nil {
			g.log.Warn("Translation refresh failed; using stored text", "segmentID", segmentID, "lang", languageCode, "error", trErr)
		} else if refreshed != "" {
			text = refreshed
			if upErr := g.translations.Upsert(ctx, nil, &types.SegmentTranslation{
				SegmentID:       segmentID,
				LanguageCode:    languageCode,
				TargetText:      refreshed,
				SegmentAudioURL: translation.SegmentAudioURL,
			}); upErr != nil {
				g.log.Warn("Failed to persist refreshed translation", "segmentID", segmentID, "error", upErr)
			}
		}
	}

	refWavKey := opts.VoiceSampleKey
	promptText := opts.PromptText
	if refWavKey == "" {
		refWavKey, promptText = defaultVoiceFor(project, languageCode, segment.SpeakerTag)
	}

	payload := map[string]any{
		"segment_id":  segmentID.String(),
		"speaker_tag": segment.SpeakerTag,
		"segments": []map[string]any{{
			"text":  text,
			"s":     segment.Start,
			"e":     segment.End,
			"start": segment.Start,
			"end":   segment.End,
		}},
	}
	if refWavKey != "" {
		payload["ref_wav_key"] = refWavKey
	}
	if promptText != "" {
		payload["prompt_text"] = promptText
	}
	if project.SegmentAssetsPrefix != "" {
		payload["segment_assets_prefix"] = project.SegmentAssetsPrefix
	}
	if pipelineJob, jobErr := g.jobs.LatestByProjectAndTarget(ctx, nil, projectID, languageCode, types.JobTaskFullPipeline); jobErr == nil {
		payload["pipeline_job_id"] = pipelineJob.ID.String()
	}

	return g.createAndEnqueue(ctx, projectID, types.JobTaskSegmentTTS, project.SourceLanguage, languageCode, "", payload)
}

// StartTestSynthesisJob dispatches a short throwaway synthesis used to audition
// a voice sample.
func (g *jobQueueGateway) StartTestSynthesisJob(ctx context.Context, projectID uuid.UUID, languageCode, text, refWavKey string) (*types.Job, error) {
	if text == "" {
		return nil, fmt.Errorf("missing text for test synthesis")
	}
	payload := map[string]any{
		"text":          text,
		"language_code": languageCode,
	}
	if refWavKey != "" {
		payload["ref_wav_key"] = refWavKey
	}
	return g.createAndEnqueue(ctx, projectID, types.JobTaskTestSynthesis, "", languageCode, "", payload)
}

func (g *jobQueueGateway) createAndEnqueue(ctx context.Context, projectID uuid.UUID, task types.JobTask, sourceLang, targetLang, inputKey string, payload map[string]any) (*types.Job, error) {
	job, err := g.jobSvc.CreateJob(ctx, projectID, task, sourceLang, targetLang, inputKey, payload)
	if err != nil {
		return nil, err
	}
	if err := g.Enqueue(ctx, job); err != nil {
		if markErr := g.jobSvc.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			g.log.Error("Failed to mark job failed", "jobID", job.ID, "error", markErr)
		}
		return nil, err
	}
	return job, nil
}

// defaultVoiceFor reads {lang: {speaker: {ref_wav_key, prompt_text}}} out of
// the project's stored voice map.
func defaultVoiceFor(project *types.Project, languageCode, speakerTag string) (string, string) {
	if project == nil || len(project.DefaultSpeakerVoices) == 0 {
		return "", ""
	}
	voiceMap := map[string]map[string]map[string]any{}
	if err := json.Unmarshal(project.DefaultSpeakerVoices, &voiceMap); err != nil {
		return "", ""
	}
	speakers, ok := voiceMap[languageCode]
	if !ok {
		return "", ""
	}
	voice, ok := speakers[speakerTag]
	if !ok {
		return "", ""
	}
	return stringField(voice, "ref_wav_key"), stringField(voice, "prompt_text")
}
