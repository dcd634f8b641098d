package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/dubpilot-backend/internal/clients/redisq"
	"github.com/yungbote/dubpilot-backend/internal/repos"
	"github.com/yungbote/dubpilot-backend/internal/repos/testutil"
	"github.com/yungbote/dubpilot-backend/internal/types"
)

type fakeQueue struct {
	mu        sync.Mutex
	published []redisq.Message
	failLangs map[string]bool
}

func (q *fakeQueue) Publish(ctx context.Context, msg redisq.Message) error {
	var envelope map[string]any
	if err := json.Unmarshal(msg.Body, &envelope); err != nil {
		return err
	}
	if lang, _ := envelope["target_lang"].(string); q.failLangs[lang] {
		return redisq.ErrQueuePublish
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, msg)
	return nil
}

func (q *fakeQueue) Close() error { return nil }

type gatewayFixture struct {
	gdb     *gorm.DB
	gateway JobQueueGateway
	jobs    repos.JobRepo
	queue   *fakeQueue
}

func newGatewayFixture(t *testing.T, failLangs ...string) *gatewayFixture {
	t.Helper()
	gdb := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)

	queue := &fakeQueue{failLangs: map[string]bool{}}
	for _, lang := range failLangs {
		queue.failLangs[lang] = true
	}

	jobRepo := repos.NewJobRepo(gdb, log)
	projectRepo := repos.NewProjectRepo(gdb, log)
	segmentRepo := repos.NewProjectSegmentRepo(gdb, log)
	translationRepo := repos.NewSegmentTranslationRepo(gdb, log)
	jobSvc := NewJobService(log, jobRepo, "http://localhost:8080")

	return &gatewayFixture{
		gdb:     gdb,
		gateway: NewJobQueueGateway(log, queue, jobSvc, jobRepo, projectRepo, segmentRepo, translationRepo, nil, "test"),
		jobs:    jobRepo,
		queue:   queue,
	}
}

func TestBuildMessageFlattensPayload(t *testing.T) {
	f := newGatewayFixture(t)

	payload, err := json.Marshal(map[string]any{"voice_config": map[string]any{"mode": "clone"}, "task": "spoofed"})
	if err != nil {
		t.Fatalf("payload encode failed: %v", err)
	}
	project := testutil.NewProject(t, f.gdb, "en")
	job := testutil.NewJob(t, f.gdb, project.ID, "en")
	job.Task = types.JobTaskFullPipeline
	job.InputKey = "uploads/in.mp4"
	job.TaskPayload = datatypes.JSON(payload)

	envelope := f.gateway.BuildMessage(job)
	if envelope["task"] != string(types.JobTaskFullPipeline) {
		t.Fatalf("payload shadowed routing field task: %v", envelope["task"])
	}
	if envelope["job_id"] != job.ID.String() || envelope["project_id"] != job.ProjectID.String() {
		t.Fatalf("envelope routing fields = %+v", envelope)
	}
	if envelope["input_key"] != "uploads/in.mp4" || envelope["target_lang"] != "en" {
		t.Fatalf("envelope = %+v", envelope)
	}
	if _, ok := envelope["voice_config"]; !ok {
		t.Fatalf("task payload not flattened into envelope: %+v", envelope)
	}
}

func TestFanOutPartialFailure(t *testing.T) {
	f := newGatewayFixture(t, "es")
	ctx := context.Background()

	project := testutil.NewProject(t, f.gdb, "en", "es", "fr")
	jobs, err := f.gateway.FanOut(ctx, project, []string{"en", "es", "fr"})
	if err != nil {
		t.Fatalf("FanOut failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("successful jobs = %d, want 2", len(jobs))
	}
	for _, job := range jobs {
		if job.TargetLang == "es" {
			t.Fatalf("failed language returned as success")
		}
	}

	all, err := f.jobs.ListByProject(ctx, nil, project.ID)
	if err != nil {
		t.Fatalf("job listing failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("job records = %d, want 3", len(all))
	}
	for _, job := range all {
		want := types.JobStatusQueued
		if job.TargetLang == "es" {
			want = types.JobStatusFailed
		}
		if job.Status != want {
			t.Fatalf("job %s (%s) status = %q, want %q", job.ID, job.TargetLang, job.Status, want)
		}
	}

	for _, msg := range f.queue.published {
		if msg.GroupID != project.ID.String() {
			t.Fatalf("group id = %q, want project id", msg.GroupID)
		}
		if msg.DedupID == "" {
			t.Fatalf("missing dedup id")
		}
	}
}

func TestFanOutAllFail(t *testing.T) {
	f := newGatewayFixture(t, "en", "es")
	ctx := context.Background()

	project := testutil.NewProject(t, f.gdb, "en", "es")
	_, err := f.gateway.FanOut(ctx, project, []string{"en", "es"})
	if !errors.Is(err, redisq.ErrQueuePublish) {
		t.Fatalf("err = %v, want ErrQueuePublish", err)
	}
}

func TestStartSegmentTTSJob(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	log := testutil.NewTestLogger(t)

	project := testutil.NewProject(t, f.gdb, "en")
	pipelineJob := testutil.NewJob(t, f.gdb, project.ID, "en")
	segment := testutil.NewSegment(t, f.gdb, project.ID, 0, "S0", "source text")

	translationRepo := repos.NewSegmentTranslationRepo(f.gdb, log)
	if err := translationRepo.Upsert(ctx, nil, &types.SegmentTranslation{
		SegmentID:    segment.ID,
		LanguageCode: "en",
		TargetText:   "translated text",
	}); err != nil {
		t.Fatalf("fixture translation failed: %v", err)
	}

	voiceMap, _ := json.Marshal(map[string]any{
		"en": map[string]any{"S0": map[string]any{"ref_wav_key": "voices/s0.wav", "prompt_text": "hello"}},
	})
	projectRepo := repos.NewProjectRepo(f.gdb, log)
	if err := projectRepo.UpdateFields(ctx, nil, project.ID, map[string]interface{}{
		"default_speaker_voices": datatypes.JSON(voiceMap),
		"segment_assets_prefix":  "jobs/run1/segments/",
	}); err != nil {
		t.Fatalf("voice map update failed: %v", err)
	}

	job, err := f.gateway.StartSegmentTTSJob(ctx, project.ID, segment.ID, "en", SegmentTTSOptions{})
	if err != nil {
		t.Fatalf("StartSegmentTTSJob failed: %v", err)
	}
	if job.Task != types.JobTaskSegmentTTS || job.TargetLang != "en" {
		t.Fatalf("job = task %q, lang %q", job.Task, job.TargetLang)
	}

	payload := job.TaskPayloadMap()
	if payload["segment_id"] != segment.ID.String() {
		t.Fatalf("payload segment_id = %v", payload["segment_id"])
	}
	if payload["ref_wav_key"] != "voices/s0.wav" || payload["prompt_text"] != "hello" {
		t.Fatalf("voice resolution = %v / %v", payload["ref_wav_key"], payload["prompt_text"])
	}
	if payload["pipeline_job_id"] != pipelineJob.ID.String() {
		t.Fatalf("pipeline_job_id = %v, want %s", payload["pipeline_job_id"], pipelineJob.ID)
	}
	if payload["segment_assets_prefix"] != "jobs/run1/segments/" {
		t.Fatalf("segment_assets_prefix = %v, want jobs/run1/segments/", payload["segment_assets_prefix"])
	}
	segmentsPayload, ok := payload["segments"].([]any)
	if !ok || len(segmentsPayload) != 1 {
		t.Fatalf("segments payload = %v", payload["segments"])
	}
	first := segmentsPayload[0].(map[string]any)
	if first["text"] != "translated text" {
		t.Fatalf("segment text = %v", first["text"])
	}

	if len(f.queue.published) != 1 {
		t.Fatalf("published messages = %d, want 1", len(f.queue.published))
	}
}

func TestStartSegmentTTSJobRefreshWithoutTranslator(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()
	log := testutil.NewTestLogger(t)

	project := testutil.NewProject(t, f.gdb, "en")
	segment := testutil.NewSegment(t, f.gdb, project.ID, 0, "S0", "source text")

	translationRepo := repos.NewSegmentTranslationRepo(f.gdb, log)
	if err := translationRepo.Upsert(ctx, nil, &types.SegmentTranslation{
		SegmentID:    segment.ID,
		LanguageCode: "en",
		TargetText:   "stored text",
	}); err != nil {
		t.Fatalf("fixture translation failed: %v", err)
	}

	// the fixture has no translator; the refresh flag must degrade to the
	// stored translation instead of failing the dispatch
	job, err := f.gateway.StartSegmentTTSJob(ctx, project.ID, segment.ID, "en", SegmentTTSOptions{RefreshTranslation: true})
	if err != nil {
		t.Fatalf("StartSegmentTTSJob failed: %v", err)
	}

	segmentsPayload, ok := job.TaskPayloadMap()["segments"].([]any)
	if !ok || len(segmentsPayload) != 1 {
		t.Fatalf("segments payload = %v", job.TaskPayloadMap()["segments"])
	}
	if text := segmentsPayload[0].(map[string]any)["text"]; text != "stored text" {
		t.Fatalf("segment text = %v, want stored text", text)
	}
}

func TestStartTestSynthesisJob(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	project := testutil.NewProject(t, f.gdb, "en")
	job, err := f.gateway.StartTestSynthesisJob(ctx, project.ID, "en", "say this", "voices/sample.wav")
	if err != nil {
		t.Fatalf("StartTestSynthesisJob failed: %v", err)
	}
	if job.Task != types.JobTaskTestSynthesis {
		t.Fatalf("task = %q", job.Task)
	}
	payload := job.TaskPayloadMap()
	if payload["text"] != "say this" || payload["ref_wav_key"] != "voices/sample.wav" {
		t.Fatalf("payload = %+v", payload)
	}
}
