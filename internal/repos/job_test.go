package repos_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/dubpilot-backend/internal/repos"
	"github.com/yungbote/dubpilot-backend/internal/repos/testutil"
	"github.com/yungbote/dubpilot-backend/internal/types"
)

func TestJobUpdateStatusAppendsHistory(t *testing.T) {
	gdb := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	jobRepo := repos.NewJobRepo(gdb, log)

	project := testutil.NewProject(t, gdb, "en")
	job := testutil.NewJob(t, gdb, project.ID, "en")

	ctx := context.Background()

	updated, err := jobRepo.UpdateStatus(ctx, nil, job.ID, repos.JobStatusUpdate{
		Status:  types.JobStatusInProgress,
		Message: "asr_started",
	})
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if updated.Status != types.JobStatusInProgress {
		t.Fatalf("status = %q, want in_progress", updated.Status)
	}

	resultKey := "results/final.mp4"
	updated, err = jobRepo.UpdateStatus(ctx, nil, job.ID, repos.JobStatusUpdate{
		Status:    types.JobStatusDone,
		ResultKey: &resultKey,
		Message:   "done",
	})
	if err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if updated.ResultKey != resultKey {
		t.Fatalf("result_key = %q, want %q", updated.ResultKey, resultKey)
	}

	history := updated.HistoryEntries()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Status != types.JobStatusInProgress || history[1].Status != types.JobStatusDone {
		t.Fatalf("history statuses = %v, %v", history[0].Status, history[1].Status)
	}
	if history[1].Message != "done" {
		t.Fatalf("history message = %q, want done", history[1].Message)
	}
}

func TestJobUpdateStatusUnknownJob(t *testing.T) {
	gdb := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	jobRepo := repos.NewJobRepo(gdb, log)

	_, err := jobRepo.UpdateStatus(context.Background(), nil, uuid.New(), repos.JobStatusUpdate{
		Status: types.JobStatusDone,
	})
	if !errors.Is(err, repos.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestLatestByProjectAndTarget(t *testing.T) {
	gdb := testutil.OpenTestDB(t)
	log := testutil.NewTestLogger(t)
	jobRepo := repos.NewJobRepo(gdb, log)

	project := testutil.NewProject(t, gdb, "en", "es")
	testutil.NewJob(t, gdb, project.ID, "en")
	second := testutil.NewJob(t, gdb, project.ID, "en")
	testutil.NewJob(t, gdb, project.ID, "es")

	got, err := jobRepo.LatestByProjectAndTarget(context.Background(), nil, project.ID, "en", types.JobTaskFullPipeline)
	if err != nil {
		t.Fatalf("LatestByProjectAndTarget failed: %v", err)
	}
	if got.ID != second.ID {
		t.Fatalf("latest job = %s, want %s", got.ID, second.ID)
	}

	_, err = jobRepo.LatestByProjectAndTarget(context.Background(), nil, project.ID, "fr", types.JobTaskFullPipeline)
	if !errors.Is(err, repos.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
