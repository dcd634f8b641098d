package handlers_test

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dubpilot-backend/internal/sse"
)

func waitForSubscriber(t *testing.T, hub *sse.Hub, channel string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SubscriberCount(channel) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no subscriber appeared on channel %q", channel)
}

func readEventData(t *testing.T, body *bufio.Reader) string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		line, err := body.ReadString('\n')
		if err != nil {
			t.Fatalf("stream read failed: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	t.Fatalf("no data line before deadline")
	return ""
}

func TestPipelineEventsStream(t *testing.T) {
	f := newAPIFixture(t)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	projectID := uuid.New()
	channel := sse.ProjectChannel(projectID)

	resp, err := http.Get(fmt.Sprintf("%s/api/pipeline/%s/events", srv.URL, projectID))
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	waitForSubscriber(t, f.hub, channel)
	f.hub.Broadcast(sse.Event{
		Channel: channel,
		Name:    sse.EventStage,
		Data:    map[string]any{"project_id": projectID.String(), "stage": "asr_started"},
	})

	data := readEventData(t, bufio.NewReader(resp.Body))
	if !strings.Contains(data, "asr_started") {
		t.Fatalf("stream payload = %q", data)
	}
}

func TestAudioEventsStreamValidation(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/audio/events?projectId=bad&language=en", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/audio/events?projectId=%s", uuid.New()), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for missing language", rec.Code)
	}
}
