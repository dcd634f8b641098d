package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dubpilot-backend/internal/clients/redisbus"
	"github.com/yungbote/dubpilot-backend/internal/logger"
	"github.com/yungbote/dubpilot-backend/internal/sse"
	"github.com/yungbote/dubpilot-backend/internal/types"
)

// Emitter is one sink for bus events. The hub emitter serves in-process
// subscribers; the redis emitter mirrors events to sibling processes.
type Emitter interface {
	Emit(event sse.Event)
}

type hubEmitter struct {
	hub *sse.Hub
}

func NewHubEmitter(hub *sse.Hub) Emitter {
	return &hubEmitter{hub: hub}
}

func (e *hubEmitter) Emit(event sse.Event) {
	e.hub.Broadcast(event)
}

type redisEmitter struct {
	log *logger.Logger
	bus redisbus.Bus
}

func NewRedisEmitter(log *logger.Logger, bus redisbus.Bus) Emitter {
	return &redisEmitter{log: log.With("component", "RedisEmitter"), bus: bus}
}

func (e *redisEmitter) Emit(event sse.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.bus.Publish(ctx, event); err != nil {
		e.log.Warn("Failed to mirror event to redis", "channel", event.Channel, "error", err)
	}
}

// Notifier builds the wire payloads for pipeline events and fans them out to
// every configured emitter. Delivery is best-effort on every path.
type Notifier struct {
	log      *logger.Logger
	emitters []Emitter
}

func NewNotifier(log *logger.Logger, emitters ...Emitter) *Notifier {
	return &Notifier{
		log:      log.With("service", "Notifier"),
		emitters: emitters,
	}
}

func (n *Notifier) emit(event sse.Event) {
	for _, emitter := range n.emitters {
		emitter.Emit(event)
	}
}

func eventTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// StageUpdate publishes a raw stage notification on the project channel.
func (n *Notifier) StageUpdate(projectID uuid.UUID, stage string, status types.JobStatus, progress *int) {
	data := map[string]any{
		"project_id": projectID.String(),
		"timestamp":  eventTimestamp(),
	}
	if stage != "" {
		data["stage"] = stage
	}
	if status != "" {
		data["status"] = string(status)
	}
	if progress != nil {
		data["progress"] = *progress
	}
	n.emit(sse.Event{
		Channel: sse.ProjectChannel(projectID),
		Name:    sse.EventStage,
		Data:    data,
	})
}

// TargetUpdate publishes one language's status/progress change on the project
// channel.
func (n *Notifier) TargetUpdate(projectID uuid.UUID, languageCode string, status types.TargetStatus, progress int) {
	n.emit(sse.Event{
		Channel: sse.ProjectChannel(projectID),
		Name:    sse.EventStage,
		Data: map[string]any{
			"project_id":    projectID.String(),
			"type":          "target_update",
			"language_code": languageCode,
			"status":        string(status),
			"progress":      progress,
			"timestamp":     eventTimestamp(),
		},
	})
}

// AudioCompleted publishes a synthesized-segment success on the audio channel.
// Duration is optional; a failed probe still announces the audio key.
func (n *Notifier) AudioCompleted(projectID, segmentID uuid.UUID, languageCode, audioKey string, duration *float64) {
	data := map[string]any{
		"segmentId":    segmentID.String(),
		"projectId":    projectID.String(),
		"languageCode": languageCode,
		"status":       "completed",
	}
	if audioKey != "" {
		data["audioS3Key"] = audioKey
	}
	if duration != nil {
		data["audioDuration"] = *duration
	}
	n.emit(sse.Event{
		Channel: sse.AudioChannel(projectID, languageCode),
		Name:    sse.EventAudioCompleted,
		Data:    data,
	})
}

// AudioFailed publishes a synthesized-segment failure on the audio channel.
func (n *Notifier) AudioFailed(projectID, segmentID uuid.UUID, languageCode, message string) {
	if message == "" {
		message = "Segment TTS failed"
	}
	n.emit(sse.Event{
		Channel: sse.AudioChannel(projectID, languageCode),
		Name:    sse.EventAudioFailed,
		Data: map[string]any{
			"segmentId":    segmentID.String(),
			"projectId":    projectID.String(),
			"languageCode": languageCode,
			"status":       "failed",
			"error":        message,
		},
	})
}
