package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dubpilot-backend/internal/logger"
)

// Event is one message on a named channel. Name becomes the SSE event field;
// Data is JSON-encoded into the data field.
type Event struct {
	Channel string `json:"channel"`
	Name    string `json:"event"`
	Data    any    `json:"data,omitempty"`
}

const (
	EventStage          = "stage"
	EventAudioCompleted = "audio-completed"
	EventAudioFailed    = "audio-failed"
)

// ProjectChannel carries stage and target_update events for one project.
func ProjectChannel(projectID uuid.UUID) string {
	return projectID.String()
}

// AudioChannel carries segment audio events for one (project, language) pair.
func AudioChannel(projectID uuid.UUID, languageCode string) string {
	return projectID.String() + ":" + languageCode
}

const outboundBuffer = 16

type Client struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan Event
	done     chan struct{}
}

// Hub is the in-process event bus: per-channel subscriber registries with
// snapshot fan-out. Channels are ephemeral; a registry entry is dropped as soon
// as its last subscriber leaves, and a publish with no subscribers is a no-op.
// There is no backlog: subscribers only see events published while attached.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

func (h *Hub) NewClient() *Client {
	return &Client{
		ID:       uuid.New(),
		Channels: make(map[string]bool),
		Outbound: make(chan Event, outboundBuffer),
		done:     make(chan struct{}),
	}
}

func (h *Hub) Subscribe(client *Client, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	client.Channels[channel] = true
	clients, exists := h.subscriptions[channel]
	if !exists {
		clients = make(map[*Client]bool)
		h.subscriptions[channel] = clients
	}
	clients[client] = true

	h.log.Debug("SSE client subscribed", "clientID", client.ID, "channel", channel)
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.Channels, channel)
	h.dropLocked(client, channel)
	h.log.Debug("SSE client unsubscribed", "clientID", client.ID, "channel", channel)
}

func (h *Hub) RemoveClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range client.Channels {
		h.dropLocked(client, ch)
	}
	client.Channels = make(map[string]bool)
}

// dropLocked removes one membership and garbage-collects the registry entry
// when its subscriber set becomes empty. Callers hold h.mu.
func (h *Hub) dropLocked(client *Client, channel string) {
	if subMap, ok := h.subscriptions[channel]; ok {
		delete(subMap, client)
		if len(subMap) == 0 {
			delete(h.subscriptions, channel)
		}
	}
}

// Broadcast pushes the event to a snapshot of the channel's current
// subscribers. Delivery is at-most-once: a stalled subscriber whose outbound
// buffer is full loses the event rather than blocking the publisher.
func (h *Hub) Broadcast(event Event) {
	if event.Channel == "" {
		return
	}

	h.mu.RLock()
	clientsMap, ok := h.subscriptions[event.Channel]
	if !ok {
		h.mu.RUnlock()
		return
	}
	snapshot := make([]*Client, 0, len(clientsMap))
	for c := range clientsMap {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	for _, c := range snapshot {
		select {
		case c.Outbound <- event:
		case <-c.done:
		default:
			h.log.Warn("Dropping SSE event; outbound buffer full", "clientID", c.ID, "channel", event.Channel)
		}
	}
}

// SubscriberCount reports the live subscriber count for a channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[channel])
}

// ServeHTTP streams the client's outbound queue as server-sent events until
// the request context is cancelled; client disconnect is the only cancellation
// signal for a stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug("SSE client context done", "clientID", client.ID, "err", ctx.Err())
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event := <-client.Outbound:
			raw, err := json.Marshal(event.Data)
			if err != nil {
				h.log.Warn("Failed to marshal SSE event", "error", err)
				continue
			}
			name := event.Name
			if name == "" {
				name = EventStage
			}
			fmt.Fprintf(w, "event: %s\n", name)
			fmt.Fprintf(w, "data: %s\n\n", raw)
			flusher.Flush()
		}
	}
}

func (h *Hub) CloseClient(client *Client) {
	h.RemoveClient(client)
	close(client.done)
}
