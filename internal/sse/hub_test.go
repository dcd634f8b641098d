package sse

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/dubpilot-backend/internal/logger"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return NewHub(log)
}

func recvEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case event := <-c.Outbound:
		return event
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	hub := newTestHub(t)
	channel := ProjectChannel(uuid.New())

	clients := make([]*Client, 3)
	for i := range clients {
		clients[i] = hub.NewClient()
		hub.Subscribe(clients[i], channel)
	}

	hub.Broadcast(Event{Channel: channel, Name: EventStage, Data: map[string]any{"progress": 10}})

	for i, c := range clients {
		event := recvEvent(t, c)
		if event.Channel != channel {
			t.Fatalf("client %d got channel %q, want %q", i, event.Channel, channel)
		}
	}
}

func TestNoBacklogForLateSubscriber(t *testing.T) {
	hub := newTestHub(t)
	channel := ProjectChannel(uuid.New())

	early := hub.NewClient()
	hub.Subscribe(early, channel)
	hub.Broadcast(Event{Channel: channel, Name: EventStage})

	late := hub.NewClient()
	hub.Subscribe(late, channel)

	recvEvent(t, early)
	select {
	case event := <-late.Outbound:
		t.Fatalf("late subscriber received past event %+v", event)
	default:
	}
}

func TestUnsubscribedClientReceivesNothing(t *testing.T) {
	hub := newTestHub(t)
	channel := ProjectChannel(uuid.New())

	client := hub.NewClient()
	hub.Subscribe(client, channel)
	hub.Unsubscribe(client, channel)

	hub.Broadcast(Event{Channel: channel, Name: EventStage})

	select {
	case event := <-client.Outbound:
		t.Fatalf("unsubscribed client received %+v", event)
	default:
	}
}

func TestEmptyChannelIsGarbageCollected(t *testing.T) {
	hub := newTestHub(t)
	channel := AudioChannel(uuid.New(), "en")

	first := hub.NewClient()
	second := hub.NewClient()
	hub.Subscribe(first, channel)
	hub.Subscribe(second, channel)
	if got := hub.SubscriberCount(channel); got != 2 {
		t.Fatalf("subscriber count = %d, want 2", got)
	}

	hub.CloseClient(first)
	if got := hub.SubscriberCount(channel); got != 1 {
		t.Fatalf("subscriber count = %d, want 1", got)
	}

	hub.CloseClient(second)
	if got := hub.SubscriberCount(channel); got != 0 {
		t.Fatalf("subscriber count = %d, want 0", got)
	}
	hub.mu.RLock()
	_, exists := hub.subscriptions[channel]
	hub.mu.RUnlock()
	if exists {
		t.Fatalf("empty channel registry entry was not removed")
	}
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := newTestHub(t)
	channel := ProjectChannel(uuid.New())

	client := hub.NewClient()
	hub.Subscribe(client, channel)

	for i := 0; i < outboundBuffer+5; i++ {
		hub.Broadcast(Event{Channel: channel, Name: EventStage, Data: i})
	}

	if got := len(client.Outbound); got != outboundBuffer {
		t.Fatalf("buffered events = %d, want %d", got, outboundBuffer)
	}
}
