package redisq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/dubpilot-backend/internal/logger"
)

// ErrQueuePublish wraps any failure to hand a job message to the broker. The
// owning job gets marked failed by the caller; the error surfaces only to the
// original job-creation caller, never to the worker callback path.
var ErrQueuePublish = errors.New("failed to publish job message")

// Message is one wire envelope plus its routing attributes. GroupID and
// DedupID mirror FIFO-queue semantics: per-project ordering group and
// per-job deduplication.
type Message struct {
	Body       []byte
	Attributes map[string]string
	GroupID    string
	DedupID    string
}

// Queue is the broker-facing half of the job dispatch gateway.
type Queue interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

type Config struct {
	Addr       string
	Stream     string
	FIFO       bool
	DedupTTL   time.Duration
	DialTimout time.Duration
}

type queue struct {
	log    *logger.Logger
	rdb    *goredis.Client
	stream string
	fifo   bool
	dedup  time.Duration
}

func New(log *logger.Logger, cfg Config) (Queue, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "jobs"
	}
	dialTimeout := cfg.DialTimout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}
	dedup := cfg.DedupTTL
	if dedup == 0 {
		dedup = 24 * time.Hour
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: dialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &queue{
		log:    log.With("service", "RedisJobQueue"),
		rdb:    rdb,
		stream: stream,
		fifo:   cfg.FIFO,
		dedup:  dedup,
	}, nil
}

func (q *queue) Publish(ctx context.Context, msg Message) error {
	if q == nil || q.rdb == nil {
		return fmt.Errorf("%w: queue not initialized", ErrQueuePublish)
	}
	if len(msg.Body) == 0 {
		return fmt.Errorf("%w: empty body", ErrQueuePublish)
	}

	if q.fifo && msg.DedupID != "" {
		// SET NX guard: a replayed dedup id within the TTL window is dropped
		// silently, matching FIFO-queue deduplication.
		key := q.stream + ":dedup:" + msg.DedupID
		ok, err := q.rdb.SetNX(ctx, key, 1, q.dedup).Result()
		if err != nil {
			return fmt.Errorf("%w: dedup guard: %v", ErrQueuePublish, err)
		}
		if !ok {
			q.log.Debug("Duplicate job message suppressed", "dedup_id", msg.DedupID)
			return nil
		}
	}

	values := map[string]interface{}{"body": msg.Body}
	if msg.GroupID != "" {
		values["group_id"] = msg.GroupID
	}
	for k, v := range msg.Attributes {
		values["attr:"+k] = v
	}

	if err := q.rdb.XAdd(ctx, &goredis.XAddArgs{
		Stream: q.stream,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("%w: xadd %s: %v", ErrQueuePublish, q.stream, err)
	}
	return nil
}

func (q *queue) Close() error {
	if q == nil || q.rdb == nil {
		return nil
	}
	return q.rdb.Close()
}
