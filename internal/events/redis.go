package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/tasklane/tasklane/internal/model"
)

const (
	// StreamKey is the Redis stream holding domain events.
	StreamKey = "tasklane:stream:events"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 10000
)

// RedisStreamPublisher appends events to a capped Redis stream. The stream
// doubles as the admin activity feed.
type RedisStreamPublisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStreamPublisher creates a publisher on client.
func NewRedisStreamPublisher(client *redis.Client, logger *slog.Logger) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
		logger: logger.With("component", "events.redis"),
	}
}

// Publish adds an event to the stream.
func (p *RedisStreamPublisher) Publish(ctx context.Context, event model.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"type":    string(event.Type),
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}

	p.logger.Debug("event_published", "event_type", event.Type, "stream_id", id)
	return nil
}

// Recent returns up to limit events, newest first.
func (p *RedisStreamPublisher) Recent(ctx context.Context, limit int64) ([]model.Event, error) {
	msgs, err := p.client.XRevRangeN(ctx, StreamKey, "+", "-", limit).Result()
	if err != nil {
		return nil, fmt.Errorf("xrevrange: %w", err)
	}

	events := make([]model.Event, 0, len(msgs))
	for _, msg := range msgs {
		evt, ok := decodeStreamMessage(msg)
		if !ok {
			p.logger.Warn("event_decode_failed", "stream_id", msg.ID)
			continue
		}
		events = append(events, evt)
	}
	return events, nil
}

// Close is a no-op; the client is owned by the cache.
func (p *RedisStreamPublisher) Close() error { return nil }

func decodeStreamMessage(msg redis.XMessage) (model.Event, bool) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return model.Event{}, false
	}
	var evt model.Event
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		return model.Event{}, false
	}
	evt.ID = msg.ID
	return evt, true
}
