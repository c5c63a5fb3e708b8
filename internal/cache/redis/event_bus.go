package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// DefaultStreamMaxLen bounds event streams via XADD MAXLEN ~.
const DefaultStreamMaxLen int64 = 10000

// EventBus implements domain.EventBus using Pub/Sub for live followers and
// Streams for a bounded replayable history.
type EventBus struct {
	rdb    *redis.Client
	maxLen int64
}

// NewEventBus creates an EventBus. A non-positive maxLen uses
// DefaultStreamMaxLen.
func NewEventBus(c *Client, maxLen int64) *EventBus {
	if maxLen <= 0 {
		maxLen = DefaultStreamMaxLen
	}
	return &EventBus{rdb: c.Underlying(), maxLen: maxLen}
}

// Publish sends payload to a Pub/Sub channel.
func (b *EventBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// StreamAppend adds payload to stream, trimming it to roughly maxLen entries.
func (b *EventBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": payload},
	}
	if err := b.rdb.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("redis: stream append %s: %w", stream, err)
	}
	return nil
}

// StreamRead reads up to count messages after lastID. Use "0" to read from
// the beginning. An empty stream yields no messages and no error.
func (b *EventBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	results, err := b.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: stream read %s: %w", stream, err)
	}

	var messages []domain.StreamMessage
	for _, s := range results {
		for _, msg := range s.Messages {
			if data, ok := payloadBytes(msg.Values["payload"]); ok {
				messages = append(messages, domain.StreamMessage{ID: msg.ID, Payload: data})
			}
		}
	}
	return messages, nil
}

func payloadBytes(v interface{}) ([]byte, bool) {
	switch p := v.(type) {
	case string:
		return []byte(p), true
	case []byte:
		return p, true
	default:
		return nil, false
	}
}

var _ domain.EventBus = (*EventBus)(nil)
