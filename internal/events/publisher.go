package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/propia/deal-gateway/internal/queue"
	"github.com/propia/deal-gateway/pkg/redis"
)

// Publisher is the engine's only view of the realtime fabric. Handlers and
// services publish through it; tests swap in a fake.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// RedisPublisher fans an event out two ways: a pub/sub channel per affected
// id for connected clients, and the durable stream the notifier consumes.
// The stream append is the at-least-once leg; pub/sub is best effort.
type RedisPublisher struct {
	adapter redis.RedisAdapter
	stream  *queue.Queue
}

func NewRedisPublisher(adapter redis.RedisAdapter, stream *queue.Queue) *RedisPublisher {
	return &RedisPublisher{
		adapter: adapter,
		stream:  stream,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	if p.stream != nil {
		if _, err := p.stream.PublishJSON(ctx, event, map[string]string{"topic": event.Topic}); err != nil {
			return fmt.Errorf("enqueue event: %w", err)
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	for _, ch := range event.Channels() {
		// Best effort: a failed fan-out never fails the operation that
		// produced the event.
		_ = p.adapter.Client().Publish(ctx, ch, payload).Err()
	}
	return nil
}
