package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher defines the interface for publishing events to a stream.
type Publisher interface {
	// Publish adds an event to the specified stream.
	// Returns the message ID assigned by Redis.
	Publish(ctx context.Context, stream string, event AlertEvent) (messageID string, err error)
}

// RedisPublisher implements Publisher using Redis Streams.
type RedisPublisher struct {
	client redis.Cmdable
	logger *slog.Logger
}

// NewPublisher creates a new Publisher backed by Redis Streams.
func NewPublisher(client redis.Cmdable, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{client: client, logger: logger.With("component", "publisher")}
}

// Publish adds an event to the stream using XADD with an auto-generated ID.
func (p *RedisPublisher) Publish(ctx context.Context, stream string, event AlertEvent) (string, error) {
	startTime := time.Now()

	values, err := event.ToMap()
	if err != nil {
		p.logger.Error("publish failed", "stream", stream, "type", event.Type, "error", err)
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		p.logger.Error("publish failed", "stream", stream, "type", event.Type, "error", err)
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	p.logger.Info("published",
		"stream", stream,
		"type", event.Type,
		"msg_id", messageID,
		"earthquake_id", event.Event.ID,
		"magnitude", event.Event.Magnitude,
		"duration", time.Since(startTime),
	)
	return messageID, nil
}

// PublishEarthquake publishes a candidate event on the alert stream.
func (p *RedisPublisher) PublishEarthquake(ctx context.Context, event AlertEvent) (string, error) {
	return p.Publish(ctx, StreamAlerts, event)
}
