package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message represents a message read from a Redis stream.
type Message struct {
	ID    string     // Redis message ID (e.g., "1702000000000-0")
	Event AlertEvent // Parsed event data
}

// Consumer defines the interface for consuming events from a stream.
type Consumer interface {
	// EnsureGroup creates the consumer group if it doesn't exist.
	EnsureGroup(ctx context.Context, stream, group string) error

	// Read returns messages never delivered to any consumer of the group.
	// block: how long to wait for new messages (0 = forever)
	Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error)

	// ReadPending returns messages delivered to this consumer but never acknowledged.
	ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error)

	// Ack removes messages from the consumer's pending list.
	Ack(ctx context.Context, stream, group string, messageIDs ...string) error

	// Pending returns the number of unacknowledged messages for the group.
	Pending(ctx context.Context, stream, group string) (int64, error)
}

// RedisConsumer implements Consumer using Redis Streams.
type RedisConsumer struct {
	client redis.Cmdable
	logger *slog.Logger
}

// NewConsumer creates a new Consumer backed by Redis Streams.
func NewConsumer(client redis.Cmdable, logger *slog.Logger) *RedisConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisConsumer{client: client, logger: logger.With("component", "consumer")}
}

// EnsureGroup runs XGROUP CREATE ... MKSTREAM starting at "0", so events
// published before the first worker started are still processed.
func (c *RedisConsumer) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			c.logger.Debug("consumer group exists", "stream", stream, "group", group)
			return nil
		}
		c.logger.Error("ensure group failed", "stream", stream, "group", group, "error", err)
		return fmt.Errorf("create consumer group: %w", err)
	}

	c.logger.Info("consumer group created", "stream", stream, "group", group)
	return nil
}

// Read reads new messages using XREADGROUP with the ">" ID.
func (c *RedisConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	startTime := time.Now()

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		// block timeout
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	messages := c.parse(ctx, group, streams)
	c.logger.Debug("read",
		"stream", stream,
		"consumer", consumer,
		"count", len(messages),
		"duration", time.Since(startTime),
	)
	return messages, nil
}

// ReadPending uses the "0" ID to replay this consumer's unacknowledged messages
// after a crash.
func (c *RedisConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, "0"},
		Count:    count,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup pending: %w", err)
	}

	return c.parse(ctx, group, streams), nil
}

// parse acks and skips malformed messages so they do not stay pending forever.
func (c *RedisConsumer) parse(ctx context.Context, group string, streams []redis.XStream) []Message {
	var messages []Message
	for _, s := range streams {
		for _, msg := range s.Messages {
			event, err := ParseAlertEvent(msg.Values)
			if err != nil {
				c.logger.Warn("dropping malformed message", "msg_id", msg.ID, "error", err)
				if ackErr := c.client.XAck(ctx, s.Stream, group, msg.ID).Err(); ackErr != nil {
					c.logger.Warn("ack of malformed message failed", "msg_id", msg.ID, "error", ackErr)
				}
				continue
			}
			messages = append(messages, Message{ID: msg.ID, Event: event})
		}
	}
	return messages
}

// Ack acknowledges messages using XACK.
func (c *RedisConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	if err := c.client.XAck(ctx, stream, group, messageIDs...).Err(); err != nil {
		c.logger.Error("ack failed", "stream", stream, "group", group, "ids", messageIDs, "error", err)
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// Pending returns the count of pending messages for the consumer group.
func (c *RedisConsumer) Pending(ctx context.Context, stream, group string) (int64, error) {
	info, err := c.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending: %w", err)
	}
	return info.Count, nil
}
