// Package channel is a thin client for the asynchronous message bus the
// orchestrator exchanges with the AI agent. It rides on Redis Streams:
// XADD for publishing and consumer groups for at-least-once delivery.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/valyala/bytebufferpool"

	"thoughtpost/pkg/config"
	"thoughtpost/pkg/logger"
	"thoughtpost/pkg/telemetry"
)

// Handler processes one delivered message. A non-nil error triggers the
// bounded retry policy; after that the message is skipped.
type Handler func(ctx context.Context, key string, payload []byte) error

// ErrPayloadTooLarge is returned by Publish when the encoded message
// exceeds the configured ceiling.
var ErrPayloadTooLarge = errors.New("channel payload too large")

// Bus is a Redis Streams message bus client. A single Bus serves any
// number of streams; consumers run one goroutine per Subscribe call.
type Bus struct {
	rdb        *redis.Client
	group      string
	consumer   string
	maxRetries int
	retryDelay time.Duration
	block      time.Duration
	maxPayload int64
}

// Connect dials Redis and verifies the connection.
func Connect(ctx context.Context, cfg config.ChannelConfig) (*Bus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	b := &Bus{
		rdb:        rdb,
		group:      cfg.Group,
		consumer:   cfg.Consumer,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay.Duration(),
		block:      cfg.Block.Duration(),
		maxPayload: cfg.MaxPayload.Int64(),
	}
	if b.group == "" {
		b.group = "thoughtpost"
	}
	if b.consumer == "" {
		b.consumer = "worker-1"
	}
	if b.maxRetries <= 0 {
		b.maxRetries = 3
	}
	if b.retryDelay <= 0 {
		b.retryDelay = 2 * time.Second
	}
	if b.block <= 0 {
		b.block = 5 * time.Second
	}
	logger.Info("channel_connected", "addr", cfg.RedisAddr, "group", b.group)
	return b, nil
}

// Close releases the underlying connection.
func (b *Bus) Close() error { return b.rdb.Close() }

// Publish encodes v as JSON and appends it to stream, keyed for
// correlation. Encoding goes through a pooled buffer to keep hot-path
// allocations down.
func (b *Bus) Publish(ctx context.Context, stream, key string, v any) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", stream, err)
	}
	if b.maxPayload > 0 && int64(buf.Len()) > b.maxPayload {
		return fmt.Errorf("%w: %d bytes on %s", ErrPayloadTooLarge, buf.Len(), stream)
	}
	err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"key": key, "payload": buf.String()},
	}).Err()
	if err != nil {
		logger.Error("channel_publish_failed", "stream", stream, "key", key, "error", err)
		return err
	}
	telemetry.ChannelPublished(stream)
	logger.Debug("channel_published", "stream", stream, "key", key, "bytes", buf.Len())
	return nil
}

// Subscribe consumes stream through the bus consumer group until ctx is
// done. Each message is handed to h; failures are retried in place up to
// the configured ceiling with a fixed delay, then acked and skipped so a
// poison message can never stall the stream.
func (b *Bus) Subscribe(ctx context.Context, stream string, h Handler) error {
	if err := b.ensureGroup(ctx, stream); err != nil {
		return err
	}
	logger.Info("channel_subscribed", "stream", stream, "group", b.group, "consumer", b.consumer)

	// First drain entries delivered to this consumer before a restart, then
	// switch to new deliveries.
	cursor := "0"
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		res, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.group,
			Consumer: b.consumer,
			Streams:  []string{stream, cursor},
			Count:    16,
			Block:    b.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				cursor = ">"
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("channel_read_failed", "stream", stream, "error", err)
			select {
			case <-time.After(b.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		delivered := 0
		for _, sr := range res {
			for _, msg := range sr.Messages {
				delivered++
				b.process(ctx, stream, msg, h)
			}
		}
		// An empty backlog read means the pending scan is complete.
		if cursor != ">" && delivered == 0 {
			cursor = ">"
		}
	}
}

func (b *Bus) ensureGroup(ctx context.Context, stream string) error {
	err := b.rdb.XGroupCreateMkStream(ctx, stream, b.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group on %s: %w", stream, err)
	}
	return nil
}

func (b *Bus) process(ctx context.Context, stream string, msg redis.XMessage, h Handler) {
	key, _ := msg.Values["key"].(string)
	payload, _ := msg.Values["payload"].(string)
	telemetry.ChannelConsumed(stream)

	var lastErr error
	for attempt := 1; attempt <= b.maxRetries; attempt++ {
		lastErr = h(ctx, key, []byte(payload))
		if lastErr == nil {
			b.ack(ctx, stream, msg.ID)
			return
		}
		logger.Warn("channel_handler_error", "stream", stream, "id", msg.ID,
			"key", key, "attempt", attempt, "error", lastErr)
		if attempt < b.maxRetries {
			select {
			case <-time.After(b.retryDelay):
			case <-ctx.Done():
				return
			}
		}
	}
	// Retries exhausted: skip the message rather than wedge the group.
	telemetry.ChannelPoisonSkipped(stream)
	logger.Error("channel_message_skipped", "stream", stream, "id", msg.ID,
		"key", key, "retries", b.maxRetries, "error", lastErr)
	b.ack(ctx, stream, msg.ID)
}

func (b *Bus) ack(ctx context.Context, stream, id string) {
	if err := b.rdb.XAck(ctx, stream, b.group, id).Err(); err != nil {
		logger.Error("channel_ack_failed", "stream", stream, "id", id, "error", err)
	}
}
