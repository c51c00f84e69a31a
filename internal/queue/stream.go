// Package queue implements the Stream Client (C1): at-least-once
// delivery over Redis Streams with consumer groups, a per-message
// retry counter, and a dead-letter stream for messages that exhaust
// their retry budget.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vladmesh/secretary/internal/cache"
	"github.com/vladmesh/secretary/internal/observability"
	"github.com/vladmesh/secretary/internal/storage"
	"github.com/vladmesh/secretary/pkg/models"
)

// dedupeTTL bounds how long a delivered message ID is remembered by
// the in-process guard; it only needs to cover back-to-back
// redeliveries within one poll loop, not the Redis retry window.
const dedupeTTL = 30 * time.Second

// StreamClient publishes to and consumes from a single Redis stream
// under one consumer group.
type StreamClient struct {
	rdb          *redis.Client
	stream       string
	group        string
	consumer     string
	maxRetries   int
	retryWindow  time.Duration
	blockTimeout time.Duration
	logger       *observability.Logger
	metrics      *observability.Metrics
	dedupe       *cache.DedupeCache
	log          storage.QueueLogStore
}

// Option customizes a StreamClient beyond Config.
type Option func(*StreamClient)

// WithLogStore records every Ack/Fail outcome to a local observability
// table (internal/storage). Without this option outcomes are only
// logged/metriced, not persisted.
func WithLogStore(log storage.QueueLogStore) Option {
	return func(c *StreamClient) { c.log = log }
}

// Config configures a StreamClient.
type Config struct {
	Stream       string
	Group        string
	Consumer     string
	MaxRetries   int
	RetryWindow  time.Duration
	BlockTimeout time.Duration
}

// New creates a StreamClient and ensures the consumer group exists,
// creating the stream itself (via MKSTREAM) on first use.
func New(ctx context.Context, rdb *redis.Client, cfg Config, logger *observability.Logger, metrics *observability.Metrics, opts ...Option) (*StreamClient, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryWindow <= 0 {
		cfg.RetryWindow = time.Hour
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}

	err := rdb.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !isBusyGroupErr(err) {
		return nil, fmt.Errorf("create consumer group %s on %s: %w", cfg.Group, cfg.Stream, err)
	}

	client := &StreamClient{
		rdb:          rdb,
		stream:       cfg.Stream,
		group:        cfg.Group,
		consumer:     cfg.Consumer,
		maxRetries:   cfg.MaxRetries,
		retryWindow:  cfg.RetryWindow,
		blockTimeout: cfg.BlockTimeout,
		logger:       logger,
		metrics:      metrics,
		dedupe:       cache.NewDedupeCache(cache.DedupeCacheOptions{TTL: dedupeTTL, MaxSize: 10000}),
		log:          storage.NoopStore{},
	}

	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}

// dlqStream is the dead-letter stream name derived from the source stream.
func (c *StreamClient) dlqStream() string {
	return c.stream + ":dlq"
}

func (c *StreamClient) retryKey(messageID string) string {
	return "msg_retry:" + messageID
}

// Publish appends payload to the stream as a single "payload" field
// holding its JSON encoding.
func (c *StreamClient) Publish(ctx context.Context, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream,
		Values: map[string]any{"payload": string(raw)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", c.stream, err)
	}

	if c.logger != nil {
		c.logger.Info(ctx, observability.EventQueuePush, "published message", "stream", c.stream, "message_id", id)
	}
	if c.metrics != nil {
		c.reportDepth(ctx)
	}
	return id, nil
}

// Message is a single delivered stream entry, decoded and annotated
// with its current retry count.
type Message struct {
	ID         string
	Payload    json.RawMessage
	RetryCount int
	// Duplicate is true when this exact message ID was already handed
	// to this consumer process within the dedupe window, e.g. a
	// pending-entry redelivery racing the prior handler's Ack. The
	// retry counter is not incremented for a duplicate; callers should
	// Ack it without re-running side effects.
	Duplicate bool
	// UserID, when known, is carried onto a DLQ entry's optional
	// user_id field (spec §4.1) on Fail. Callers that can cheaply
	// classify the payload's user before calling Fail should set it;
	// zero means "unknown" and the field is simply omitted.
	UserID int64
}

// ErrNoMessages is returned by Read when the block timeout elapses
// with nothing delivered.
var ErrNoMessages = errors.New("no messages available")

// Read blocks up to the configured BlockTimeout for the next message
// delivered to this consumer, incrementing and returning its retry
// counter so the caller can distinguish a first delivery from a
// redelivery.
func (c *StreamClient) Read(ctx context.Context) (*Message, error) {
	result, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    1,
		Block:    c.blockTimeout,
	}).Result()

	if errors.Is(err, redis.Nil) {
		return nil, ErrNoMessages
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s: %w", c.stream, err)
	}
	if len(result) == 0 || len(result[0].Messages) == 0 {
		return nil, ErrNoMessages
	}

	entry := result[0].Messages[0]
	payload, _ := entry.Values["payload"].(string)

	if c.dedupe.Check(cache.MessageDedupeKey(c.stream, entry.ID)) {
		if c.logger != nil {
			c.logger.Info(ctx, observability.EventQueuePop, "duplicate delivery suppressed", "stream", c.stream, "message_id", entry.ID)
		}
		return &Message{ID: entry.ID, Payload: json.RawMessage(payload), Duplicate: true}, nil
	}

	retryCount, err := c.incrementRetry(ctx, entry.ID)
	if err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.Info(ctx, observability.EventQueuePop, "read message", "stream", c.stream, "message_id", entry.ID, "retry_count", retryCount)
	}

	return &Message{ID: entry.ID, Payload: json.RawMessage(payload), RetryCount: retryCount}, nil
}

func (c *StreamClient) incrementRetry(ctx context.Context, messageID string) (int, error) {
	key := c.retryKey(messageID)
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr retry counter for %s: %w", messageID, err)
	}
	if count == 1 {
		_ = c.rdb.Expire(ctx, key, c.retryWindow).Err()
	}
	if c.metrics != nil {
		c.metrics.RecordMessageRetry(c.stream, int(count))
	}
	return int(count), nil
}

// Ack acknowledges successful processing of a message and clears its
// retry counter.
func (c *StreamClient) Ack(ctx context.Context, messageID string) error {
	if err := c.rdb.XAck(ctx, c.stream, c.group, messageID).Err(); err != nil {
		return fmt.Errorf("xack %s/%s: %w", c.stream, messageID, err)
	}
	_ = c.rdb.Del(ctx, c.retryKey(messageID)).Err()
	_ = c.log.RecordOutcome(ctx, models.QueueMessageLog{
		Stream: c.stream, MessageID: messageID, Outcome: "acked",
	})
	return nil
}

// Fail records a failed processing attempt. If the message's retry
// counter has reached MaxRetries, it is moved to the dead-letter
// stream and acknowledged on the source stream; otherwise it is left
// pending for the consumer group to redeliver.
func (c *StreamClient) Fail(ctx context.Context, msg *Message, cause error) error {
	if msg.RetryCount < c.maxRetries {
		if c.logger != nil {
			c.logger.Warn(ctx, observability.EventError, "message processing failed, will retry",
				"stream", c.stream, "message_id", msg.ID, "retry_count", msg.RetryCount, "error", cause)
		}
		_ = c.log.RecordOutcome(ctx, models.QueueMessageLog{
			Stream: c.stream, MessageID: msg.ID, UserID: msg.UserID, Outcome: "retried",
			RetryCount: msg.RetryCount, ErrorType: errorTypeName(cause), ErrorMessage: cause.Error(),
		})
		return nil
	}

	if c.logger != nil {
		c.logger.Error(ctx, observability.EventError, "message exhausted retries, moving to DLQ",
			"stream", c.stream, "message_id", msg.ID, "retry_count", msg.RetryCount, "error", cause)
	}

	dlqEntry := map[string]any{
		"original_message_id": msg.ID,
		"payload":             string(msg.Payload),
		"retry_count":         msg.RetryCount,
		"error_type":          errorTypeName(cause),
		"error_message":       cause.Error(),
		"failed_at":           time.Now().Format(time.RFC3339),
	}
	if msg.UserID != 0 {
		dlqEntry["user_id"] = msg.UserID
	}
	if _, err := c.rdb.XAdd(ctx, &redis.XAddArgs{Stream: c.dlqStream(), Values: dlqEntry}).Result(); err != nil {
		return fmt.Errorf("xadd dlq %s: %w", c.dlqStream(), err)
	}

	if err := c.rdb.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack %s/%s: %w", c.stream, msg.ID, err)
	}
	_ = c.rdb.Del(ctx, c.retryKey(msg.ID)).Err()
	_ = c.log.RecordOutcome(ctx, models.QueueMessageLog{
		Stream: c.stream, MessageID: msg.ID, UserID: msg.UserID, Outcome: "dlq",
		RetryCount: msg.RetryCount, ErrorType: errorTypeName(cause), ErrorMessage: cause.Error(),
	})
	if c.metrics != nil {
		c.reportDepth(ctx)
		c.reportDLQDepth(ctx)
	}
	return nil
}

// errorTypeName derives the DLQ entry's error_type field (spec §4.1)
// from the concrete Go type backing cause, analogous to the injected
// exception's class name in scenario 4.
func errorTypeName(cause error) string {
	if cause == nil {
		return ""
	}
	return reflect.TypeOf(cause).String()
}

// RequeueFromDLQ moves a dead-lettered entry back onto the main stream
// for reprocessing (spec §4.1's operator tool) and removes it from the
// DLQ so it is not requeued twice. The entry's original payload is
// republished byte-for-byte.
func (c *StreamClient) RequeueFromDLQ(ctx context.Context, dlqMessageID string) (string, error) {
	entries, err := c.rdb.XRange(ctx, c.dlqStream(), dlqMessageID, dlqMessageID).Result()
	if err != nil {
		return "", fmt.Errorf("xrange dlq %s/%s: %w", c.dlqStream(), dlqMessageID, err)
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("dlq entry %s not found on %s", dlqMessageID, c.dlqStream())
	}

	payload, _ := entries[0].Values["payload"].(string)

	newID, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream,
		Values: map[string]any{"payload": payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s (requeue from dlq): %w", c.stream, err)
	}

	if err := c.rdb.XDel(ctx, c.dlqStream(), dlqMessageID).Err(); err != nil {
		return "", fmt.Errorf("xdel dlq %s/%s: %w", c.dlqStream(), dlqMessageID, err)
	}

	if c.logger != nil {
		c.logger.Info(ctx, observability.EventQueuePush, "requeued message from dlq",
			"dlq_stream", c.dlqStream(), "dlq_message_id", dlqMessageID, "new_message_id", newID)
	}
	return newID, nil
}

func (c *StreamClient) reportDepth(ctx context.Context) {
	length, err := c.rdb.XLen(ctx, c.stream).Result()
	if err == nil {
		c.metrics.SetQueueDepth(c.stream, length)
	}
}

func (c *StreamClient) reportDLQDepth(ctx context.Context) {
	length, err := c.rdb.XLen(ctx, c.dlqStream()).Result()
	if err == nil {
		c.metrics.SetDLQDepth(c.dlqStream(), length)
	}
}
