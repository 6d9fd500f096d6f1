// Package events delivers domain events raised by aggregates to downstream
// consumers. The Redis publisher fans events out over pub/sub channels for
// webhook workers and integrations; the logging publisher is the fallback
// for single-instance deployments without Redis.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/returnhub/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// channelPrefix namespaces the pub/sub channels; the event type is appended
// so consumers can subscribe to a pattern like "returns:events:*" or to a
// single event type.
const channelPrefix = "returns:events:"

// envelope is the wire shape published for every event. Type-specific
// payload fields are flattened alongside the envelope fields by the
// embedded event marshalling.
type envelope struct {
	Type      string          `json:"type"`
	TenantID  string          `json:"tenant_id"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// RedisPublisher publishes domain events to Redis pub/sub
type RedisPublisher struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPublisher creates a publisher over an existing Redis client
func NewRedisPublisher(client *redis.Client, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

// Publish serializes the event and publishes it on a per-type channel.
// The aggregate state has already committed when this runs, so failures
// are surfaced to the caller for logging but never roll anything back.
func (p *RedisPublisher) Publish(ctx context.Context, event shared.DomainEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: failed to serialize %s: %w", event.EventType(), err)
	}
	msg, err := json.Marshal(envelope{
		Type:      event.EventType(),
		TenantID:  event.TenantID().String(),
		Timestamp: event.OccurredAt().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("events: failed to build envelope for %s: %w", event.EventType(), err)
	}

	channel := channelPrefix + event.EventType()
	if err := p.client.Publish(ctx, channel, msg).Err(); err != nil {
		return fmt.Errorf("events: failed to publish %s: %w", event.EventType(), err)
	}
	p.logger.Debug("Domain event published",
		zap.String("channel", channel),
		zap.String("aggregate_id", event.AggregateID().String()))
	return nil
}

// LoggingPublisher writes events to the structured log. Used when no Redis
// is configured so the event stream is still observable.
type LoggingPublisher struct {
	logger *zap.Logger
}

// NewLoggingPublisher creates a logging publisher
func NewLoggingPublisher(logger *zap.Logger) *LoggingPublisher {
	return &LoggingPublisher{logger: logger}
}

// Publish logs the event with its full payload
func (p *LoggingPublisher) Publish(_ context.Context, event shared.DomainEvent) error {
	p.logger.Info("Domain event",
		zap.String("event_type", event.EventType()),
		zap.String("tenant_id", event.TenantID().String()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.Any("payload", event))
	return nil
}

// Interface checks
var (
	_ shared.EventPublisher = (*RedisPublisher)(nil)
	_ shared.EventPublisher = (*LoggingPublisher)(nil)
)
