// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"sprintium/internal/metrics"
)

// Event types.
const (
	UserRegistered         = "user.registered"
	PasswordResetRequested = "user.password_reset_requested"
	PasswordReset          = "user.password_reset"
	ProjectCreated         = "project.created"
	ProjectUpdated         = "project.updated"
	ProjectDeleted         = "project.deleted"
	MemberAdded            = "member.added"
	MemberRoleUpdated      = "member.role_updated"
	MemberRemoved          = "member.removed"
	IssueCreated           = "issue.created"
	IssueUpdated           = "issue.updated"
	IssueDeleted           = "issue.deleted"
)

// Event is the envelope written to the topic. Key groups related events on one
// partition, usually the project ID.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

// New builds an event with a fresh ID and the current time.
func New(eventType, key, actor string, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher delivers domain events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// KafkaPublisher writes events to a single topic with a synchronous producer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducerConfig returns the producer settings used for domain events.
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.ClientID = "sprintium"
	return config
}

// NewKafkaPublisher connects a synchronous producer to brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish sends e and waits for the broker acknowledgement or for ctx to end,
// whichever comes first.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(e.Type, "error").Inc()
		return fmt.Errorf("failed to marshal %s event: %w", e.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.Key),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(e.Type)},
		},
	}

	// SendMessage has no context of its own; the send keeps running in the
	// background if ctx ends first.
	type result struct {
		partition int32
		offset    int64
		err       error
	}
	done := make(chan result, 1)
	go func() {
		partition, offset, err := p.producer.SendMessage(msg)
		done <- result{partition, offset, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		metrics.EventsPublishedTotal.WithLabelValues(e.Type, "error").Inc()
		return fmt.Errorf("failed to send %s event: %w", e.Type, ctx.Err())
	}
	partition, offset := res.partition, res.offset
	if res.err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(e.Type, "error").Inc()
		return fmt.Errorf("failed to send %s event: %w", e.Type, res.err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(e.Type, "ok").Inc()
	slog.DebugContext(ctx, "published event",
		slog.String("type", e.Type),
		slog.Int("partition", int(partition)),
		slog.Int64("offset", offset),
	)
	return nil
}

// Close flushes and closes the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NopPublisher discards events. Used when Kafka is not configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
