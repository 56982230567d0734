package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Type != IssueCreated {
			return errors.New("unexpected event type " + e.Type)
		}
		if e.Key != "project-1" || e.Actor != "a@example.com" {
			return errors.New("unexpected key or actor")
		}
		return nil
	})

	pub := NewKafkaPublisherWithProducer(producer, "sprintium.events")
	err := pub.Publish(context.Background(), New(IssueCreated, "project-1", "a@example.com", map[string]string{"title": "Bug"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestKafkaPublisher_PublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewKafkaPublisherWithProducer(producer, "sprintium.events")
	err := pub.Publish(context.Background(), New(ProjectDeleted, "p", "a@example.com", nil))
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("expected ErrOutOfBrokers, got %v", err)
	}
}

// stalledProducer never hears back from the broker until released.
type stalledProducer struct {
	sarama.SyncProducer
	release chan struct{}
}

func (s *stalledProducer) SendMessage(*sarama.ProducerMessage) (int32, int64, error) {
	<-s.release
	return 0, 0, sarama.ErrRequestTimedOut
}

func TestKafkaPublisher_PublishHonorsContext(t *testing.T) {
	producer := &stalledProducer{release: make(chan struct{})}
	defer close(producer.release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	pub := NewKafkaPublisherWithProducer(producer, "sprintium.events")
	start := time.Now()
	err := pub.Publish(ctx, New(IssueCreated, "p", "a@example.com", nil))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Publish blocked for %v after the deadline", elapsed)
	}
}

func TestNew(t *testing.T) {
	e := New(UserRegistered, "u@example.com", "u@example.com", nil)
	if e.ID == "" {
		t.Error("expected event ID")
	}
	if e.OccurredAt.IsZero() {
		t.Error("expected timestamp")
	}
	if e.Type != UserRegistered {
		t.Errorf("unexpected type %q", e.Type)
	}
}

func TestNewProducerConfig(t *testing.T) {
	config := NewProducerConfig()
	if !config.Producer.Return.Successes {
		t.Error("sync producer requires Return.Successes")
	}
	if config.Producer.RequiredAcks != sarama.WaitForAll {
		t.Errorf("expected WaitForAll, got %v", config.Producer.RequiredAcks)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("invalid config: %v", err)
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	if err := p.Publish(context.Background(), New(IssueDeleted, "", "", nil)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
