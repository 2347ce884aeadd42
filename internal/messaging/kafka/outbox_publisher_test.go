package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

func testOutboxEvent() domain.OutboxEvent {
	return domain.OutboxEvent{
		ID:            "outbox-1",
		TenantID:      "tenant-1",
		AggregateType: "order",
		AggregateID:   "order-123",
		EventType:     "order.placed",
		Payload:       []byte(`{"order_id":"order-123","status":"placed"}`),
		CreatedAt:     time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC),
	}
}

func TestOutboxPublisher_Publish(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(raw []byte) error {
		var envelope struct {
			ID          string          `json:"id"`
			TenantID    string          `json:"tenant_id"`
			EventType   string          `json:"event_type"`
			Payload     json.RawMessage `json:"payload"`
			OccurredAt  time.Time       `json:"occurred_at"`
			PublishedAt time.Time       `json:"published_at"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return err
		}
		if envelope.ID != "outbox-1" || envelope.TenantID != "tenant-1" {
			t.Errorf("envelope identity = %s/%s", envelope.ID, envelope.TenantID)
		}
		if envelope.EventType != "order.placed" {
			t.Errorf("event type = %q", envelope.EventType)
		}
		if envelope.PublishedAt.IsZero() {
			t.Error("published_at is not set")
		}
		return nil
	})

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-publisher-test"),
	}
	publisher := NewOutboxPublisher(producer, TopicOrderEvents)

	if err := publisher.Publish(testOutboxEvent()); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishProducerError(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-publisher-test"),
	}
	publisher := NewOutboxPublisher(producer, TopicOrderEvents)

	if err := publisher.Publish(testOutboxEvent()); err == nil {
		t.Fatal("expected producer error to surface")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_NotInitialized(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil, "")
	if err := publisher.Publish(testOutboxEvent()); err == nil {
		t.Fatal("expected error for nil producer")
	}
}

func TestOutboxPublisher_KeyFallsBackToEventID(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndSucceed()

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-publisher-test"),
	}
	publisher := NewOutboxPublisher(producer, TopicOrderEvents)

	event := testOutboxEvent()
	event.AggregateID = ""
	if err := publisher.Publish(event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}
