package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/akylbek/payment-system/checkout-orchestrator/internal/models"
)

const (
	StateChangedTopic = "checkout.payment.state.changed"

	stateBatchTimeout = 10 * time.Millisecond
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// NewStateWriter builds the writer for attempt state events.
func NewStateWriter(brokers string) *kafka.Writer {
	return &kafka.Writer{
		Addr:     kafka.TCP(brokers),
		Topic:    StateChangedTopic,
		Balancer: &kafka.Hash{},
		// Events go out one at a time on the submit path.
		BatchTimeout: stateBatchTimeout,
	}
}

// PublishStateChange writes the event keyed by attempt id so every state of
// one attempt lands on the same partition in order.
func (p *KafkaPublisher) PublishStateChange(ctx context.Context, event models.AttemptStateEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal state event: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AttemptID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "state", Value: []byte(event.State)},
		},
	})
}
