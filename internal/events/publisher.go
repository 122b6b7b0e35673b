package events

import (
	"context"
	"encoding/json"
	"fmt"

	"qa-service/internal/models"
)

// Producer is satisfied by client.KafkaProducer.
type Producer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// KafkaPublisher writes question lifecycle events keyed by question id, so
// events for one question stay ordered within a partition.
type KafkaPublisher struct {
	producer Producer
	topic    string
}

func NewKafkaPublisher(producer Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event models.QuestionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode question event: %w", err)
	}
	headers := map[string]string{
		"event_type": string(event.Type),
		"user_id":    event.UserID,
	}
	return p.producer.ProduceMessage(ctx, p.topic, []byte(event.QuestionID), payload, headers)
}
