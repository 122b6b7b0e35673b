package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"qa-service/internal/models"
)

type recordingProducer struct {
	topic   string
	key     []byte
	value   []byte
	headers map[string]string
	err     error
}

func (r *recordingProducer) ProduceMessage(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	r.topic, r.key, r.value, r.headers = topic, key, value, headers
	return r.err
}

func TestPublishKeysByQuestion(t *testing.T) {
	prod := &recordingProducer{}
	pub := NewKafkaPublisher(prod, "question-events")

	event := models.QuestionEvent{
		Type:       models.EventQuestionAnswered,
		QuestionID: "q1",
		UserID:     "u1",
		Status:     models.StatusAnswered,
		OccurredAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
	}
	if err := pub.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if prod.topic != "question-events" || string(prod.key) != "q1" {
		t.Fatalf("unexpected topic/key: %s/%s", prod.topic, prod.key)
	}
	if prod.headers["event_type"] != "question.answered" {
		t.Fatalf("unexpected headers: %v", prod.headers)
	}

	var decoded models.QuestionEvent
	if err := json.Unmarshal(prod.value, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Status != models.StatusAnswered || !decoded.OccurredAt.Equal(event.OccurredAt) {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestPublishPropagatesProducerError(t *testing.T) {
	boom := errors.New("broker down")
	pub := NewKafkaPublisher(&recordingProducer{err: boom}, "t")
	if err := pub.Publish(context.Background(), models.QuestionEvent{QuestionID: "q"}); !errors.Is(err, boom) {
		t.Fatalf("expected broker error, got %v", err)
	}
}
