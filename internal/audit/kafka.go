package audit

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

// KafkaSink publishes audit events to a Kafka topic. Messages are keyed by
// subject so all events for one subject land on the same partition.
type KafkaSink struct {
	writer *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
			Async:    true,
		},
	}
}

func (s *KafkaSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SubjectID),
		Value: data,
	})
}

func (s *KafkaSink) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
