package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/telecheck/zonewatch/internal/models"
)

// KafkaSink publishes alerts to a Kafka topic consumed by the external
// notification service. It implements Sink.
type KafkaSink struct {
	writer *kafkago.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafkago.LeastBytes{},
			RequiredAcks: kafkago.RequireAll,
		},
	}
}

func (s *KafkaSink) Deliver(ctx context.Context, alert models.CriticalAlert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("serialize alert: %w", err)
	}

	return s.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(alert.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_type", Value: []byte(alert.Type)},
			{Key: "created_at", Value: []byte(alert.CreatedAt.Format(time.RFC3339))},
		},
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
