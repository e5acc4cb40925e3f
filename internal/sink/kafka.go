package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gyaneshwarpardhi/alertrelay/internal/alert"
)

const kafkaWriteTimeout = 10 * time.Second

// Kafka publishes alerts as JSON to a topic, keyed by alert id.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka creates a writer for a comma-separated broker list.
func NewKafka(brokers, topic string) (*Kafka, error) {
	if brokers == "" {
		return nil, fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	list := strings.Split(brokers, ",")
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}
	return &Kafka{writer: &kafka.Writer{
		Addr:                   kafka.TCP(list...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           kafkaWriteTimeout,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}, nil
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Publish(ctx context.Context, a alert.Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling alert: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(a.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "currency", Value: []byte(a.Currency)},
			{Key: "seq", Value: []byte(strconv.FormatUint(a.Seq, 10))},
		},
		Time: a.Timestamp,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing alert %s to kafka: %w", a.ID, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
