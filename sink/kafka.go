package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/slackmgr/s3ingest/processor"
	"github.com/slackmgr/types"
)

// kafkaWriter is the subset of *kafka.Writer used by [Kafka].
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes records to a Kafka topic, keyed by object key so that the
// records of one object land on one partition in file order.
type Kafka struct {
	writer kafkaWriter
	topic  string
	logger types.Logger
}

var _ processor.Sink = (*Kafka)(nil)

// NewKafka returns a Kafka sink for topic on brokers.
func NewKafka(brokers []string, topic string, logger types.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one Kafka broker is required")
	}

	if topic == "" {
		return nil, errors.New("the Kafka topic cannot be empty")
	}

	return newKafka(newKafkaWriter(brokers, topic), topic, logger), nil
}

// newKafkaWriter returns a writer that sends every message as soon as it is
// written. Emit blocks on each record, so a batch never holds more than one
// message and waiting for BatchTimeout would only add latency.
func newKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchSize:    1,
		BatchTimeout: time.Millisecond,
	}
}

func newKafka(w kafkaWriter, topic string, logger types.Logger) *Kafka {
	return &Kafka{
		writer: w,
		topic:  topic,
		logger: logger.WithField("plugin", "kafka").WithField("topic", topic),
	}
}

// Emit publishes rec synchronously.
func (k *Kafka) Emit(ctx context.Context, rec processor.Record, meta processor.Metadata) error {
	value, err := json.Marshal(NewEvent(rec, meta))
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(meta.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "bucket", Value: []byte(meta.Bucket)},
			{Key: "folder", Value: []byte(meta.Folder)},
		},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish record to %s: %w", k.topic, err)
	}

	return nil
}

// Close flushes pending writes and closes the connection to the brokers.
func (k *Kafka) Close() error {
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}

	k.logger.Info("Kafka writer closed")

	return nil
}
