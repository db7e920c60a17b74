package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/clover/pkg/tracing"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON messages to a topic
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return newProducer(writer, cfg.Topic, logger)
}

func newProducer(writer messageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Topic returns the topic the producer writes to
func (p *Producer) Topic() string {
	return p.topic
}

// Publish writes payload as JSON. Messages with the same key land on the same partition.
func (p *Producer) Publish(ctx context.Context, key, eventType string, payload any) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.Publish")
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", eventType, err)
	}

	headers := []kafka.Header{
		{Key: HeaderEventType, Value: []byte(eventType)},
	}
	if tp := tracing.GetTraceParent(ctx); tp != "" {
		headers = append(headers, kafka.Header{Key: HeaderTraceParent, Value: []byte(tp)})
	}

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"topic":      p.topic,
			"event_type": eventType,
			"key":        key,
		}).Error("Failed to publish message")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":      p.topic,
		"event_type": eventType,
		"key":        key,
	}).Debug("Published message")
	return nil
}

// PublishDeduplicationRequest asks the workers to run a job
func (p *Producer) PublishDeduplicationRequest(ctx context.Context, deduplicationID string) error {
	return p.Publish(ctx, deduplicationID, EventDeduplicationRequested, &DeduplicationRequest{
		DeduplicationID: deduplicationID,
		RequestedAt:     time.Now().UTC(),
	})
}
