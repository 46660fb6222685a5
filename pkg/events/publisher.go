package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"trimly/pkg/logger"
)

var ErrPublisherClosed = errors.New("events: publisher closed")

// Publisher delivers domain events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic, key, eventType string, data any) error
	Close() error
}

// KafkaPublisher writes events to Kafka, one writer per topic. Messages are
// keyed so events for the same entity stay ordered within a partition.
type KafkaPublisher struct {
	brokers []string
	source  string
	log     *logger.Logger

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	closed  bool
}

func NewKafkaPublisher(brokers []string, source string, log *logger.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}

	return &KafkaPublisher{
		brokers: brokers,
		source:  source,
		log:     log,
		writers: make(map[string]*kafka.Writer),
	}, nil
}

func (p *KafkaPublisher) writerFor(topic string) (*kafka.Writer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPublisherClosed
	}

	if w, ok := p.writers[topic]; ok {
		return w, nil
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(p.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  compress.Snappy,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(msg string, args ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			p.log.Error(fmt.Sprintf("kafka: "+msg, args...))
		}),
	}
	p.writers[topic] = w

	return w, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic, key, eventType string, data any) error {
	if key == "" {
		return fmt.Errorf("event key cannot be empty")
	}

	envelope, err := NewEnvelope(eventType, data)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	writer, err := p.writerFor(topic)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  envelope.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(envelope.EventID)},
			{Key: HeaderEventType, Value: []byte(eventType)},
			{Key: HeaderSource, Value: []byte(p.source)},
			{Key: HeaderTimestamp, Value: []byte(envelope.OccurredAt.Format(time.RFC3339))},
		},
	}

	return writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var firstErr error
	for _, w := range p.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// NoopPublisher drops every event. Used when no brokers are configured so
// services can run without Kafka.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, topic, key, eventType string, data any) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
