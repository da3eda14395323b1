package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
	"github.com/nats-io/nats.go"
)

// DefaultEventSubjectPrefix prefixes NATS subjects; the event type is appended.
const DefaultEventSubjectPrefix = "billing"

// NATSPublisher is the subset of *nats.Conn used by NATSSink.
type NATSPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSSink publishes events as JSON to "<prefix>.<event type>",
// e.g. billing.subscription.trial_ending. The event ID is sent as Nats-Msg-Id
// so JetStream streams can drop duplicates.
type NATSSink struct {
	conn   NATSPublisher
	prefix string
}

// NewNATSSink creates a NATS event sink. An empty prefix uses DefaultEventSubjectPrefix.
// Panics if conn is nil to fail fast during initialization.
func NewNATSSink(conn NATSPublisher, prefix string) *NATSSink {
	if conn == nil {
		panic("subscription: NATS connection is required")
	}
	if prefix == "" {
		prefix = DefaultEventSubjectPrefix
	}
	return &NATSSink{conn: conn, prefix: strings.TrimSuffix(prefix, ".")}
}

// Subject returns the subject an event of type t is published to.
func (s *NATSSink) Subject(t EventType) string {
	return s.prefix + "." + string(t)
}

func (s *NATSSink) Emit(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := nats.NewMsg(s.Subject(event.Type))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.ID.String())

	if err := s.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish event to nats: %w", err)
	}
	return nil
}

// KafkaSink produces events as JSON to a single topic, keyed by subscription ID so
// one subscription's events stay ordered within a partition.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaSink creates a Kafka event sink.
// Panics if producer is nil to fail fast during initialization.
func NewKafkaSink(producer sarama.SyncProducer, topic string) *KafkaSink {
	if producer == nil {
		panic("subscription: Kafka producer is required")
	}
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Emit(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(event.SubscriptionID.String()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
			{Key: []byte("event_id"), Value: []byte(event.ID.String())},
		},
		Timestamp: event.Timestamp,
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to produce event to kafka: %w", err)
	}
	return nil
}

// NewKafkaProducer connects a synchronous producer that waits for all in-sync replicas.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return producer, nil
}
