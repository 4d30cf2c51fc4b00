// Package events publishes crisis record changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-crisislens/types"

	kafkago "github.com/segmentio/kafka-go"
)

// Kind names the change a message describes.
type Kind string

const (
	Created Kind = "crisis.created"
	Updated Kind = "crisis.updated"
)

// Event is the message body.
type Event struct {
	Kind       Kind               `json:"kind"`
	OccurredAt time.Time          `json:"occurredAt"`
	Record     types.CrisisRecord `json:"record"`
}

// Publisher emits record change events.
type Publisher interface {
	Publish(ctx context.Context, kind Kind, rec types.CrisisRecord) error
}

// Nop discards every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, Kind, types.CrisisRecord) error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher produces one message per change, keyed by record ID so
// changes to a record stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &KafkaPublisher{writer: w, now: time.Now}
}

func (p *KafkaPublisher) Publish(ctx context.Context, kind Kind, rec types.CrisisRecord) error {
	msg, err := serializeToMessage(Event{Kind: kind, OccurredAt: p.now().UTC(), Record: rec})
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for %s: %w", kind, rec.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(e Event) (kafkago.Message, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize crisis event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(e.Record.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_kind", Value: []byte(e.Kind)},
			{Key: "situation_type", Value: []byte(e.Record.SituationType)},
			{Key: "occurred_at", Value: []byte(e.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}
