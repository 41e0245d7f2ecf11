package events

import (
	"context"
	"fmt"

	"clinicslots/pkg/kafka"
	"clinicslots/pkg/logger"
	"clinicslots/pkg/model"
)

const (
	source        = "slotstore"
	schemaVersion = "1"
)

// Publisher announces slot changes to clients caching availability.
type Publisher interface {
	Publish(ctx context.Context, events ...model.SlotEvent) error
}

// MessageProducer is the part of *kafka.Producer the publisher needs.
type MessageProducer interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type KafkaPublisher struct {
	producer MessageProducer
}

func NewKafkaPublisher(producer MessageProducer) *KafkaPublisher {
	return &KafkaPublisher{producer: producer}
}

// Publish sends each event keyed by doctor id. It stops at the first
// failure.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...model.SlotEvent) error {
	for _, ev := range events {
		msg, err := kafka.NewMessage().
			WithKey(ev.DoctorID).
			WithValue(ev).
			WithEventID(ev.EventID).
			WithEventType(string(ev.Type)).
			WithSource(source).
			WithSchemaVersion(schemaVersion).
			WithTimestamp(ev.OccurredAt).
			Build()
		if err != nil {
			return err
		}
		if err := p.producer.Publish(ctx, msg); err != nil {
			return fmt.Errorf("failed to publish %s for slot %s: %w", ev.Type, ev.SlotID, err)
		}
	}
	return nil
}

// LogPublisher only logs events. Used when Kafka is disabled.
type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, events ...model.SlotEvent) error {
	for _, ev := range events {
		p.log.Debug("Slot event",
			"type", ev.Type,
			"doctor_id", ev.DoctorID,
			"date", ev.Date,
			"slot_id", ev.SlotID,
		)
	}
	return nil
}
