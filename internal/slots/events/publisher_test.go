package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinicslots/pkg/kafka"
	"clinicslots/pkg/model"
)

type mockProducer struct {
	publishFunc func(ctx context.Context, msg kafka.Message) error
	sent        []kafka.Message
}

func (m *mockProducer) Publish(ctx context.Context, msg kafka.Message) error {
	m.sent = append(m.sent, msg)
	if m.publishFunc != nil {
		return m.publishFunc(ctx, msg)
	}
	return nil
}

func TestKafkaPublisher_KeysByDoctor(t *testing.T) {
	producer := &mockProducer{}
	pub := NewKafkaPublisher(producer)

	slot := &model.TimeSlot{ID: "s-1", DoctorID: "doc-7", Date: "2026-03-10"}
	ev := model.NewSlotEvent(model.EventSlotHeld, slot, time.Now())

	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(producer.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(producer.sent))
	}
	msg := producer.sent[0]
	if msg.Key != "doc-7" {
		t.Errorf("Key = %q, want doc-7", msg.Key)
	}
	if msg.GetEventID() != ev.EventID || msg.GetEventType() != "slot_held" {
		t.Errorf("headers = %v", msg.Headers)
	}

	var decoded model.SlotEvent
	if err := msg.DecodeValue(&decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.SlotID != "s-1" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestKafkaPublisher_StopsOnFailure(t *testing.T) {
	producer := &mockProducer{publishFunc: func(context.Context, kafka.Message) error {
		return errors.New("broker down")
	}}
	pub := NewKafkaPublisher(producer)
	slot := &model.TimeSlot{ID: "s-1", DoctorID: "doc-7", Date: "2026-03-10"}

	err := pub.Publish(context.Background(),
		model.NewSlotEvent(model.EventSlotReleased, slot, time.Now()),
		model.NewSlotEvent(model.EventSlotReleased, slot, time.Now()),
	)
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(producer.sent) != 1 {
		t.Errorf("sent %d messages after failure, want 1", len(producer.sent))
	}
}
