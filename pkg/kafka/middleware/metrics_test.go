package kafka_middleware

import (
	"context"
	"errors"
	"testing"

	"clinicslots/pkg/kafka"
)

func TestMetrics_CountsOutcomes(t *testing.T) {
	m := NewMetrics()
	consume := m.ConsumerMiddleware()
	publish := m.ProducerMiddleware()

	ok := func(context.Context, kafka.Message) error { return nil }
	fail := func(context.Context, kafka.Message) error { return errors.New("boom") }

	_ = consume(context.Background(), kafka.Message{}, ok)
	_ = consume(context.Background(), kafka.Message{}, ok)
	_ = consume(context.Background(), kafka.Message{}, fail)
	_ = publish(context.Background(), kafka.Message{}, fail)

	snap := m.Snapshot()
	if snap.Consumed != 2 || snap.ConsumeFailed != 1 {
		t.Errorf("consume counters = %d/%d, want 2/1", snap.Consumed, snap.ConsumeFailed)
	}
	if snap.Published != 0 || snap.PublishFailed != 1 {
		t.Errorf("publish counters = %d/%d, want 0/1", snap.Published, snap.PublishFailed)
	}
}
