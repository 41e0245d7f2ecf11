package availability

import (
	"context"
	"sync"

	"clinicslots/pkg/kafka"
	"clinicslots/pkg/logger"
	"clinicslots/pkg/model"
)

// Listener is notified after the cache entry for an event was dropped.
type Listener func(ctx context.Context, ev model.SlotEvent)

// Invalidator is the single subscription point for slot events. Each event
// drops the cached month it touches and is then passed to every listener.
// An appointment update, or an event without a date, drops all of the
// doctor's months: a moved appointment can free a slot in any of them.
type Invalidator struct {
	cache *CachedAggregator
	log   *logger.Logger

	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
}

func NewInvalidator(cache *CachedAggregator, log *logger.Logger) *Invalidator {
	return &Invalidator{
		cache:     cache,
		log:       log.Component("availability_invalidator"),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers l and returns a func that removes it.
func (i *Invalidator) Subscribe(l Listener) func() {
	i.mu.Lock()
	defer i.mu.Unlock()
	id := i.nextID
	i.nextID++
	i.listeners[id] = l
	return func() {
		i.mu.Lock()
		delete(i.listeners, id)
		i.mu.Unlock()
	}
}

func (i *Invalidator) Handle(ctx context.Context, ev model.SlotEvent) {
	if ev.DoctorID == "" {
		return
	}
	switch {
	case i.cache == nil:
	case ev.Type == model.EventAppointmentUpdated, ev.Date == "":
		i.cache.InvalidateDoctor(ctx, ev.DoctorID)
	default:
		i.cache.Invalidate(ctx, ev.DoctorID, ev.Date)
	}

	i.mu.RLock()
	listeners := make([]Listener, 0, len(i.listeners))
	for _, l := range i.listeners {
		listeners = append(listeners, l)
	}
	i.mu.RUnlock()

	for _, l := range listeners {
		l(ctx, ev)
	}
}

// HandleMessage is the kafka.MessageHandler for the slot events topic.
func (i *Invalidator) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var ev model.SlotEvent
	if err := msg.DecodeValue(&ev); err != nil {
		i.log.Warn("Dropping undecodable slot event", "offset", msg.Offset, "error", err)
		return err
	}
	i.log.Debug("Slot event received",
		"type", ev.Type,
		"doctor_id", ev.DoctorID,
		"date", ev.Date,
		"event_id", msg.GetEventID(),
	)
	i.Handle(ctx, ev)
	return nil
}

// Publish lets an in-process slot store deliver events without a broker.
func (i *Invalidator) Publish(ctx context.Context, events ...model.SlotEvent) error {
	for _, ev := range events {
		i.Handle(ctx, ev)
	}
	return nil
}
