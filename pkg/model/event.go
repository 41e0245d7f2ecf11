package model

import (
	"time"

	"github.com/google/uuid"
)

type SlotEventType string

const (
	EventSlotHeld           SlotEventType = "slot_held"
	EventSlotReleased       SlotEventType = "slot_released"
	EventSlotBooked         SlotEventType = "slot_booked"
	EventAppointmentUpdated SlotEventType = "appointment_updated"
)

// SlotEvent is published whenever a slot or appointment changes so clients
// can invalidate cached availability. Keyed by doctor id.
type SlotEvent struct {
	EventID       string        `json:"event_id"`
	Type          SlotEventType `json:"type"`
	DoctorID      string        `json:"doctor_id"`
	Date          string        `json:"date"`
	SlotID        string        `json:"slot_id,omitempty"`
	AppointmentID string        `json:"appointment_id,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

func NewSlotEvent(eventType SlotEventType, slot *TimeSlot, at time.Time) SlotEvent {
	return SlotEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		DoctorID:   slot.DoctorID,
		Date:       slot.Date,
		SlotID:     slot.ID,
		OccurredAt: at,
	}
}
