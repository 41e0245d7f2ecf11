package repository

import (
	"context"
	"time"

	"clinicslots/pkg/model"
)

const (
	SlotsCollection        = "slots"
	AppointmentsCollection = "appointments"
)

type HoldParams struct {
	SlotID    string
	Holder    string
	Now       time.Time
	ExpiresAt time.Time
	// DoctorID and Date are optional expectations; a slot that does not
	// match them is reported as ErrSlotMismatch.
	DoctorID string
	Date     string
}

type BookParams struct {
	SlotID        string
	Holder        string
	Now           time.Time
	AppointmentID string
	Details       model.BookingDetails
}

type RescheduleParams struct {
	BookParams
	OldAppointmentID string
}

// Outcome of a reschedule. OldSlot is the slot the superseded appointment
// occupied, now available again.
type RescheduleOutcome struct {
	NewAppointment *model.Appointment
	OldAppointment *model.Appointment
	NewSlot        *model.TimeSlot
	OldSlot        *model.TimeSlot
}

// SlotRepository is the slot store. Every state transition is a single
// conditional write so that concurrent callers are serialized per slot.
type SlotRepository interface {
	Insert(ctx context.Context, slots ...*model.TimeSlot) error
	FindByID(ctx context.Context, id string) (*model.TimeSlot, error)
	FindByDoctorAndDate(ctx context.Context, doctorID, date string) ([]*model.TimeSlot, error)

	// CountOpenByDates counts, per date, slots that are open at now and start
	// after notBefore.
	CountOpenByDates(ctx context.Context, doctorID string, dates []string, now, notBefore time.Time) (map[string]int, error)

	Hold(ctx context.Context, p HoldParams) (*model.TimeSlot, error)

	// Release clears the hold only when it belongs to holder. released is
	// false when there was nothing of the holder's to clear.
	Release(ctx context.Context, slotID, holder string, now time.Time) (slot *model.TimeSlot, released bool, err error)

	// SweepExpired returns every held slot whose deadline is at or before now
	// to available and reports them as they were before the sweep.
	SweepExpired(ctx context.Context, now time.Time) ([]*model.TimeSlot, error)

	// Book turns the caller's live hold into a booking and inserts the
	// appointment, atomically. When the slot is already booked for the same
	// holder it returns that appointment instead, whose ID then differs from
	// p.AppointmentID.
	Book(ctx context.Context, p BookParams) (*model.Appointment, *model.TimeSlot, error)

	// Reschedule books the new slot, creates the new appointment, supersedes
	// the old one and frees its slot. Nothing is applied if any step fails.
	// Repeating a reschedule that already moved the appointment onto p.SlotID
	// returns the earlier outcome with OldSlot nil.
	Reschedule(ctx context.Context, p RescheduleParams) (*RescheduleOutcome, error)

	FindAppointment(ctx context.Context, id string) (*model.Appointment, error)

	Ping(ctx context.Context) error
}
