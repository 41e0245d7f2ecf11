package errors

import "errors"

var (
	ErrSlotNotFound = errors.New("slot not found")

	// ErrSlotUnavailable means the slot carries an active hold or is booked.
	ErrSlotUnavailable = errors.New("slot is not available")

	// ErrSlotMismatch means the slot exists but not for the doctor/date the
	// caller expected.
	ErrSlotMismatch = errors.New("slot does not match requested doctor or date")

	// ErrHoldNotActive means the caller holds no live hold on the slot: the
	// deadline passed, the sweep released it, or someone took it over.
	ErrHoldNotActive = errors.New("hold is not active for this holder")

	ErrAppointmentNotFound = errors.New("appointment not found")

	ErrAppointmentNotReschedulable = errors.New("appointment cannot be rescheduled")

	ErrDuplicateSlot = errors.New("slot already exists")
)
