package model

// Wire requests shared by the slot store handlers and its API client.

type HoldRequest struct {
	SlotID   string `json:"slot_id" validate:"required,max=64"`
	DoctorID string `json:"doctor_id,omitempty" validate:"omitempty,max=64"`
	Date     string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type ReleaseRequest struct {
	SlotID string `json:"slot_id" validate:"required,max=64"`
}

type ReleaseResult struct {
	SlotID   string `json:"slot_id"`
	Released bool   `json:"released"`
}

type BatchAvailabilityRequest struct {
	DoctorID string   `json:"doctor_id" validate:"required,max=64"`
	Dates    []string `json:"dates" validate:"required,min=1,max=62,dive,datetime=2006-01-02"`
}

// CompleteBookingRequest flattens the booking details on the wire. The
// details are validated on their own so field paths stay unprefixed.
type CompleteBookingRequest struct {
	SlotID         string `json:"slot_id" validate:"required,max=64"`
	BookingDetails `validate:"-"`
}
