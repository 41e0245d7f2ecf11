package model

// BookingDraft accumulates the patient's choices across the booking steps.
type BookingDraft struct {
	DoctorID     string         `json:"doctor_id"`
	Date         string         `json:"date,omitempty"`
	SlotID       string         `json:"slot_id,omitempty"`
	Details      BookingDetails `json:"details"`
	RescheduleOf string         `json:"reschedule_of,omitempty"`
}

func NewBookingDraft(doctorID string) *BookingDraft {
	return &BookingDraft{DoctorID: doctorID}
}

func (d *BookingDraft) ClearSlot() {
	d.SlotID = ""
}

func (d *BookingDraft) ClearDate() {
	d.Date = ""
	d.SlotID = ""
}
