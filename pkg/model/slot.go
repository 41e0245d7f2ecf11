package model

import "time"

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotHeld      SlotStatus = "held"
	SlotBooked    SlotStatus = "booked"
)

type TimeSlot struct {
	ID            string     `json:"id" bson:"_id"`
	DoctorID      string     `json:"doctor_id" bson:"doctor_id"`
	Date          string     `json:"date" bson:"date"`
	StartTime     time.Time  `json:"start_time" bson:"start_time"`
	EndTime       time.Time  `json:"end_time" bson:"end_time"`
	Status        SlotStatus `json:"status" bson:"status"`
	HeldBy        string     `json:"held_by,omitempty" bson:"held_by,omitempty"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty" bson:"hold_expires_at,omitempty"`
	Version       int64      `json:"version" bson:"version"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" bson:"updated_at"`
}

// HoldActive reports whether the slot carries a hold whose deadline is still
// in the future.
func (s *TimeSlot) HoldActive(now time.Time) bool {
	return s.Status == SlotHeld && s.HoldExpiresAt != nil && now.Before(*s.HoldExpiresAt)
}

// IsOpen reports whether the slot can be acquired at now. A held slot whose
// deadline has passed is open even before the sweep returns it.
func (s *TimeSlot) IsOpen(now time.Time) bool {
	switch s.Status {
	case SlotAvailable:
		return true
	case SlotHeld:
		return !s.HoldActive(now)
	}
	return false
}

func (s *TimeSlot) HeldByHolder(holder string, now time.Time) bool {
	return s.HoldActive(now) && s.HeldBy == holder
}

// Redacted hides hold ownership from callers other than the holder.
func (s *TimeSlot) Redacted(caller string) *TimeSlot {
	out := s.Clone()
	if out.HeldBy != caller {
		out.HeldBy = ""
		out.HoldExpiresAt = nil
	}
	return out
}

func (s *TimeSlot) Clone() *TimeSlot {
	out := *s
	if s.HoldExpiresAt != nil {
		exp := *s.HoldExpiresAt
		out.HoldExpiresAt = &exp
	}
	return &out
}
