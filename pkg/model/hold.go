package model

import (
	"math"
	"time"
)

// Hold is a short-lived exclusive lease on one slot.
type Hold struct {
	SlotID          string    `json:"slot_id"`
	HolderToken     string    `json:"holder_token"`
	DoctorID        string    `json:"doctor_id,omitempty"`
	Date            string    `json:"date,omitempty"`
	ExpiresAt       time.Time `json:"hold_expires_at"`
	DurationSeconds int       `json:"duration_seconds"`
}

func NewHold(slot *TimeSlot, holder string, expiresAt time.Time, duration time.Duration) *Hold {
	return &Hold{
		SlotID:          slot.ID,
		HolderToken:     holder,
		DoctorID:        slot.DoctorID,
		Date:            slot.Date,
		ExpiresAt:       expiresAt,
		DurationSeconds: int(duration / time.Second),
	}
}

func (h *Hold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}

// RemainingSeconds is ceil((expires_at - now) / 1s), never negative.
func (h *Hold) RemainingSeconds(now time.Time) int {
	return RemainingSeconds(h.ExpiresAt, now)
}

func RemainingSeconds(deadline, now time.Time) int {
	left := deadline.Sub(now)
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}
