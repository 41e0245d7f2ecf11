package testutil

import (
	"fmt"
	"time"

	"clinicslots/pkg/model"
)

type SlotBuilder struct {
	slot model.TimeSlot
}

// NewSlotBuilder starts an available 30 minute slot two days from now at
// 10:00 UTC.
func NewSlotBuilder(id string) *SlotBuilder {
	day := time.Now().UTC().AddDate(0, 0, 2)
	start := time.Date(day.Year(), day.Month(), day.Day(), 10, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	return &SlotBuilder{
		slot: model.TimeSlot{
			ID:        id,
			DoctorID:  "doc-it",
			Date:      start.Format(model.DateLayout),
			StartTime: start,
			EndTime:   start.Add(30 * time.Minute),
			Status:    model.SlotAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

func (b *SlotBuilder) WithDoctor(doctorID string) *SlotBuilder {
	b.slot.DoctorID = doctorID
	return b
}

// WithOffset shifts the slot by n slot lengths.
func (b *SlotBuilder) WithOffset(n int) *SlotBuilder {
	d := time.Duration(n) * 30 * time.Minute
	b.slot.StartTime = b.slot.StartTime.Add(d)
	b.slot.EndTime = b.slot.EndTime.Add(d)
	return b
}

func (b *SlotBuilder) Build() *model.TimeSlot {
	s := b.slot
	return &s
}

// SlotRun builds n consecutive slots for one doctor with ids prefix-1..n.
func SlotRun(prefix, doctorID string, n int) []*model.TimeSlot {
	out := make([]*model.TimeSlot, n)
	for i := range out {
		out[i] = NewSlotBuilder(fmt.Sprintf("%s-%d", prefix, i+1)).
			WithDoctor(doctorID).
			WithOffset(i).
			Build()
	}
	return out
}
