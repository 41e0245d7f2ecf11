package model

import (
	"fmt"
	"time"
)

// DaySchedule describes a doctor's working day; slots are cut from it
// back to back with a break after each one.
type DaySchedule struct {
	DoctorID    string
	StartOfDay  string // HH:MM
	EndOfDay    string // HH:MM
	SlotMinutes int
	BreakMin    int
}

func parseClock(date time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time of day %q: expected HH:MM", hhmm)
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}

// GenerateDaySlots cuts the available slots of one date. Ids are derived
// from doctor, date and start time so reseeding the same day collides
// instead of duplicating.
func GenerateDaySlots(sched DaySchedule, date string, loc *time.Location, now time.Time) ([]*TimeSlot, error) {
	if sched.SlotMinutes <= 0 {
		return nil, fmt.Errorf("slot length must be positive, got %d", sched.SlotMinutes)
	}
	if sched.BreakMin < 0 {
		return nil, fmt.Errorf("break cannot be negative, got %d", sched.BreakMin)
	}
	day, err := ParseDate(date, loc)
	if err != nil {
		return nil, err
	}
	open, err := parseClock(day, sched.StartOfDay)
	if err != nil {
		return nil, err
	}
	closing, err := parseClock(day, sched.EndOfDay)
	if err != nil {
		return nil, err
	}
	if !closing.After(open) {
		return nil, fmt.Errorf("end of day %s must be after start of day %s", sched.EndOfDay, sched.StartOfDay)
	}

	length := time.Duration(sched.SlotMinutes) * time.Minute
	step := length + time.Duration(sched.BreakMin)*time.Minute
	var slots []*TimeSlot
	for start := open; !start.Add(length).After(closing); start = start.Add(step) {
		slots = append(slots, &TimeSlot{
			ID:        fmt.Sprintf("%s-%s-%s", sched.DoctorID, start.Format("20060102"), start.Format("1504")),
			DoctorID:  sched.DoctorID,
			Date:      date,
			StartTime: start.UTC(),
			EndTime:   start.Add(length).UTC(),
			Status:    SlotAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return slots, nil
}
