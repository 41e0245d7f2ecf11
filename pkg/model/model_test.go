package model

import (
	"testing"
	"time"
)

func TestTimeSlot_IsOpen(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Minute)

	tests := []struct {
		name string
		slot TimeSlot
		want bool
	}{
		{"available", TimeSlot{Status: SlotAvailable}, true},
		{"held with live deadline", TimeSlot{Status: SlotHeld, HeldBy: "a", HoldExpiresAt: &future}, false},
		{"held with passed deadline", TimeSlot{Status: SlotHeld, HeldBy: "a", HoldExpiresAt: &past}, true},
		{"held exactly at deadline", TimeSlot{Status: SlotHeld, HeldBy: "a", HoldExpiresAt: &now}, true},
		{"booked", TimeSlot{Status: SlotBooked}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.slot.IsOpen(now); got != tt.want {
				t.Errorf("IsOpen() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimeSlot_RedactedHidesOtherHolders(t *testing.T) {
	exp := time.Now().Add(time.Minute)
	slot := &TimeSlot{ID: "s1", Status: SlotHeld, HeldBy: "alice", HoldExpiresAt: &exp}

	if got := slot.Redacted("bob"); got.HeldBy != "" || got.HoldExpiresAt != nil {
		t.Errorf("expected hold details hidden from non-holder, got %+v", got)
	}
	if got := slot.Redacted("alice"); got.HeldBy != "alice" {
		t.Errorf("expected holder to see own hold, got %+v", got)
	}
	if slot.HeldBy != "alice" {
		t.Errorf("Redacted must not mutate the original")
	}
}

func TestRemainingSeconds_RoundsUp(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		deadline time.Time
		want     int
	}{
		{"full duration", now.Add(120 * time.Second), 120},
		{"fractional second", now.Add(1500 * time.Millisecond), 2},
		{"just above zero", now.Add(time.Millisecond), 1},
		{"at deadline", now, 0},
		{"past deadline", now.Add(-5 * time.Second), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemainingSeconds(tt.deadline, now); got != tt.want {
				t.Errorf("RemainingSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDatesInMonth_FromToday(t *testing.T) {
	dates, err := DatesInMonth("2026-02", "2026-02-26", time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"2026-02-26", "2026-02-27", "2026-02-28"}
	if len(dates) != len(want) {
		t.Fatalf("expected %v, got %v", want, dates)
	}
	for i := range want {
		if dates[i] != want[i] {
			t.Errorf("dates[%d] = %s, want %s", i, dates[i], want[i])
		}
	}

	all, _ := DatesInMonth("2026-02", "", time.UTC)
	if len(all) != 28 {
		t.Errorf("expected 28 days in Feb 2026, got %d", len(all))
	}

	if _, err := DatesInMonth("2026/02", "", time.UTC); err == nil {
		t.Errorf("expected error for malformed month")
	}
}

func TestAvailabilityIndex_Selectable(t *testing.T) {
	idx := AvailabilityIndex{
		"2026-05-01": {OpenCount: 0, IsFull: true},
		"2026-05-02": {OpenCount: 3},
		"2026-04-30": {OpenCount: 2, IsPast: true},
	}
	if idx.Selectable("2026-05-01") {
		t.Errorf("full date must not be selectable")
	}
	if !idx.Selectable("2026-05-02") {
		t.Errorf("date with open slots must be selectable")
	}
	if idx.Selectable("2026-04-30") {
		t.Errorf("past date must not be selectable")
	}
	if idx.Selectable("2026-05-09") {
		t.Errorf("unknown date must not be selectable")
	}
}

func TestNewAppointment_DefaultsType(t *testing.T) {
	slot := &TimeSlot{ID: "s1", DoctorID: "d1", Date: "2026-05-04"}
	appt := NewAppointment("a1", slot, "p1", BookingDetails{Reason: "cough"}, time.Now())
	if appt.AppointmentType != AppointmentConsultation {
		t.Errorf("expected default type consultation, got %s", appt.AppointmentType)
	}
	if appt.Status != AppointmentPending {
		t.Errorf("expected pending status, got %s", appt.Status)
	}
	if !appt.Reschedulable() {
		t.Errorf("pending appointment should be reschedulable")
	}
}

func TestGenerateDaySlots(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	sched := DaySchedule{DoctorID: "doc-1", StartOfDay: "09:00", EndOfDay: "11:00", SlotMinutes: 30, BreakMin: 10}

	slots, err := GenerateDaySlots(sched, "2026-03-11", loc, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 09:00, 09:40, 10:20; 11:00 would end past closing.
	if len(slots) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(slots))
	}
	first := slots[0]
	if first.ID != "doc-1-20260311-0900" || first.Status != SlotAvailable || first.Date != "2026-03-11" {
		t.Errorf("unexpected first slot %+v", first)
	}
	if want := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC); !first.StartTime.Equal(want) {
		t.Errorf("start = %v, want %v", first.StartTime, want)
	}
	if slots[2].EndTime.Sub(slots[2].StartTime) != 30*time.Minute {
		t.Errorf("slot length = %v", slots[2].EndTime.Sub(slots[2].StartTime))
	}

	bad := []DaySchedule{
		{DoctorID: "d", StartOfDay: "09:00", EndOfDay: "08:00", SlotMinutes: 30},
		{DoctorID: "d", StartOfDay: "9am", EndOfDay: "17:00", SlotMinutes: 30},
		{DoctorID: "d", StartOfDay: "09:00", EndOfDay: "17:00", SlotMinutes: 0},
	}
	for _, s := range bad {
		if _, err := GenerateDaySlots(s, "2026-03-11", time.UTC, time.Time{}); err == nil {
			t.Errorf("expected error for %+v", s)
		}
	}
}
