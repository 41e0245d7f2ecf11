package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	slotserrors "clinicslots/internal/slots/errors"
	"clinicslots/pkg/model"
)

var t0 = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo SlotRepository, ids ...string) {
	t.Helper()
	var slots []*model.TimeSlot
	for i, id := range ids {
		start := t0.Add(time.Duration(i+2) * time.Hour)
		slots = append(slots, &model.TimeSlot{
			ID:        id,
			DoctorID:  "doc-1",
			Date:      "2026-03-10",
			StartTime: start,
			EndTime:   start.Add(30 * time.Minute),
			Status:    model.SlotAvailable,
		})
	}
	if err := repo.Insert(context.Background(), slots...); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
}

func hold(repo SlotRepository, slotID, holder string, now time.Time) (*model.TimeSlot, error) {
	return repo.Hold(context.Background(), HoldParams{
		SlotID:    slotID,
		Holder:    holder,
		Now:       now,
		ExpiresAt: now.Add(2 * time.Minute),
	})
}

func TestMemory_ConcurrentHoldsOneWinner(t *testing.T) {
	repo := NewMemorySlotRepository()
	seed(t, repo, "s-1")

	const n = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, conflicts := 0, 0

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := hold(repo, "s-1", fmt.Sprintf("patient-%d", i), t0)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, slotserrors.ErrSlotUnavailable):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 || conflicts != n-1 {
		t.Errorf("wins=%d conflicts=%d, want 1 and %d", wins, conflicts, n-1)
	}
}

func TestMemory_HoldExpectations(t *testing.T) {
	repo := NewMemorySlotRepository()
	seed(t, repo, "s-1")

	_, err := repo.Hold(context.Background(), HoldParams{
		SlotID: "s-1", Holder: "p", Now: t0, ExpiresAt: t0.Add(time.Minute), DoctorID: "doc-2",
	})
	if !errors.Is(err, slotserrors.ErrSlotMismatch) {
		t.Errorf("expected ErrSlotMismatch, got %v", err)
	}

	if _, err := hold(repo, "missing", "p", t0); !errors.Is(err, slotserrors.ErrSlotNotFound) {
		t.Errorf("expected ErrSlotNotFound, got %v", err)
	}
}

func TestMemory_ExpiredHoldCanBeTakenOver(t *testing.T) {
	repo := NewMemorySlotRepository()
	seed(t, repo, "s-1")

	if _, err := hold(repo, "s-1", "alice", t0); err != nil {
		t.Fatalf("first hold: %v", err)
	}
	if _, err := hold(repo, "s-1", "bob", t0.Add(time.Minute)); !errors.Is(err, slotserrors.ErrSlotUnavailable) {
		t.Fatalf("live hold should conflict, got %v", err)
	}

	later := t0.Add(3 * time.Minute)
	slot, err := hold(repo, "s-1", "bob", later)
	if err != nil {
		t.Fatalf("takeover after expiry: %v", err)
	}
	if slot.HeldBy != "bob" {
		t.Errorf("HeldBy = %q, want bob", slot.HeldBy)
	}

	// Alice's stale release must not clear Bob's hold.
	_, released, err := repo.Release(context.Background(), "s-1", "alice", later)
	if err != nil || released {
		t.Fatalf("stale release: released=%v err=%v", released, err)
	}
	current, _ := repo.FindByID(context.Background(), "s-1")
	if current.HeldBy != "bob" || current.Status != model.SlotHeld {
		t.Errorf("stale release cleared the new holder: %+v", current)
	}
}

func TestMemory_ReleaseIsIdempotent(t *testing.T) {
	repo := NewMemorySlotRepository()
	seed(t, repo, "s-1")
	if _, err := hold(repo, "s-1", "alice", t0); err != nil {
		t.Fatal(err)
	}

	_, released, err := repo.Release(context.Background(), "s-1", "alice", t0)
	if err != nil || !released {
		t.Fatalf("first release: released=%v err=%v", released, err)
	}
	_, released, err = repo.Release(context.Background(), "s-1", "alice", t0)
	if err != nil || released {
		t.Fatalf("second release: released=%v err=%v", released, err)
	}
}

func TestMemory_SweepExpired(t *testing.T) {
	repo := NewMemorySlotRepository()
	seed(t, repo, "s-1", "s-2")
	_, _ = hold(repo, "s-1", "alice", t0)
	_, _ = hold(repo, "s-2", "bob", t0.Add(90*time.Second))

	swept, err := repo.SweepExpired(context.Background(), t0.Add(2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if len(swept) != 1 || swept[0].ID != "s-1" || swept[0].HeldBy != "alice" {
		t.Fatalf("swept = %+v, want s-1 as held by alice", swept)
	}

	s1, _ := repo.FindByID(context.Background(), "s-1")
	if s1.Status != model.SlotAvailable || s1.HeldBy != "" || s1.HoldExpiresAt != nil {
		t.Errorf("s-1 not reset: %+v", s1)
	}
	s2, _ := repo.FindByID(context.Background(), "s-2")
	if s2.Status != model.SlotHeld {
		t.Errorf("s-2 should still be held: %+v", s2)
	}
}

func TestMemory_BookRequiresLiveHold(t *testing.T) {
	repo := NewMemorySlotRepository()
	seed(t, repo, "s-1")
	_, _ = hold(repo, "s-1", "alice", t0)

	params := BookParams{SlotID: "s-1", Holder: "alice", AppointmentID: "a-1", Details: model.BookingDetails{Reason: "cough"}}

	params.Now = t0.Add(2 * time.Minute)
	if _, _, err := repo.Book(context.Background(), params); !errors.Is(err, slotserrors.ErrHoldNotActive) {
		t.Fatalf("commit at the deadline should fail, got %v", err)
	}

	params.Now = t0.Add(time.Minute)
	params.Holder = "bob"
	if _, _, err := repo.Book(context.Background(), params); !errors.Is(err, slotserrors.ErrHoldNotActive) {
		t.Fatalf("commit by another holder should fail, got %v", err)
	}

	params.Holder = "alice"
	appt, slot, err := repo.Book(context.Background(), params)
	if err != nil {
		t.Fatalf("Book() error = %v", err)
	}
	if slot.Status != model.SlotBooked || slot.HeldBy != "" || slot.HoldExpiresAt != nil {
		t.Errorf("booked slot still carries hold fields: %+v", slot)
	}
	if appt.Status != model.AppointmentPending || appt.Patient != "alice" {
		t.Errorf("unexpected appointment %+v", appt)
	}
}

func TestMemory_CountOpenByDates(t *testing.T) {
	repo := NewMemorySlotRepository()
	seed(t, repo, "s-1", "s-2", "s-3")
	_, _ = hold(repo, "s-2", "alice", t0)

	counts, err := repo.CountOpenByDates(context.Background(), "doc-1", []string{"2026-03-10", "2026-03-11"}, t0, t0)
	if err != nil {
		t.Fatal(err)
	}
	if counts["2026-03-10"] != 2 {
		t.Errorf("count = %d, want 2", counts["2026-03-10"])
	}

	// s-1 starts at t0+2h; a cutoff past it leaves only s-3.
	counts, _ = repo.CountOpenByDates(context.Background(), "doc-1", []string{"2026-03-10"}, t0, t0.Add(2*time.Hour))
	if counts["2026-03-10"] != 1 {
		t.Errorf("count with cutoff = %d, want 1", counts["2026-03-10"])
	}
}

func bookedAppointment(t *testing.T, repo SlotRepository, slotID, holder, apptID string) {
	t.Helper()
	if _, err := hold(repo, slotID, holder, t0); err != nil {
		t.Fatal(err)
	}
	_, _, err := repo.Book(context.Background(), BookParams{
		SlotID: slotID, Holder: holder, Now: t0, AppointmentID: apptID,
		Details: model.BookingDetails{Reason: "checkup"},
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestMemory_Reschedule(t *testing.T) {
	repo := NewMemorySlotRepository()
	seed(t, repo, "s-1", "s-2")
	bookedAppointment(t, repo, "s-1", "alice", "a-1")
	_, _ = hold(repo, "s-2", "alice", t0)

	outcome, err := repo.Reschedule(context.Background(), RescheduleParams{
		BookParams: BookParams{
			SlotID: "s-2", Holder: "alice", Now: t0, AppointmentID: "a-2",
			Details: model.BookingDetails{Reason: "moved"},
		},
		OldAppointmentID: "a-1",
	})
	if err != nil {
		t.Fatalf("Reschedule() error = %v", err)
	}
	if outcome.NewAppointment.RescheduledFrom != "a-1" {
		t.Errorf("RescheduledFrom = %q", outcome.NewAppointment.RescheduledFrom)
	}
	if outcome.OldSlot == nil || outcome.OldSlot.Status != model.SlotAvailable {
		t.Errorf("old slot should be freed: %+v", outcome.OldSlot)
	}

	old, _ := repo.FindAppointment(context.Background(), "a-1")
	if old.Status != model.AppointmentSuperseded || old.SupersededBy != "a-2" {
		t.Errorf("old appointment = %+v", old)
	}
}

func TestMemory_RescheduleFailureLeavesNothingApplied(t *testing.T) {
	for _, stage := range []string{StageSlotBooked, StageAppointmentCreated, StageOldSuperseded} {
		t.Run(stage, func(t *testing.T) {
			injected := errors.New("injected failure")
			repo := NewMemorySlotRepository(WithFailPoint(func(s string) error {
				if s == stage {
					return injected
				}
				return nil
			}))
			seed(t, repo, "s-1", "s-2")
			bookedAppointment(t, repo, "s-1", "alice", "a-1")
			_, _ = hold(repo, "s-2", "alice", t0)

			_, err := repo.Reschedule(context.Background(), RescheduleParams{
				BookParams: BookParams{
					SlotID: "s-2", Holder: "alice", Now: t0, AppointmentID: "a-2",
					Details: model.BookingDetails{Reason: "moved"},
				},
				OldAppointmentID: "a-1",
			})
			if !errors.Is(err, injected) {
				t.Fatalf("expected injected error, got %v", err)
			}

			old, _ := repo.FindAppointment(context.Background(), "a-1")
			if old.Status != model.AppointmentPending || old.SupersededBy != "" {
				t.Errorf("old appointment changed: %+v", old)
			}
			if _, err := repo.FindAppointment(context.Background(), "a-2"); !errors.Is(err, slotserrors.ErrAppointmentNotFound) {
				t.Errorf("new appointment should not exist, got %v", err)
			}
			s1, _ := repo.FindByID(context.Background(), "s-1")
			if s1.Status != model.SlotBooked {
				t.Errorf("old slot changed: %+v", s1)
			}
			s2, _ := repo.FindByID(context.Background(), "s-2")
			if s2.Status != model.SlotHeld || s2.HeldBy != "alice" {
				t.Errorf("new slot changed: %+v", s2)
			}
		})
	}
}

func TestMemory_RescheduleRejectsForeignAppointment(t *testing.T) {
	repo := NewMemorySlotRepository()
	seed(t, repo, "s-1", "s-2")
	bookedAppointment(t, repo, "s-1", "alice", "a-1")
	_, _ = hold(repo, "s-2", "bob", t0)

	_, err := repo.Reschedule(context.Background(), RescheduleParams{
		BookParams:       BookParams{SlotID: "s-2", Holder: "bob", Now: t0, AppointmentID: "a-2"},
		OldAppointmentID: "a-1",
	})
	if !errors.Is(err, slotserrors.ErrAppointmentNotFound) {
		t.Errorf("expected ErrAppointmentNotFound, got %v", err)
	}
}

func TestMemory_RepeatedBookReturnsExistingAppointment(t *testing.T) {
	repo := NewMemorySlotRepository()
	seed(t, repo, "s-1")
	bookedAppointment(t, repo, "s-1", "alice", "a-1")

	// Same commit again after the first response was lost, past the hold deadline.
	params := BookParams{
		SlotID: "s-1", Holder: "alice", Now: t0.Add(5 * time.Minute), AppointmentID: "a-2",
		Details: model.BookingDetails{Reason: "checkup"},
	}
	appt, slot, err := repo.Book(context.Background(), params)
	if err != nil {
		t.Fatalf("repeated Book() error = %v", err)
	}
	if appt.ID != "a-1" || slot.Status != model.SlotBooked {
		t.Errorf("expected the existing booking, got %+v on %+v", appt, slot)
	}
	if _, err := repo.FindAppointment(context.Background(), "a-2"); !errors.Is(err, slotserrors.ErrAppointmentNotFound) {
		t.Errorf("no second appointment may be created, got %v", err)
	}

	params.Holder = "bob"
	if _, _, err := repo.Book(context.Background(), params); !errors.Is(err, slotserrors.ErrHoldNotActive) {
		t.Errorf("another holder must not see alice's booking, got %v", err)
	}
}

func TestMemory_RepeatedRescheduleReturnsEarlierOutcome(t *testing.T) {
	repo := NewMemorySlotRepository()
	seed(t, repo, "s-1", "s-2", "s-3")
	bookedAppointment(t, repo, "s-1", "alice", "a-1")
	_, _ = hold(repo, "s-2", "alice", t0)

	params := RescheduleParams{
		BookParams: BookParams{
			SlotID: "s-2", Holder: "alice", Now: t0, AppointmentID: "a-2",
			Details: model.BookingDetails{Reason: "moved"},
		},
		OldAppointmentID: "a-1",
	}
	if _, err := repo.Reschedule(context.Background(), params); err != nil {
		t.Fatal(err)
	}

	params.AppointmentID = "a-3"
	params.Now = t0.Add(5 * time.Minute)
	outcome, err := repo.Reschedule(context.Background(), params)
	if err != nil {
		t.Fatalf("repeated Reschedule() error = %v", err)
	}
	if outcome.NewAppointment.ID != "a-2" || outcome.NewSlot.ID != "s-2" || outcome.OldSlot != nil {
		t.Errorf("unexpected repeated outcome %+v", outcome)
	}
	if _, err := repo.FindAppointment(context.Background(), "a-3"); !errors.Is(err, slotserrors.ErrAppointmentNotFound) {
		t.Errorf("no third appointment may be created, got %v", err)
	}

	params.SlotID = "s-3"
	if _, err := repo.Reschedule(context.Background(), params); !errors.Is(err, slotserrors.ErrAppointmentNotReschedulable) {
		t.Errorf("moving a superseded appointment elsewhere: expected ErrAppointmentNotReschedulable, got %v", err)
	}
}
