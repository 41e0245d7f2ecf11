package lease

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"clinicslots/pkg/auth"
	"clinicslots/pkg/clock"
	apperrors "clinicslots/pkg/errors"
	"clinicslots/pkg/logger"
	"clinicslots/pkg/model"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type staticIdentity struct {
	creds auth.Credentials
	ok    bool
}

func (s staticIdentity) Credentials() (auth.Credentials, bool) { return s.creds, s.ok }

var alice = staticIdentity{creds: auth.Credentials{Holder: "alice", Bearer: "tok"}, ok: true}

type mockStore struct {
	holdFunc       func(ctx context.Context, req model.HoldRequest) (*model.Hold, error)
	releaseFunc    func(ctx context.Context, slotID string) (*model.ReleaseResult, error)
	getSlotFunc    func(ctx context.Context, slotID string) (*model.TimeSlot, error)
	completeFunc   func(ctx context.Context, slotID string, details model.BookingDetails) (*model.Appointment, error)
	rescheduleFunc func(ctx context.Context, appointmentID, slotID string, details model.BookingDetails) (*model.RescheduleResult, error)
}

func (m *mockStore) Hold(ctx context.Context, req model.HoldRequest) (*model.Hold, error) {
	return m.holdFunc(ctx, req)
}

func (m *mockStore) Release(ctx context.Context, slotID string) (*model.ReleaseResult, error) {
	return m.releaseFunc(ctx, slotID)
}

func (m *mockStore) GetSlot(ctx context.Context, slotID string) (*model.TimeSlot, error) {
	return m.getSlotFunc(ctx, slotID)
}

func (m *mockStore) CompleteBooking(ctx context.Context, slotID string, details model.BookingDetails) (*model.Appointment, error) {
	return m.completeFunc(ctx, slotID, details)
}

func (m *mockStore) Reschedule(ctx context.Context, appointmentID, slotID string, details model.BookingDetails) (*model.RescheduleResult, error) {
	return m.rescheduleFunc(ctx, appointmentID, slotID, details)
}

func newManager(store SlotStore, clk clock.Clock) *Manager {
	return NewManager(store, alice, clk, time.Second, logger.Discard())
}

func TestAcquire_PassesExpectations(t *testing.T) {
	var got model.HoldRequest
	store := &mockStore{
		holdFunc: func(_ context.Context, req model.HoldRequest) (*model.Hold, error) {
			got = req
			return &model.Hold{SlotID: req.SlotID, ExpiresAt: now.Add(2 * time.Minute)}, nil
		},
	}
	hold, err := newManager(store, clock.NewManual(now)).Acquire(context.Background(), "s-1", "doc-1", "2026-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if got.DoctorID != "doc-1" || got.Date != "2026-03-10" || hold.SlotID != "s-1" {
		t.Errorf("request %+v hold %+v", got, hold)
	}
}

func TestAcquire_ConflictIsNotRetried(t *testing.T) {
	requeried := false
	store := &mockStore{
		holdFunc: func(context.Context, model.HoldRequest) (*model.Hold, error) {
			return nil, apperrors.SlotConflict("s-1")
		},
		getSlotFunc: func(context.Context, string) (*model.TimeSlot, error) {
			requeried = true
			return nil, nil
		},
	}
	_, err := newManager(store, clock.NewManual(now)).Acquire(context.Background(), "s-1", "", "")
	if !apperrors.HasCode(err, apperrors.CodeSlotConflict) {
		t.Fatalf("expected SLOT_CONFLICT, got %v", err)
	}
	if requeried {
		t.Error("a definite rejection must not trigger discovery")
	}
}

func TestAcquire_TransportFailureDiscovery(t *testing.T) {
	transportErr := apperrors.Transport("slot store", errors.New("connection reset"))
	live := now.Add(90 * time.Second)
	expired := now.Add(-time.Second)

	tests := []struct {
		name    string
		slot    *model.TimeSlot
		wantErr bool
	}{
		{"held by caller", &model.TimeSlot{ID: "s-1", Status: model.SlotHeld, HeldBy: "alice", HoldExpiresAt: &live}, false},
		{"held by someone else", &model.TimeSlot{ID: "s-1", Status: model.SlotHeld}, true},
		{"caller hold expired", &model.TimeSlot{ID: "s-1", Status: model.SlotHeld, HeldBy: "alice", HoldExpiresAt: &expired}, true},
		{"still available", &model.TimeSlot{ID: "s-1", Status: model.SlotAvailable}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockStore{
				holdFunc: func(context.Context, model.HoldRequest) (*model.Hold, error) {
					return nil, transportErr
				},
				getSlotFunc: func(context.Context, string) (*model.TimeSlot, error) {
					return tt.slot, nil
				},
			}
			hold, err := newManager(store, clock.NewManual(now)).Acquire(context.Background(), "s-1", "", "")
			if tt.wantErr {
				if err != transportErr {
					t.Fatalf("expected the transport error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if !hold.ExpiresAt.Equal(live) || hold.HolderToken != "alice" || hold.DurationSeconds != 90 {
				t.Errorf("unexpected discovered hold %+v", hold)
			}
		})
	}
}

func TestRelease_SwallowsErrors(t *testing.T) {
	var calls atomic.Int32
	store := &mockStore{
		releaseFunc: func(context.Context, string) (*model.ReleaseResult, error) {
			calls.Add(1)
			return nil, apperrors.Transport("slot store", errors.New("timeout"))
		},
	}
	m := newManager(store, clock.NewManual(now))

	m.Release(context.Background(), "s-1")
	m.ReleaseAsync("s-1")
	m.ReleaseAsync("")
	m.Wait()

	if calls.Load() != 2 {
		t.Errorf("release calls = %d, want 2", calls.Load())
	}
}

func TestCommit_LocalPrechecks(t *testing.T) {
	clk := clock.NewManual(now)
	called := false
	store := &mockStore{
		completeFunc: func(_ context.Context, slotID string, _ model.BookingDetails) (*model.Appointment, error) {
			called = true
			return &model.Appointment{ID: "a-1", SlotID: slotID}, nil
		},
	}
	m := newManager(store, clk)
	hold := &model.Hold{SlotID: "s-1", ExpiresAt: now.Add(2 * time.Minute)}

	_, err := m.Commit(context.Background(), hold, model.BookingDetails{Reason: "   "})
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("blank reason: expected VALIDATION_ERROR, got %v", err)
	}

	clk.Advance(2 * time.Minute)
	_, err = m.Commit(context.Background(), hold, model.BookingDetails{Reason: "fever"})
	if !apperrors.HasCode(err, apperrors.CodeHoldExpired) {
		t.Errorf("at deadline: expected HOLD_EXPIRED, got %v", err)
	}

	if called {
		t.Error("store should not be called when a local check fails")
	}
}

func TestCommit_ForwardsStoreOutcome(t *testing.T) {
	store := &mockStore{
		completeFunc: func(_ context.Context, slotID string, details model.BookingDetails) (*model.Appointment, error) {
			if details.Reason != "fever" {
				t.Errorf("reason = %q", details.Reason)
			}
			return &model.Appointment{ID: "a-1", SlotID: slotID}, nil
		},
	}
	appt, err := newManager(store, clock.NewManual(now)).Commit(context.Background(),
		&model.Hold{SlotID: "s-1", ExpiresAt: now.Add(time.Minute)},
		model.BookingDetails{Reason: "fever"})
	if err != nil || appt.ID != "a-1" {
		t.Fatalf("Commit() = %+v, %v", appt, err)
	}
}

func TestCommit_RepeatsAfterLostResponse(t *testing.T) {
	tests := []struct {
		name    string
		second  error
		wantErr string
		calls   int32
	}{
		{"stored before the response was lost", nil, "", 2},
		{"hold lapsed meanwhile", apperrors.HoldExpired("s-1"), apperrors.CodeHoldExpired, 2},
		{"still unreachable", apperrors.Transport("slot store", errors.New("reset")), apperrors.CodeUnavailable, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			store := &mockStore{
				completeFunc: func(_ context.Context, slotID string, _ model.BookingDetails) (*model.Appointment, error) {
					if calls.Add(1) == 1 {
						return nil, apperrors.Transport("slot store", errors.New("connection reset"))
					}
					if tt.second != nil {
						return nil, tt.second
					}
					return &model.Appointment{ID: "a-1", SlotID: slotID}, nil
				},
			}
			appt, err := newManager(store, clock.NewManual(now)).Commit(context.Background(),
				&model.Hold{SlotID: "s-1", ExpiresAt: now.Add(time.Minute)},
				model.BookingDetails{Reason: "fever"})

			if calls.Load() != tt.calls {
				t.Errorf("store calls = %d, want %d", calls.Load(), tt.calls)
			}
			if tt.wantErr == "" {
				if err != nil || appt.ID != "a-1" {
					t.Fatalf("Commit() = %+v, %v", appt, err)
				}
				return
			}
			if !apperrors.HasCode(err, tt.wantErr) {
				t.Errorf("expected %s, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCommit_RejectionIsNotRepeated(t *testing.T) {
	var calls atomic.Int32
	store := &mockStore{
		completeFunc: func(context.Context, string, model.BookingDetails) (*model.Appointment, error) {
			calls.Add(1)
			return nil, apperrors.HoldExpired("s-1")
		},
	}
	_, err := newManager(store, clock.NewManual(now)).Commit(context.Background(),
		&model.Hold{SlotID: "s-1", ExpiresAt: now.Add(time.Minute)},
		model.BookingDetails{Reason: "fever"})
	if !apperrors.HasCode(err, apperrors.CodeHoldExpired) || calls.Load() != 1 {
		t.Errorf("Commit() error = %v after %d calls", err, calls.Load())
	}
}

func TestReschedule_ForwardsAppointment(t *testing.T) {
	store := &mockStore{
		rescheduleFunc: func(_ context.Context, appointmentID, slotID string, _ model.BookingDetails) (*model.RescheduleResult, error) {
			return &model.RescheduleResult{
				NewAppointment:   &model.Appointment{ID: "a-2", SlotID: slotID, RescheduledFrom: appointmentID},
				OldAppointmentID: appointmentID,
			}, nil
		},
	}
	res, err := newManager(store, clock.NewManual(now)).Reschedule(context.Background(), "a-1",
		&model.Hold{SlotID: "s-3", ExpiresAt: now.Add(time.Minute)},
		model.BookingDetails{Reason: "follow up"})
	if err != nil {
		t.Fatal(err)
	}
	if res.OldAppointmentID != "a-1" || res.NewAppointment.SlotID != "s-3" {
		t.Errorf("unexpected result %+v", res)
	}
}
