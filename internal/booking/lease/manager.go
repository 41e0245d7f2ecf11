// Package lease is the caller's side of the slot lease: acquire, release and
// commit against the slot store, with the local checks that save a round
// trip.
package lease

import (
	"context"
	"strings"
	"sync"
	"time"

	"clinicslots/pkg/auth"
	"clinicslots/pkg/clock"
	apperrors "clinicslots/pkg/errors"
	"clinicslots/pkg/logger"
	"clinicslots/pkg/model"
)

// SlotStore is the subset of the slot store API the manager drives.
type SlotStore interface {
	Hold(ctx context.Context, req model.HoldRequest) (*model.Hold, error)
	Release(ctx context.Context, slotID string) (*model.ReleaseResult, error)
	GetSlot(ctx context.Context, slotID string) (*model.TimeSlot, error)
	CompleteBooking(ctx context.Context, slotID string, details model.BookingDetails) (*model.Appointment, error)
	Reschedule(ctx context.Context, appointmentID, slotID string, details model.BookingDetails) (*model.RescheduleResult, error)
}

type Manager struct {
	store          SlotStore
	identity       auth.Identity
	clock          clock.Clock
	releaseTimeout time.Duration
	log            *logger.Logger

	wg sync.WaitGroup
}

func NewManager(store SlotStore, identity auth.Identity, clk clock.Clock, releaseTimeout time.Duration, log *logger.Logger) *Manager {
	return &Manager{
		store:          store,
		identity:       identity,
		clock:          clk,
		releaseTimeout: releaseTimeout,
		log:            log.Component("lease_manager"),
	}
}

// Acquire takes a hold on slotID. doctorID and date are optional
// expectations; a slot that does not match them is reported as not found.
//
// When the request fails in transit the hold may still have been granted,
// so the slot is re-read: a live hold owned by the caller is returned as
// acquired, anything else surfaces the original transport error.
func (m *Manager) Acquire(ctx context.Context, slotID, doctorID, date string) (*model.Hold, error) {
	hold, err := m.store.Hold(ctx, model.HoldRequest{SlotID: slotID, DoctorID: doctorID, Date: date})
	if err == nil {
		m.log.Info("Hold acquired", "slot_id", slotID, "expires_at", hold.ExpiresAt)
		return hold, nil
	}
	if !apperrors.IsRetryable(err) {
		return nil, err
	}

	m.log.Warn("Acquire failed in transit, checking slot", "slot_id", slotID, "error", err)
	if discovered := m.discover(ctx, slotID); discovered != nil {
		m.log.Info("Hold discovered after transport failure", "slot_id", slotID, "expires_at", discovered.ExpiresAt)
		return discovered, nil
	}
	return nil, err
}

func (m *Manager) discover(ctx context.Context, slotID string) *model.Hold {
	creds, ok := m.identity.Credentials()
	if !ok {
		return nil
	}
	slot, err := m.store.GetSlot(ctx, slotID)
	if err != nil {
		m.log.Debug("Slot re-query failed", "slot_id", slotID, "error", err)
		return nil
	}
	now := m.clock.Now()
	if !slot.HeldByHolder(creds.Holder, now) {
		return nil
	}
	expiresAt := *slot.HoldExpiresAt
	return model.NewHold(slot, creds.Holder, expiresAt, expiresAt.Sub(now))
}

// Release gives slotID back. It never fails the caller: transport and store
// errors are logged and dropped.
func (m *Manager) Release(ctx context.Context, slotID string) {
	if slotID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, m.releaseTimeout)
	defer cancel()

	res, err := m.store.Release(ctx, slotID)
	if err != nil {
		m.log.Warn("Release failed", "slot_id", slotID, "error", err)
		return
	}
	m.log.Debug("Release completed", "slot_id", slotID, "released", res.Released)
}

// ReleaseAsync releases in the background so the caller's state can move on
// immediately.
func (m *Manager) ReleaseAsync(slotID string) {
	if slotID == "" {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Release(context.Background(), slotID)
	}()
}

// Wait blocks until background releases finish.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// repeatInTransit runs call a second time when the first attempt failed in
// transit. The store answers a repeated commit with what the first one
// stored, so the repeat reports the real outcome. A second transport failure
// surfaces the first error.
func repeatInTransit[T any](m *Manager, op, slotID string, call func() (T, error)) (T, error) {
	out, err := call()
	if err == nil || !apperrors.IsRetryable(err) {
		return out, err
	}
	m.log.Warn("Request failed in transit, repeating", "op", op, "slot_id", slotID, "error", err)
	again, againErr := call()
	if againErr != nil && apperrors.IsRetryable(againErr) {
		return out, err
	}
	return again, againErr
}

// Commit books the held slot. An elapsed deadline or a blank reason is
// rejected locally.
func (m *Manager) Commit(ctx context.Context, hold *model.Hold, details model.BookingDetails) (*model.Appointment, error) {
	if err := m.precheck(hold, details); err != nil {
		return nil, err
	}
	appt, err := repeatInTransit(m, "commit", hold.SlotID, func() (*model.Appointment, error) {
		return m.store.CompleteBooking(ctx, hold.SlotID, details)
	})
	if err != nil {
		m.log.Info("Commit rejected", "slot_id", hold.SlotID, "error", err)
		return nil, err
	}
	m.log.Info("Booking committed", "slot_id", hold.SlotID, "appointment_id", appt.ID)
	return appt, nil
}

// Reschedule books the held slot in place of appointmentID.
func (m *Manager) Reschedule(ctx context.Context, appointmentID string, hold *model.Hold, details model.BookingDetails) (*model.RescheduleResult, error) {
	if err := m.precheck(hold, details); err != nil {
		return nil, err
	}
	result, err := repeatInTransit(m, "reschedule", hold.SlotID, func() (*model.RescheduleResult, error) {
		return m.store.Reschedule(ctx, appointmentID, hold.SlotID, details)
	})
	if err != nil {
		m.log.Info("Reschedule rejected", "slot_id", hold.SlotID, "appointment_id", appointmentID, "error", err)
		return nil, err
	}
	m.log.Info("Appointment rescheduled",
		"old_appointment_id", result.OldAppointmentID,
		"new_appointment_id", result.NewAppointment.ID,
	)
	return result, nil
}

func (m *Manager) precheck(hold *model.Hold, details model.BookingDetails) error {
	if hold == nil {
		return apperrors.HoldExpired("")
	}
	if hold.Expired(m.clock.Now()) {
		return apperrors.HoldExpired(hold.SlotID)
	}
	if strings.TrimSpace(details.Reason) == "" {
		return apperrors.Validation("Booking details are incomplete", map[string]any{
			"reason": "reason cannot be empty",
		})
	}
	return nil
}
