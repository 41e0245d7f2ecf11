package service

import (
	"context"
	"strings"

	"clinicslots/internal/slots/events"
	"clinicslots/internal/slots/repository"
	"clinicslots/internal/slots/validator"
	"clinicslots/pkg/clock"
	"clinicslots/pkg/config"
	apperrors "clinicslots/pkg/errors"
	"clinicslots/pkg/model"
	"clinicslots/pkg/sanitizer"

	"github.com/google/uuid"
)

// LeaseService owns the slot lifecycle: hold, release, commit, reschedule.
type LeaseService interface {
	Hold(ctx context.Context, holder string, req *model.HoldRequest) (*model.Hold, error)
	Release(ctx context.Context, holder string, req *model.ReleaseRequest) (*model.ReleaseResult, error)
	CompleteBooking(ctx context.Context, holder string, req *model.CompleteBookingRequest) (*model.Appointment, error)
	Reschedule(ctx context.Context, holder, appointmentID string, req *model.CompleteBookingRequest) (*model.RescheduleResult, error)
	GetSlot(ctx context.Context, holder, slotID string) (*model.TimeSlot, error)
	GetAppointment(ctx context.Context, holder, appointmentID string) (*model.Appointment, error)
}

type leaseService struct {
	deps
}

func NewLeaseService(
	repo repository.SlotRepository,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	clk clock.Clock,
	cfg *config.Config,
) LeaseService {
	return &leaseService{deps{repo: repo, validator: validator, publisher: publisher, clock: clk, cfg: cfg}}
}

func (s *leaseService) Hold(ctx context.Context, holder string, req *model.HoldRequest) (*model.Hold, error) {
	req.SlotID = sanitizer.NormalizeID(req.SlotID)
	req.DoctorID = sanitizer.NormalizeID(req.DoctorID)
	req.Date = strings.TrimSpace(req.Date)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.cfg.HoldDuration)
	slot, err := s.repo.Hold(ctx, repository.HoldParams{
		SlotID:    req.SlotID,
		Holder:    holder,
		Now:       now,
		ExpiresAt: expiresAt,
		DoctorID:  req.DoctorID,
		Date:      req.Date,
	})
	if err != nil {
		s.cfg.Log.Info("Hold rejected", "slot_id", req.SlotID, "holder", holder, "error", err)
		return nil, translate(err, req.SlotID, "", "hold slot")
	}

	s.cfg.Log.Info("Hold acquired",
		"slot_id", slot.ID,
		"doctor_id", slot.DoctorID,
		"date", slot.Date,
		"holder", holder,
		"expires_at", expiresAt,
	)
	s.publish(ctx, model.NewSlotEvent(model.EventSlotHeld, slot, now))
	return model.NewHold(slot, holder, expiresAt, s.cfg.HoldDuration), nil
}

func (s *leaseService) Release(ctx context.Context, holder string, req *model.ReleaseRequest) (*model.ReleaseResult, error) {
	req.SlotID = sanitizer.NormalizeID(req.SlotID)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	slot, released, err := s.repo.Release(ctx, req.SlotID, holder, now)
	if err != nil {
		return nil, translate(err, req.SlotID, "", "release slot")
	}

	if released {
		s.cfg.Log.Info("Hold released", "slot_id", slot.ID, "holder", holder)
		s.publish(ctx, model.NewSlotEvent(model.EventSlotReleased, slot, now))
	} else {
		s.cfg.Log.Debug("Release was a no-op", "slot_id", req.SlotID, "holder", holder)
	}
	return &model.ReleaseResult{SlotID: req.SlotID, Released: released}, nil
}

func (s *leaseService) prepareBooking(req *model.CompleteBookingRequest) error {
	req.SlotID = sanitizer.NormalizeID(req.SlotID)
	sanitizer.BookingDetails(&req.BookingDetails)
	if err := s.validate(req); err != nil {
		return err
	}
	return s.validate(&req.BookingDetails)
}

func (s *leaseService) CompleteBooking(ctx context.Context, holder string, req *model.CompleteBookingRequest) (*model.Appointment, error) {
	if err := s.prepareBooking(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	appointmentID := uuid.NewString()
	appt, slot, err := s.repo.Book(ctx, repository.BookParams{
		SlotID:        req.SlotID,
		Holder:        holder,
		Now:           now,
		AppointmentID: appointmentID,
		Details:       req.BookingDetails,
	})
	if err != nil {
		s.cfg.Log.Info("Commit rejected", "slot_id", req.SlotID, "holder", holder, "error", err)
		return nil, translate(err, req.SlotID, "", "complete booking")
	}
	if appt.ID != appointmentID {
		s.cfg.Log.Info("Commit repeated, returning existing appointment",
			"appointment_id", appt.ID,
			"slot_id", slot.ID,
			"holder", holder,
		)
		return appt, nil
	}

	s.cfg.Log.Info("Booking completed",
		"appointment_id", appt.ID,
		"slot_id", slot.ID,
		"doctor_id", slot.DoctorID,
		"holder", holder,
	)
	ev := model.NewSlotEvent(model.EventSlotBooked, slot, now)
	ev.AppointmentID = appt.ID
	s.publish(ctx, ev)
	return appt, nil
}

func (s *leaseService) Reschedule(ctx context.Context, holder, appointmentID string, req *model.CompleteBookingRequest) (*model.RescheduleResult, error) {
	appointmentID = sanitizer.NormalizeID(appointmentID)
	if appointmentID == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}
	if err := s.prepareBooking(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	newID := uuid.NewString()
	outcome, err := s.repo.Reschedule(ctx, repository.RescheduleParams{
		BookParams: repository.BookParams{
			SlotID:        req.SlotID,
			Holder:        holder,
			Now:           now,
			AppointmentID: newID,
			Details:       req.BookingDetails,
		},
		OldAppointmentID: appointmentID,
	})
	if err != nil {
		s.cfg.Log.Info("Reschedule rejected",
			"appointment_id", appointmentID,
			"slot_id", req.SlotID,
			"holder", holder,
			"error", err,
		)
		return nil, translate(err, req.SlotID, appointmentID, "reschedule appointment")
	}
	if outcome.NewAppointment.ID != newID {
		s.cfg.Log.Info("Reschedule repeated, returning existing appointment",
			"old_appointment_id", appointmentID,
			"new_appointment_id", outcome.NewAppointment.ID,
			"holder", holder,
		)
		return &model.RescheduleResult{
			NewAppointment:   outcome.NewAppointment,
			OldAppointmentID: appointmentID,
		}, nil
	}

	s.cfg.Log.Info("Appointment rescheduled",
		"old_appointment_id", appointmentID,
		"new_appointment_id", outcome.NewAppointment.ID,
		"slot_id", outcome.NewSlot.ID,
		"holder", holder,
	)

	booked := model.NewSlotEvent(model.EventSlotBooked, outcome.NewSlot, now)
	booked.AppointmentID = outcome.NewAppointment.ID
	evs := []model.SlotEvent{booked}
	if outcome.OldSlot != nil {
		updated := model.NewSlotEvent(model.EventAppointmentUpdated, outcome.OldSlot, now)
		updated.AppointmentID = appointmentID
		evs = append(evs, updated)
	}
	s.publish(ctx, evs...)

	return &model.RescheduleResult{
		NewAppointment:   outcome.NewAppointment,
		OldAppointmentID: appointmentID,
	}, nil
}

// GetSlot returns the slot with hold details visible only to their owner.
// An expired hold is reported as available.
func (s *leaseService) GetSlot(ctx context.Context, holder, slotID string) (*model.TimeSlot, error) {
	slotID = sanitizer.NormalizeID(slotID)
	if slotID == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}
	slot, err := s.repo.FindByID(ctx, slotID)
	if err != nil {
		return nil, translate(err, slotID, "", "retrieve slot")
	}
	return present(slot, holder, s.clock.Now()), nil
}

func (s *leaseService) GetAppointment(ctx context.Context, holder, appointmentID string) (*model.Appointment, error) {
	appointmentID = sanitizer.NormalizeID(appointmentID)
	if appointmentID == "" {
		return nil, apperrors.InvalidInput("Appointment ID cannot be empty")
	}
	appt, err := s.repo.FindAppointment(ctx, appointmentID)
	if err != nil {
		return nil, translate(err, "", appointmentID, "retrieve appointment")
	}
	if appt.Patient != holder {
		return nil, apperrors.NotFoundWithID("Appointment", appointmentID)
	}
	return appt, nil
}
