package service

import (
	"context"
	"errors"
	"time"

	slotserrors "clinicslots/internal/slots/errors"
	"clinicslots/internal/slots/events"
	"clinicslots/internal/slots/repository"
	"clinicslots/internal/slots/validator"
	"clinicslots/pkg/clock"
	"clinicslots/pkg/config"
	apperrors "clinicslots/pkg/errors"
	"clinicslots/pkg/model"
)

const publishTimeout = 5 * time.Second

// deps is shared by the lease and availability services.
type deps struct {
	repo      repository.SlotRepository
	validator *validator.BookingValidator
	publisher events.Publisher
	clock     clock.Clock
	cfg       *config.Config
}

// publish sends events after the change is durable. Failures are logged:
// events only drive cache invalidation, never correctness.
func (d *deps) publish(ctx context.Context, evs ...model.SlotEvent) {
	if d.publisher == nil || len(evs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := d.publisher.Publish(ctx, evs...); err != nil {
		d.cfg.Log.Warn("Failed to publish slot events", "count", len(evs), "error", err)
	}
}

func (d *deps) validate(s any) error {
	if err := d.validator.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return apperrors.Validation("Request validation failed", verrs.Fields())
		}
		return apperrors.Validation("Request validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// translate maps repository errors onto the public error taxonomy.
func translate(err error, slotID, appointmentID, op string) error {
	switch {
	case err == nil:
		return nil
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, slotserrors.ErrSlotNotFound), errors.Is(err, slotserrors.ErrSlotMismatch):
		return apperrors.SlotNotFound(slotID)
	case errors.Is(err, slotserrors.ErrSlotUnavailable):
		return apperrors.SlotConflict(slotID)
	case errors.Is(err, slotserrors.ErrHoldNotActive):
		return apperrors.HoldExpired(slotID)
	case errors.Is(err, slotserrors.ErrAppointmentNotFound):
		return apperrors.NotFoundWithID("Appointment", appointmentID)
	case errors.Is(err, slotserrors.ErrAppointmentNotReschedulable):
		return apperrors.Conflict("Appointment can no longer be rescheduled")
	default:
		return apperrors.Internal("Failed to "+op, err)
	}
}
