package service

import (
	"context"
	"time"

	"clinicslots/internal/slots/repository"
	"clinicslots/internal/slots/validator"
	"clinicslots/pkg/clock"
	"clinicslots/pkg/config"
	apperrors "clinicslots/pkg/errors"
	"clinicslots/pkg/model"
	"clinicslots/pkg/sanitizer"
)

type AvailabilityService interface {
	// BatchAvailability counts open slots per date in one query. Every
	// requested date is present in the result, zero included.
	BatchAvailability(ctx context.Context, req *model.BatchAvailabilityRequest) (model.AvailabilityCounts, error)
	ListSlots(ctx context.Context, holder, doctorID, date string, status model.SlotStatus) ([]*model.TimeSlot, error)
}

type availabilityService struct {
	deps
}

func NewAvailabilityService(
	repo repository.SlotRepository,
	validator *validator.BookingValidator,
	clk clock.Clock,
	cfg *config.Config,
) AvailabilityService {
	return &availabilityService{deps{repo: repo, validator: validator, clock: clk, cfg: cfg}}
}

func (s *availabilityService) BatchAvailability(ctx context.Context, req *model.BatchAvailabilityRequest) (model.AvailabilityCounts, error) {
	req.DoctorID = sanitizer.NormalizeID(req.DoctorID)
	req.Dates = sanitizer.NormalizeDates(req.Dates)
	if err := s.validate(req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	counts, err := s.repo.CountOpenByDates(ctx, req.DoctorID, req.Dates, now, now.Add(s.cfg.TodayBuffer))
	if err != nil {
		s.cfg.Log.Error("Failed to count availability", "doctor_id", req.DoctorID, "dates", len(req.Dates), "error", err)
		return nil, apperrors.Internal("Failed to compute availability", err)
	}

	out := make(model.AvailabilityCounts, len(req.Dates))
	for _, date := range req.Dates {
		out[date] = counts[date]
	}

	s.cfg.Log.Debug("Batch availability computed", "doctor_id", req.DoctorID, "dates", len(req.Dates))
	return out, nil
}

func (s *availabilityService) ListSlots(ctx context.Context, holder, doctorID, date string, status model.SlotStatus) ([]*model.TimeSlot, error) {
	doctorID = sanitizer.NormalizeID(doctorID)
	if doctorID == "" || date == "" {
		return nil, apperrors.InvalidInput("doctor_id and date are required")
	}
	if _, err := model.ParseDate(date, s.cfg.Location); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	switch status {
	case "", model.SlotAvailable, model.SlotHeld, model.SlotBooked:
	default:
		return nil, apperrors.InvalidInput("status must be one of: available held booked")
	}

	slots, err := s.repo.FindByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		s.cfg.Log.Error("Failed to list slots", "doctor_id", doctorID, "date", date, "error", err)
		return nil, apperrors.Internal("Failed to retrieve slots", err)
	}

	now := s.clock.Now()
	out := make([]*model.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		view := present(slot, holder, now)
		if status != "" && view.Status != status {
			continue
		}
		out = append(out, view)
	}
	return out, nil
}

// present is the caller's view of a slot: an expired hold reads as
// available and hold ownership is hidden from everyone but the holder.
func present(slot *model.TimeSlot, holder string, now time.Time) *model.TimeSlot {
	view := slot.Redacted(holder)
	if slot.Status == model.SlotHeld && !slot.HoldActive(now) {
		view.Status = model.SlotAvailable
		view.HeldBy = ""
		view.HoldExpiresAt = nil
	}
	return view
}
