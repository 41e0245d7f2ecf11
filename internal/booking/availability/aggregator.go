// Package availability turns slot store counts into per-date availability
// for a doctor and keeps a short-lived month cache of it.
package availability

import (
	"context"
	"time"

	"clinicslots/pkg/clock"
	apperrors "clinicslots/pkg/errors"
	"clinicslots/pkg/logger"
	"clinicslots/pkg/model"
	"clinicslots/pkg/sanitizer"
)

// SlotSource is the read side of the slot store.
type SlotSource interface {
	BatchAvailability(ctx context.Context, doctorID string, dates []string) (model.AvailabilityCounts, error)
	ListSlots(ctx context.Context, doctorID, date string, status model.SlotStatus) ([]*model.TimeSlot, error)
}

type Aggregator struct {
	source SlotSource
	clock  clock.Clock
	loc    *time.Location
	buffer time.Duration
	log    *logger.Logger
}

func NewAggregator(source SlotSource, clk clock.Clock, loc *time.Location, buffer time.Duration, log *logger.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	return &Aggregator{
		source: source,
		clock:  clk,
		loc:    loc,
		buffer: buffer,
		log:    log.Component("availability"),
	}
}

// BatchAvailability returns one entry per requested date. It asks the store
// once and falls back to listing each date when the batch call fails.
func (a *Aggregator) BatchAvailability(ctx context.Context, doctorID string, dates []string) (model.AvailabilityIndex, error) {
	doctorID = sanitizer.NormalizeID(doctorID)
	dates = sanitizer.NormalizeDates(dates)
	if doctorID == "" {
		return nil, apperrors.InvalidInput("doctor_id is required")
	}
	if len(dates) == 0 {
		return nil, apperrors.InvalidInput("at least one date is required")
	}

	counts, err := a.source.BatchAvailability(ctx, doctorID, dates)
	if err != nil {
		if apperrors.RequiresSignIn(err) {
			return nil, err
		}
		a.log.Warn("Batch availability failed, falling back to per-date listing",
			"doctor_id", doctorID,
			"dates", len(dates),
			"error", err,
		)
		counts, err = a.countPerDate(ctx, doctorID, dates)
		if err != nil {
			return nil, err
		}
	}

	today := model.Today(a.clock.Now(), a.loc)
	index := make(model.AvailabilityIndex, len(dates))
	for _, date := range dates {
		open := counts[date]
		past := date < today
		if past {
			open = 0
		}
		index[date] = model.DayAvailability{
			OpenCount: open,
			IsPast:    past,
			IsFull:    !past && open == 0,
		}
	}
	return index, nil
}

func (a *Aggregator) countPerDate(ctx context.Context, doctorID string, dates []string) (model.AvailabilityCounts, error) {
	counts := make(model.AvailabilityCounts, len(dates))
	for _, date := range dates {
		slots, err := a.OpenSlots(ctx, doctorID, date)
		if err != nil {
			return nil, err
		}
		counts[date] = len(slots)
	}
	return counts, nil
}

// OpenSlots lists the slots of date a patient can still pick, excluding
// those starting within the buffer.
func (a *Aggregator) OpenSlots(ctx context.Context, doctorID, date string) ([]*model.TimeSlot, error) {
	slots, err := a.source.ListSlots(ctx, doctorID, date, model.SlotAvailable)
	if err != nil {
		a.log.Warn("Failed to list slots", "doctor_id", doctorID, "date", date, "error", err)
		return nil, err
	}
	cutoff := a.clock.Now().Add(a.buffer)
	open := slots[:0:0]
	for _, slot := range slots {
		if slot.StartTime.After(cutoff) {
			open = append(open, slot)
		}
	}
	return open, nil
}

// Location is the clinic time zone used for "today".
func (a *Aggregator) Location() *time.Location {
	return a.loc
}
