package availability

import (
	"context"

	apperrors "clinicslots/pkg/errors"
	"clinicslots/pkg/model"
)

// CachedAggregator serves month calendars from the cache while fresh.
type CachedAggregator struct {
	*Aggregator
	cache Cache
}

func NewCachedAggregator(agg *Aggregator, cache Cache) *CachedAggregator {
	return &CachedAggregator{Aggregator: agg, cache: cache}
}

// MonthAvailability covers the dates of month from today onwards. month is
// YYYY-MM in the clinic time zone.
func (c *CachedAggregator) MonthAvailability(ctx context.Context, doctorID, month string) (model.AvailabilityIndex, error) {
	index, ok, err := c.cache.Get(ctx, doctorID, month)
	if err != nil {
		c.log.Warn("Availability cache read failed", "doctor_id", doctorID, "month", month, "error", err)
	}
	if ok {
		return index, nil
	}
	return c.Refresh(ctx, doctorID, month)
}

// Refresh recomputes the month from the slot store and replaces the cached
// entry.
func (c *CachedAggregator) Refresh(ctx context.Context, doctorID, month string) (model.AvailabilityIndex, error) {
	today := model.Today(c.clock.Now(), c.loc)
	dates, err := model.DatesInMonth(month, today, c.loc)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	if len(dates) == 0 {
		return model.AvailabilityIndex{}, nil
	}

	index, err := c.BatchAvailability(ctx, doctorID, dates)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, doctorID, month, index); err != nil {
		c.log.Warn("Availability cache write failed", "doctor_id", doctorID, "month", month, "error", err)
	}
	return index, nil
}

// Invalidate drops the cached month containing date.
func (c *CachedAggregator) Invalidate(ctx context.Context, doctorID, date string) {
	if err := c.cache.Invalidate(ctx, doctorID, model.MonthOf(date)); err != nil {
		c.log.Warn("Availability cache invalidation failed", "doctor_id", doctorID, "date", date, "error", err)
	}
}

// InvalidateDoctor drops every cached month of doctorID.
func (c *CachedAggregator) InvalidateDoctor(ctx context.Context, doctorID string) {
	if err := c.cache.InvalidateDoctor(ctx, doctorID); err != nil {
		c.log.Warn("Availability cache invalidation failed", "doctor_id", doctorID, "error", err)
	}
}
