package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"clinicslots/internal/slots/events"
	"clinicslots/internal/slots/repository"
	"clinicslots/pkg/clock"
	"clinicslots/pkg/logger"
	"clinicslots/pkg/model"
)

// Sweeper periodically returns expired holds to available and announces
// each one as released.
type Sweeper struct {
	repo      repository.SlotRepository
	publisher events.Publisher
	clock     clock.Clock
	interval  time.Duration
	log       *logger.Logger

	stopCh  chan struct{}
	doneCh  chan struct{}
	once    sync.Once
	started atomic.Bool
}

func NewSweeper(repo repository.SlotRepository, publisher events.Publisher, clk clock.Clock, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		repo:      repo,
		publisher: publisher,
		clock:     clk,
		interval:  interval,
		log:       log.Component("expiry_sweeper"),
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start runs the sweep loop in a goroutine until Stop is called.
func (s *Sweeper) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	ticker := s.clock.NewTicker(s.interval)
	go func() {
		defer close(s.doneCh)
		defer ticker.Stop()
		s.log.Info("Expiry sweeper started", "interval", s.interval)
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C():
				if _, err := s.SweepOnce(context.Background()); err != nil {
					s.log.Error("Expiry sweep failed", "error", err)
				}
			}
		}
	}()
}

// Stop ends the loop and waits for an in-progress sweep to finish.
func (s *Sweeper) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
	})
	if s.started.Load() {
		<-s.doneCh
	}
}

// SweepOnce releases every hold expired at the current time.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.clock.Now()
	swept, err := s.repo.SweepExpired(ctx, now)

	if len(swept) > 0 {
		evs := make([]model.SlotEvent, 0, len(swept))
		for _, slot := range swept {
			evs = append(evs, model.NewSlotEvent(model.EventSlotReleased, slot, now))
			s.log.Info("Expired hold released", "slot_id", slot.ID, "doctor_id", slot.DoctorID, "holder", slot.HeldBy)
		}
		if s.publisher != nil {
			if pubErr := s.publisher.Publish(ctx, evs...); pubErr != nil {
				s.log.Warn("Failed to publish sweep events", "count", len(evs), "error", pubErr)
			}
		}
	}
	return len(swept), err
}
