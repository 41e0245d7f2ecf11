package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	slotserrors "clinicslots/internal/slots/errors"
	"clinicslots/pkg/model"
)

// Reschedule stages, reported to a FailPoint.
const (
	StageSlotBooked         = "slot_booked"
	StageAppointmentCreated = "appointment_created"
	StageOldSuperseded      = "old_superseded"
)

// FailPoint is called between reschedule stages. A non-nil error aborts the
// reschedule.
type FailPoint func(stage string) error

type MemoryOption func(*memorySlotRepository)

func WithFailPoint(fp FailPoint) MemoryOption {
	return func(r *memorySlotRepository) { r.failPoint = fp }
}

// memorySlotRepository keeps slots and appointments in process. One mutex
// serializes every transition, which gives the same per-slot atomicity as
// the conditional writes of the Mongo repository.
type memorySlotRepository struct {
	mu           sync.Mutex
	slots        map[string]*model.TimeSlot
	appointments map[string]*model.Appointment
	failPoint    FailPoint
}

func NewMemorySlotRepository(opts ...MemoryOption) SlotRepository {
	r := &memorySlotRepository{
		slots:        make(map[string]*model.TimeSlot),
		appointments: make(map[string]*model.Appointment),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *memorySlotRepository) Insert(_ context.Context, slots ...*model.TimeSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range slots {
		if _, exists := r.slots[s.ID]; exists {
			return slotserrors.ErrDuplicateSlot
		}
	}
	for _, s := range slots {
		r.slots[s.ID] = s.Clone()
	}
	return nil
}

func (r *memorySlotRepository) FindByID(_ context.Context, id string) (*model.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[id]
	if !ok {
		return nil, slotserrors.ErrSlotNotFound
	}
	return slot.Clone(), nil
}

func (r *memorySlotRepository) FindByDoctorAndDate(_ context.Context, doctorID, date string) ([]*model.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []*model.TimeSlot{}
	for _, s := range r.slots {
		if s.DoctorID == doctorID && s.Date == date {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *memorySlotRepository) CountOpenByDates(_ context.Context, doctorID string, dates []string, now, notBefore time.Time) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wanted := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		wanted[d] = struct{}{}
	}

	counts := make(map[string]int)
	for _, s := range r.slots {
		if s.DoctorID != doctorID {
			continue
		}
		if _, ok := wanted[s.Date]; !ok {
			continue
		}
		if s.IsOpen(now) && s.StartTime.After(notBefore) {
			counts[s.Date]++
		}
	}
	return counts, nil
}

func (r *memorySlotRepository) Hold(_ context.Context, p HoldParams) (*model.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[p.SlotID]
	if !ok {
		return nil, slotserrors.ErrSlotNotFound
	}
	if (p.DoctorID != "" && slot.DoctorID != p.DoctorID) || (p.Date != "" && slot.Date != p.Date) {
		return nil, slotserrors.ErrSlotMismatch
	}
	if !slot.IsOpen(p.Now) {
		return nil, slotserrors.ErrSlotUnavailable
	}

	expires := p.ExpiresAt
	slot.Status = model.SlotHeld
	slot.HeldBy = p.Holder
	slot.HoldExpiresAt = &expires
	slot.UpdatedAt = p.Now
	slot.Version++
	return slot.Clone(), nil
}

func (r *memorySlotRepository) Release(_ context.Context, slotID, holder string, now time.Time) (*model.TimeSlot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.slots[slotID]
	if !ok {
		return nil, false, slotserrors.ErrSlotNotFound
	}
	if slot.Status != model.SlotHeld || slot.HeldBy != holder {
		return slot.Clone(), false, nil
	}
	clearHold(slot, model.SlotAvailable, now)
	return slot.Clone(), true, nil
}

func (r *memorySlotRepository) SweepExpired(_ context.Context, now time.Time) ([]*model.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var swept []*model.TimeSlot
	for _, slot := range r.slots {
		if slot.Status != model.SlotHeld || slot.HoldActive(now) {
			continue
		}
		swept = append(swept, slot.Clone())
		clearHold(slot, model.SlotAvailable, now)
	}
	return swept, nil
}

func clearHold(slot *model.TimeSlot, status model.SlotStatus, now time.Time) {
	slot.Status = status
	slot.HeldBy = ""
	slot.HoldExpiresAt = nil
	slot.UpdatedAt = now
	slot.Version++
}

// bookLocked validates the caller's live hold on slotID and returns a
// booked copy without storing it.
func (r *memorySlotRepository) bookLocked(slotID, holder string, now time.Time) (*model.TimeSlot, error) {
	slot, ok := r.slots[slotID]
	if !ok {
		return nil, slotserrors.ErrSlotNotFound
	}
	if !slot.HeldByHolder(holder, now) {
		return nil, slotserrors.ErrHoldNotActive
	}
	booked := slot.Clone()
	clearHold(booked, model.SlotBooked, now)
	return booked, nil
}

// committedLocked returns holder's live appointment on a booked slotID,
// left by an earlier commit whose response the caller never saw.
func (r *memorySlotRepository) committedLocked(slotID, holder string) (*model.Appointment, *model.TimeSlot) {
	slot, ok := r.slots[slotID]
	if !ok || slot.Status != model.SlotBooked {
		return nil, nil
	}
	for _, a := range r.appointments {
		if a.SlotID == slotID && a.Patient == holder && a.Reschedulable() {
			return a, slot
		}
	}
	return nil, nil
}

func (r *memorySlotRepository) Book(_ context.Context, p BookParams) (*model.Appointment, *model.TimeSlot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	booked, err := r.bookLocked(p.SlotID, p.Holder, p.Now)
	if errors.Is(err, slotserrors.ErrHoldNotActive) {
		if appt, slot := r.committedLocked(p.SlotID, p.Holder); appt != nil {
			return cloneAppointment(appt), slot.Clone(), nil
		}
	}
	if err != nil {
		return nil, nil, err
	}
	appt := model.NewAppointment(p.AppointmentID, booked, p.Holder, p.Details, p.Now)

	r.slots[booked.ID] = booked
	r.appointments[appt.ID] = appt
	return cloneAppointment(appt), booked.Clone(), nil
}

// Reschedule stages every change on copies and stores them only after the
// last step succeeded.
func (r *memorySlotRepository) Reschedule(_ context.Context, p RescheduleParams) (*RescheduleOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.appointments[p.OldAppointmentID]
	if !ok || stored.Patient != p.Holder {
		return nil, slotserrors.ErrAppointmentNotFound
	}
	if replay := r.replayedLocked(stored, p.SlotID); replay != nil {
		return replay, nil
	}
	if !stored.Reschedulable() {
		return nil, slotserrors.ErrAppointmentNotReschedulable
	}

	booked, err := r.bookLocked(p.SlotID, p.Holder, p.Now)
	if err != nil {
		return nil, err
	}
	if err := r.fail(StageSlotBooked); err != nil {
		return nil, err
	}

	created := model.NewAppointment(p.AppointmentID, booked, p.Holder, p.Details, p.Now)
	created.RescheduledFrom = stored.ID
	if err := r.fail(StageAppointmentCreated); err != nil {
		return nil, err
	}

	old := cloneAppointment(stored)
	old.Status = model.AppointmentSuperseded
	old.SupersededBy = created.ID
	old.UpdatedAt = p.Now
	if err := r.fail(StageOldSuperseded); err != nil {
		return nil, err
	}

	var freed *model.TimeSlot
	if prev, ok := r.slots[old.SlotID]; ok && prev.Status == model.SlotBooked && prev.ID != booked.ID {
		freed = prev.Clone()
		clearHold(freed, model.SlotAvailable, p.Now)
	}

	r.slots[booked.ID] = booked
	r.appointments[created.ID] = created
	r.appointments[old.ID] = old
	if freed != nil {
		r.slots[freed.ID] = freed
	}

	outcome := &RescheduleOutcome{
		NewAppointment: cloneAppointment(created),
		OldAppointment: cloneAppointment(old),
		NewSlot:        booked.Clone(),
	}
	if freed != nil {
		outcome.OldSlot = freed.Clone()
	}
	return outcome, nil
}

// replayedLocked returns the outcome of an earlier reschedule of old onto
// slotID, or nil when old was not moved there.
func (r *memorySlotRepository) replayedLocked(old *model.Appointment, slotID string) *RescheduleOutcome {
	created, ok := r.appointments[old.SupersededBy]
	if !ok || created.SlotID != slotID || !created.Reschedulable() {
		return nil
	}
	slot, ok := r.slots[slotID]
	if !ok {
		return nil
	}
	return &RescheduleOutcome{
		NewAppointment: cloneAppointment(created),
		OldAppointment: cloneAppointment(old),
		NewSlot:        slot.Clone(),
	}
}

func (r *memorySlotRepository) fail(stage string) error {
	if r.failPoint == nil {
		return nil
	}
	return r.failPoint(stage)
}

func (r *memorySlotRepository) FindAppointment(_ context.Context, id string) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	appt, ok := r.appointments[id]
	if !ok {
		return nil, slotserrors.ErrAppointmentNotFound
	}
	return cloneAppointment(appt), nil
}

func (r *memorySlotRepository) Ping(context.Context) error {
	return nil
}

func cloneAppointment(a *model.Appointment) *model.Appointment {
	out := *a
	out.ChiefComplaint.AssociatedSymptoms = append([]string(nil), a.ChiefComplaint.AssociatedSymptoms...)
	if a.ChiefComplaint.PainScale != nil {
		p := *a.ChiefComplaint.PainScale
		out.ChiefComplaint.PainScale = &p
	}
	return &out
}
