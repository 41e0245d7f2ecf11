// Package flow drives one patient's booking session: doctor, date, slot,
// hold, details, commit. The controller owns the one-hold-per-session rule;
// the lease manager it calls is stateless.
package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"clinicslots/internal/booking/countdown"
	"clinicslots/pkg/auth"
	"clinicslots/pkg/clock"
	apperrors "clinicslots/pkg/errors"
	"clinicslots/pkg/logger"
	"clinicslots/pkg/model"
)

const sessionSaveTimeout = 2 * time.Second

type LeaseManager interface {
	Acquire(ctx context.Context, slotID, doctorID, date string) (*model.Hold, error)
	ReleaseAsync(slotID string)
	Commit(ctx context.Context, hold *model.Hold, details model.BookingDetails) (*model.Appointment, error)
	Reschedule(ctx context.Context, appointmentID string, hold *model.Hold, details model.BookingDetails) (*model.RescheduleResult, error)
}

type Availability interface {
	MonthAvailability(ctx context.Context, doctorID, month string) (model.AvailabilityIndex, error)
	Refresh(ctx context.Context, doctorID, month string) (model.AvailabilityIndex, error)
	OpenSlots(ctx context.Context, doctorID, date string) ([]*model.TimeSlot, error)
}

type ProfileChecker interface {
	IsProfileComplete(ctx context.Context) (bool, []string, error)
}

type AppointmentSource interface {
	GetAppointment(ctx context.Context, appointmentID string) (*model.Appointment, error)
}

// Deps are the controller's collaborators. Sessions and Observer are
// optional.
type Deps struct {
	Lease        LeaseManager
	Availability Availability
	Profile      ProfileChecker
	Appointments AppointmentSource
	Identity     auth.Identity
	Sessions     SessionStore
	Observer     Observer
	Clock        clock.Clock
	Location     *time.Location
	Log          *logger.Logger
}

type Controller struct {
	sessionID string
	deps      Deps
	log       *logger.Logger

	mu          sync.Mutex
	state       State
	mode        Mode
	draft       *model.BookingDraft
	month       string
	viewDate    string
	calendar    model.AvailabilityIndex
	slots       []*model.TimeSlot
	hold        *model.Hold
	countdown   *countdown.Countdown
	appointment *model.Appointment
	lastErr     error
	retryTarget State

	acquiring       bool
	committing      bool
	expiredInCommit bool
	// gen changes on every navigation so in-flight results for a screen the
	// user already left are dropped.
	gen uint64

	outbox []func(Observer)
	dirty  bool
}

func NewController(sessionID string, deps Deps) *Controller {
	if deps.Observer == nil {
		deps.Observer = NopObserver{}
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	c := &Controller{
		sessionID: sessionID,
		deps:      deps,
		log:       deps.Log.Component("booking_flow").With("session_id", sessionID),
		mode:      ModeBooking,
		state:     StateSelectingDoctor,
	}
	if _, ok := deps.Identity.Credentials(); !ok {
		c.state = StateSignInRequired
	}
	return c
}

func (c *Controller) emit(fn func(Observer)) {
	c.outbox = append(c.outbox, fn)
}

// setState must be called with mu held.
func (c *Controller) setState(to State) {
	if c.state == to {
		return
	}
	from := c.state
	c.state = to
	c.dirty = true
	c.log.Debug("Flow transition", "from", from, "to", to)
	c.emit(func(o Observer) { o.StateChanged(from, to) })
}

// unlock releases mu, then delivers queued notifications and persists the
// session when something changed.
func (c *Controller) unlock() {
	outbox := c.outbox
	c.outbox = nil
	var snap *Snapshot
	if c.dirty {
		snap = c.snapshot()
		c.dirty = false
	}
	c.mu.Unlock()

	for _, fn := range outbox {
		fn(c.deps.Observer)
	}
	if snap != nil {
		c.save(snap)
	}
}

func (c *Controller) snapshot() *Snapshot {
	snap := &Snapshot{
		State:    c.state,
		Mode:     c.mode,
		Month:    c.month,
		ViewDate: c.viewDate,
		SavedAt:  c.deps.Clock.Now(),
	}
	if c.draft != nil {
		d := *c.draft
		snap.Draft = &d
	}
	if c.hold != nil {
		h := *c.hold
		snap.Hold = &h
	}
	if c.appointment != nil {
		snap.AppointmentID = c.appointment.ID
	}
	return snap
}

func (c *Controller) save(snap *Snapshot) {
	if c.deps.Sessions == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sessionSaveTimeout)
	defer cancel()
	if err := c.deps.Sessions.Save(ctx, c.sessionID, snap); err != nil {
		c.log.Warn("Failed to save booking session", "state", snap.State, "error", err)
	}
}

func (c *Controller) invalid(op string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, c.state)
}

// requireSignedIn must be called with mu held.
func (c *Controller) requireSignedIn() error {
	if _, ok := c.deps.Identity.Credentials(); ok {
		return nil
	}
	c.dropHold(true)
	c.setState(StateSignInRequired)
	return apperrors.SignInRequired()
}

// startHold must be called with mu held.
func (c *Controller) startHold(hold *model.Hold) {
	c.hold = hold
	c.dirty = true
	var cd *countdown.Countdown
	cd = countdown.Start(c.deps.Clock, hold.ExpiresAt,
		func(remaining int) { c.deps.Observer.CountdownTick(remaining) },
		func() {
			c.mu.Lock()
			c.onHoldExpired(cd)
		},
	)
	c.countdown = cd
}

func (c *Controller) stopCountdown() {
	if c.countdown != nil {
		c.countdown.Cancel()
		c.countdown = nil
	}
}

// dropHold clears the hold and the draft's slot, releasing it in the
// background when release is set.
func (c *Controller) dropHold(release bool) {
	c.stopCountdown()
	if c.hold != nil {
		if release {
			c.deps.Lease.ReleaseAsync(c.hold.SlotID)
		}
		c.hold = nil
		c.dirty = true
	}
	if c.draft != nil {
		c.draft.ClearSlot()
	}
}

func (c *Controller) holdLive() bool {
	return c.hold != nil && !c.hold.Expired(c.deps.Clock.Now())
}

// onHoldExpired is entered with mu held and releases it.
func (c *Controller) onHoldExpired(cd *countdown.Countdown) {
	if c.countdown != cd {
		c.unlock()
		return
	}
	if c.committing {
		// The commit outcome decides.
		c.expiredInCommit = true
		c.unlock()
		return
	}
	c.expire()
	c.unlock()
	c.refreshAfterExpiry(context.Background())
}

// expire is the timeout path. Must be called with mu held.
func (c *Controller) expire() {
	slotID := ""
	if c.hold != nil {
		slotID = c.hold.SlotID
	}
	c.log.Info("Hold expired", "slot_id", slotID)
	c.dropHold(true)
	if c.draft != nil {
		c.draft.ClearDate()
	}
	c.gen++
	c.setState(StateSelectingSlot)
	c.emit(func(o Observer) { o.HoldExpired() })
}

func (c *Controller) refreshAfterExpiry(ctx context.Context) {
	c.refreshCalendar(ctx, true)
	c.refreshSlots(ctx)
}

// signInLost parks the flow until the patient signs in again. Must be
// called with mu held.
func (c *Controller) signInLost(err error) {
	c.log.Warn("Sign-in required", "state", c.state, "error", err)
	c.dropHold(true)
	c.setState(StateSignInRequired)
}

// fail moves to the Error state remembering what to retry. Must be called
// with mu held.
func (c *Controller) fail(err error, target State) {
	if apperrors.RequiresSignIn(err) {
		c.signInLost(err)
		return
	}
	c.lastErr = err
	c.retryTarget = target
	c.log.Warn("Slot store unavailable", "target", target, "error", err)
	c.setState(StateError)
}

func (c *Controller) refreshCalendar(ctx context.Context, bypassCache bool) {
	c.mu.Lock()
	if c.draft == nil || c.month == "" {
		c.unlock()
		return
	}
	doctorID, month, gen := c.draft.DoctorID, c.month, c.gen
	c.unlock()

	var index model.AvailabilityIndex
	var err error
	if bypassCache {
		index, err = c.deps.Availability.Refresh(ctx, doctorID, month)
	} else {
		index, err = c.deps.Availability.MonthAvailability(ctx, doctorID, month)
	}

	c.mu.Lock()
	defer c.unlock()
	if c.gen != gen || c.month != month {
		return
	}
	if err != nil {
		c.log.Warn("Calendar refresh failed", "doctor_id", doctorID, "month", month, "error", err)
		return
	}
	c.calendar = index
	c.emit(func(o Observer) { o.AvailabilityChanged(month, index) })
}

func (c *Controller) refreshSlots(ctx context.Context) {
	c.mu.Lock()
	if c.draft == nil || c.viewDate == "" || c.state != StateSelectingSlot {
		c.unlock()
		return
	}
	doctorID, date, gen := c.draft.DoctorID, c.viewDate, c.gen
	c.unlock()

	slots, err := c.deps.Availability.OpenSlots(ctx, doctorID, date)

	c.mu.Lock()
	defer c.unlock()
	if c.gen != gen || c.state != StateSelectingSlot {
		return
	}
	if err != nil {
		c.fail(err, StateSelectingSlot)
		return
	}
	c.slots = slots
	c.emit(func(o Observer) { o.SlotsChanged(date, slots) })
}

// SignedIn re-checks the identity after a sign-in.
func (c *Controller) SignedIn() error {
	c.mu.Lock()
	defer c.unlock()
	if c.state != StateSignInRequired {
		return nil
	}
	if _, ok := c.deps.Identity.Credentials(); !ok {
		return apperrors.SignInRequired()
	}
	c.setState(StateSelectingDoctor)
	return nil
}

// SelectDoctor opens the doctor's calendar for the current month. The
// patient's profile must be complete.
func (c *Controller) SelectDoctor(ctx context.Context, doctorID string) error {
	doctorID = strings.TrimSpace(doctorID)
	c.mu.Lock()
	if err := c.requireSignedIn(); err != nil {
		c.unlock()
		return err
	}
	if c.state != StateSelectingDoctor || c.mode != ModeBooking {
		err := c.invalid("select doctor")
		c.unlock()
		return err
	}
	if doctorID == "" {
		c.unlock()
		return apperrors.InvalidInput("doctor_id is required")
	}
	gen := c.gen
	c.unlock()

	complete, missing, err := c.deps.Profile.IsProfileComplete(ctx)
	if err != nil {
		c.log.Warn("Profile check failed", "error", err)
		if apperrors.RequiresSignIn(err) {
			c.mu.Lock()
			c.signInLost(err)
			c.unlock()
		}
		return err
	}
	if !complete {
		c.log.Info("Booking refused, profile incomplete", "missing", missing)
		return apperrors.ProfileIncomplete(missing)
	}

	month := model.MonthOf(model.Today(c.deps.Clock.Now(), c.deps.Location))
	index, err := c.deps.Availability.MonthAvailability(ctx, doctorID, month)

	c.mu.Lock()
	defer c.unlock()
	if c.gen != gen || c.state != StateSelectingDoctor {
		return ErrFlowChanged
	}
	c.draft = model.NewBookingDraft(doctorID)
	c.month = month
	c.dirty = true
	if err != nil {
		c.fail(err, StateSelectingDate)
		return err
	}
	c.calendar = index
	c.emit(func(o Observer) { o.AvailabilityChanged(month, index) })
	c.setState(StateSelectingDate)
	return nil
}

// StartReschedule begins moving an existing appointment: the doctor and
// booking details come from the appointment and the flow opens on the
// calendar.
func (c *Controller) StartReschedule(ctx context.Context, appointmentID string) error {
	c.mu.Lock()
	if err := c.requireSignedIn(); err != nil {
		c.unlock()
		return err
	}
	if c.state != StateSelectingDoctor {
		err := c.invalid("start reschedule")
		c.unlock()
		return err
	}
	gen := c.gen
	c.unlock()

	appt, err := c.deps.Appointments.GetAppointment(ctx, appointmentID)
	if err != nil {
		if apperrors.RequiresSignIn(err) {
			c.mu.Lock()
			c.signInLost(err)
			c.unlock()
		}
		return err
	}
	if !appt.Reschedulable() {
		return apperrors.Conflict("Appointment can no longer be rescheduled")
	}

	month := model.MonthOf(model.Today(c.deps.Clock.Now(), c.deps.Location))
	index, err := c.deps.Availability.MonthAvailability(ctx, appt.DoctorID, month)

	c.mu.Lock()
	defer c.unlock()
	if c.gen != gen || c.state != StateSelectingDoctor {
		return ErrFlowChanged
	}
	c.mode = ModeReschedule
	c.draft = model.NewBookingDraft(appt.DoctorID)
	c.draft.RescheduleOf = appt.ID
	c.draft.Details = model.BookingDetails{
		Reason:          appt.Reason,
		ChiefComplaint:  appt.ChiefComplaint,
		AppointmentType: appt.AppointmentType,
	}
	c.month = month
	c.dirty = true
	if err != nil {
		c.fail(err, StateSelectingDate)
		return err
	}
	c.calendar = index
	c.emit(func(o Observer) { o.AvailabilityChanged(month, index) })
	c.setState(StateSelectingDate)
	return nil
}

// ChangeMonth shows another month of the calendar. month is YYYY-MM.
func (c *Controller) ChangeMonth(ctx context.Context, month string) error {
	if _, err := model.ParseMonth(month, c.deps.Location); err != nil {
		return apperrors.InvalidInput(err.Error())
	}
	c.mu.Lock()
	if c.state != StateSelectingDate {
		err := c.invalid("change month")
		c.unlock()
		return err
	}
	doctorID, gen := c.draft.DoctorID, c.gen
	c.unlock()

	index, err := c.deps.Availability.MonthAvailability(ctx, doctorID, month)

	c.mu.Lock()
	defer c.unlock()
	if c.gen != gen || c.state != StateSelectingDate {
		return ErrFlowChanged
	}
	c.month = month
	c.dirty = true
	if err != nil {
		c.fail(err, StateSelectingDate)
		return err
	}
	c.calendar = index
	c.emit(func(o Observer) { o.AvailabilityChanged(month, index) })
	return nil
}

// SelectDate lists the open slots of date. The date must have at least one
// open slot in the calendar shown.
func (c *Controller) SelectDate(ctx context.Context, date string) error {
	c.mu.Lock()
	if err := c.requireSignedIn(); err != nil {
		c.unlock()
		return err
	}
	if c.state != StateSelectingDate && c.state != StateSelectingSlot {
		err := c.invalid("select date")
		c.unlock()
		return err
	}
	if !c.calendar.Selectable(date) {
		c.unlock()
		return apperrors.InvalidInput("date " + date + " has no open slots")
	}
	c.gen++
	doctorID, gen := c.draft.DoctorID, c.gen
	c.unlock()

	slots, err := c.deps.Availability.OpenSlots(ctx, doctorID, date)

	c.mu.Lock()
	defer c.unlock()
	if c.gen != gen {
		return ErrFlowChanged
	}
	c.viewDate = date
	c.draft.Date = date
	c.dirty = true
	if err != nil {
		c.fail(err, StateSelectingSlot)
		return err
	}
	c.slots = slots
	c.emit(func(o Observer) { o.SlotsChanged(date, slots) })
	c.setState(StateSelectingSlot)
	return nil
}

// SelectSlot acquires slotID and moves straight to the details step with
// the countdown running. A conflict refreshes the slot list and leaves the
// flow on slot selection.
func (c *Controller) SelectSlot(ctx context.Context, slotID string) error {
	c.mu.Lock()
	if err := c.requireSignedIn(); err != nil {
		c.unlock()
		return err
	}
	if c.state != StateSelectingSlot {
		err := c.invalid("select slot")
		c.unlock()
		return err
	}
	if c.acquiring {
		c.unlock()
		return ErrAcquireInFlight
	}
	if c.holdLive() && c.hold.SlotID == slotID {
		c.setState(StateEnteringDetails)
		c.unlock()
		return nil
	}
	// One hold per session.
	c.dropHold(true)
	c.acquiring = true
	doctorID, date, gen := c.draft.DoctorID, c.viewDate, c.gen
	c.unlock()

	hold, err := c.deps.Lease.Acquire(ctx, slotID, doctorID, date)

	c.mu.Lock()
	c.acquiring = false
	if err == nil && (c.gen != gen || c.state != StateSelectingSlot) {
		c.deps.Lease.ReleaseAsync(hold.SlotID)
		c.unlock()
		return ErrFlowChanged
	}
	if err != nil {
		switch {
		case apperrors.HasCode(err, apperrors.CodeSlotConflict), apperrors.HasCode(err, apperrors.CodeSlotNotFound):
			c.log.Info("Slot taken, refreshing", "slot_id", slotID)
			c.unlock()
			c.refreshSlots(ctx)
			c.refreshCalendar(ctx, true)
		case apperrors.RequiresSignIn(err):
			c.signInLost(err)
			c.unlock()
		default:
			c.unlock()
		}
		return err
	}

	c.draft.Date = date
	c.draft.SlotID = hold.SlotID
	c.startHold(hold)
	c.setState(StateHolding)
	c.setState(StateEnteringDetails)
	c.unlock()
	return nil
}

// UpdateDetails records what the patient typed.
func (c *Controller) UpdateDetails(details model.BookingDetails) error {
	c.mu.Lock()
	defer c.unlock()
	if c.state != StateEnteringDetails {
		return c.invalid("update details")
	}
	c.draft.Details = details
	c.dirty = true
	return nil
}

// Confirm commits the held slot, or in reschedule mode moves the original
// appointment onto it.
func (c *Controller) Confirm(ctx context.Context) error {
	c.mu.Lock()
	if err := c.requireSignedIn(); err != nil {
		c.unlock()
		return err
	}
	if c.state != StateEnteringDetails {
		err := c.invalid("confirm")
		c.unlock()
		return err
	}
	if strings.TrimSpace(c.draft.Details.Reason) == "" {
		fields := map[string]any{"reason": "reason cannot be empty"}
		c.emit(func(o Observer) { o.FieldErrors(fields) })
		c.unlock()
		return apperrors.Validation("Booking details are incomplete", fields)
	}
	if !c.holdLive() {
		slotID := c.draft.SlotID
		c.expire()
		c.unlock()
		c.refreshAfterExpiry(ctx)
		return apperrors.HoldExpired(slotID)
	}

	c.committing = true
	c.setState(StateCommitting)
	hold := *c.hold
	details := c.draft.Details
	mode, rescheduleOf := c.mode, c.draft.RescheduleOf
	c.unlock()

	var appt *model.Appointment
	var err error
	if mode == ModeReschedule {
		var res *model.RescheduleResult
		res, err = c.deps.Lease.Reschedule(ctx, rescheduleOf, &hold, details)
		if err == nil {
			appt = res.NewAppointment
		}
	} else {
		appt, err = c.deps.Lease.Commit(ctx, &hold, details)
	}

	c.mu.Lock()
	c.committing = false
	expiredMeanwhile := c.expiredInCommit
	c.expiredInCommit = false

	if err == nil {
		c.stopCountdown()
		c.hold = nil
		c.draft = nil
		c.appointment = appt
		c.setState(StateSuccess)
		c.log.Info("Booking confirmed", "appointment_id", appt.ID, "mode", mode)
		c.unlock()
		return nil
	}

	c.setState(StateFailed)
	switch {
	case apperrors.HasCode(err, apperrors.CodeHoldExpired),
		apperrors.HasCode(err, apperrors.CodeSlotConflict),
		apperrors.HasCode(err, apperrors.CodeSlotNotFound):
		c.expire()
		c.unlock()
		c.refreshAfterExpiry(ctx)
		return err

	case apperrors.RequiresSignIn(err):
		c.signInLost(err)

	case apperrors.HasCode(err, apperrors.CodeValidation), apperrors.IsRetryable(err):
		if expiredMeanwhile || !c.holdLive() {
			c.expire()
			c.unlock()
			c.refreshAfterExpiry(ctx)
			return err
		}
		if fields := apperrors.AsAppError(err).Details; apperrors.HasCode(err, apperrors.CodeValidation) && len(fields) > 0 {
			c.emit(func(o Observer) { o.FieldErrors(fields) })
		}
		c.setState(StateEnteringDetails)

	default:
		c.lastErr = err
		c.log.Warn("Commit failed", "error", err)
		if expiredMeanwhile || !c.holdLive() {
			c.expire()
			c.unlock()
			c.refreshAfterExpiry(ctx)
			return err
		}
	}
	c.unlock()
	return err
}

// Back steps to the previous screen, releasing any hold. While a hold is
// live the caller must pass confirmed=true.
func (c *Controller) Back(ctx context.Context, confirmed bool) error {
	c.mu.Lock()
	if c.holdLive() && !confirmed {
		c.unlock()
		return ErrConfirmationRequired
	}

	refresh := false
	switch c.state {
	case StateHolding, StateEnteringDetails:
		c.dropHold(true)
		c.setState(StateSelectingSlot)
		refresh = true
	case StateSelectingSlot:
		c.dropHold(true)
		c.draft.ClearDate()
		c.viewDate = ""
		c.slots = nil
		c.setState(StateSelectingDate)
	case StateSelectingDate:
		if c.mode == ModeReschedule {
			c.unlock()
			return ErrNoPreviousStep
		}
		c.draft = nil
		c.calendar = nil
		c.month = ""
		c.setState(StateSelectingDoctor)
	default:
		err := c.invalid("go back")
		c.unlock()
		return err
	}
	c.gen++
	c.dirty = true
	c.unlock()

	if refresh {
		c.refreshSlots(ctx)
	}
	return nil
}

// Retry re-runs the load that put the flow in the Error state, or leaves
// Failed for the details step when the hold is still live.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateFailed:
		if c.holdLive() {
			c.setState(StateEnteringDetails)
			c.unlock()
			return nil
		}
		c.expire()
		c.unlock()
		c.refreshAfterExpiry(ctx)
		return nil
	case StateError:
	default:
		err := c.invalid("retry")
		c.unlock()
		return err
	}
	target := c.retryTarget
	doctorID, month, date, gen := c.draft.DoctorID, c.month, c.viewDate, c.gen
	c.unlock()

	index, err := c.deps.Availability.MonthAvailability(ctx, doctorID, month)
	var slots []*model.TimeSlot
	if err == nil && target == StateSelectingSlot {
		slots, err = c.deps.Availability.OpenSlots(ctx, doctorID, date)
	}

	c.mu.Lock()
	defer c.unlock()
	if c.gen != gen || c.state != StateError {
		return ErrFlowChanged
	}
	if err != nil {
		c.lastErr = err
		return err
	}
	c.lastErr = nil
	c.calendar = index
	c.emit(func(o Observer) { o.AvailabilityChanged(month, index) })
	if target == StateSelectingSlot {
		c.slots = slots
		c.emit(func(o Observer) { o.SlotsChanged(date, slots) })
	}
	c.setState(target)
	return nil
}

// HandleSlotEvent refreshes what is on screen when another patient's
// activity changed this doctor's availability.
func (c *Controller) HandleSlotEvent(ctx context.Context, ev model.SlotEvent) {
	c.mu.Lock()
	if c.draft == nil || c.draft.DoctorID != ev.DoctorID {
		c.unlock()
		return
	}
	state, month, date := c.state, c.month, c.viewDate
	c.unlock()

	switch state {
	case StateSelectingDate, StateSelectingSlot, StateEnteringDetails:
	default:
		return
	}
	if model.MonthOf(ev.Date) == month {
		c.refreshCalendar(ctx, false)
	}
	if state == StateSelectingSlot && ev.Date == date {
		c.refreshSlots(ctx)
	}
}

// Resume restores a stored session. A hold whose deadline is still ahead
// restarts its countdown from that deadline; an expired one takes the
// timeout path. It reports whether a session was found.
func (c *Controller) Resume(ctx context.Context) (bool, error) {
	if c.deps.Sessions == nil {
		return false, nil
	}
	snap, ok, err := c.deps.Sessions.Load(ctx, c.sessionID)
	if err != nil || !ok {
		return false, err
	}

	c.mu.Lock()
	c.mode = snap.Mode
	if c.mode == "" {
		c.mode = ModeBooking
	}
	c.draft = snap.Draft
	if snap.AppointmentID != "" {
		c.appointment = &model.Appointment{ID: snap.AppointmentID}
	}
	c.month = snap.Month
	c.viewDate = snap.ViewDate
	c.gen++

	expired := false
	state := snap.State
	if state == StateError {
		state = StateSelectingDate
		if c.viewDate != "" {
			state = StateSelectingSlot
		}
	}
	switch {
	case snap.Hold != nil && !snap.Hold.Expired(c.deps.Clock.Now()):
		c.startHold(snap.Hold)
		state = StateEnteringDetails
	case snap.Hold != nil:
		c.hold = snap.Hold
		expired = true
	case state == StateHolding, state == StateEnteringDetails, state == StateCommitting:
		state = StateSelectingSlot
	}
	if c.draft == nil && state != StateSignInRequired && state != StateSuccess {
		state = StateSelectingDoctor
	}
	c.setState(state)
	if expired {
		c.expire()
	}
	if err := c.requireSignedIn(); err != nil {
		c.unlock()
		return true, err
	}
	c.log.Info("Booking session resumed", "state", c.state, "mode", c.mode)
	c.unlock()

	switch state {
	case StateSelectingDate, StateEnteringDetails:
		c.refreshCalendar(ctx, false)
	case StateSelectingSlot:
		c.refreshCalendar(ctx, false)
		c.refreshSlots(ctx)
	case StateSuccess:
		c.loadAppointment(ctx, snap.AppointmentID)
	}
	return true, nil
}

// loadAppointment fills in the committed appointment of a resumed session.
func (c *Controller) loadAppointment(ctx context.Context, id string) {
	if id == "" || c.deps.Appointments == nil {
		return
	}
	appt, err := c.deps.Appointments.GetAppointment(ctx, id)
	if err != nil {
		c.log.Warn("Failed to load committed appointment", "appointment_id", id, "error", err)
		return
	}
	c.mu.Lock()
	if c.state == StateSuccess {
		c.appointment = appt
	}
	c.mu.Unlock()
}

// Close abandons the flow, releasing any hold in the background.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	c.dropHold(true)
	c.gen++
	c.outbox = nil
	c.dirty = false
	c.mu.Unlock()

	if c.deps.Sessions != nil {
		if err := c.deps.Sessions.Delete(ctx, c.sessionID); err != nil {
			c.log.Warn("Failed to delete booking session", "error", err)
		}
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// View returns a copy of the flow's current screen.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{
		State:       c.state,
		Mode:        c.mode,
		Month:       c.month,
		ViewDate:    c.viewDate,
		Calendar:    c.calendar,
		Slots:       c.slots,
		Appointment: c.appointment,
		Err:         c.lastErr,
	}
	if c.draft != nil {
		v.Draft = *c.draft
	}
	if c.hold != nil {
		h := *c.hold
		v.Hold = &h
		v.Remaining = h.RemainingSeconds(c.deps.Clock.Now())
	}
	return v
}
