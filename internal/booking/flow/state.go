package flow

import (
	"errors"

	"clinicslots/pkg/model"
)

type State string

const (
	StateSignInRequired  State = "sign_in_required"
	StateSelectingDoctor State = "selecting_doctor"
	StateSelectingDate   State = "selecting_date"
	StateSelectingSlot   State = "selecting_slot"
	StateHolding         State = "holding"
	StateEnteringDetails State = "entering_details"
	StateCommitting      State = "committing"
	StateSuccess         State = "success"
	StateFailed          State = "failed"
	StateError           State = "error"
)

// Mode distinguishes a fresh booking from moving an existing appointment.
type Mode string

const (
	ModeBooking    Mode = "booking"
	ModeReschedule Mode = "reschedule"
)

var (
	ErrAcquireInFlight      = errors.New("a slot is already being acquired")
	ErrInvalidTransition    = errors.New("operation not allowed in the current state")
	ErrConfirmationRequired = errors.New("leaving this step releases the held slot")
	ErrFlowChanged          = errors.New("flow moved on while the request was in flight")
	ErrNoPreviousStep       = errors.New("no previous step")
)

// Observer receives everything a UI renders. Calls may arrive from the
// countdown goroutine, so implementations must be safe for concurrent use
// and must not call back into the controller synchronously.
type Observer interface {
	StateChanged(from, to State)
	CountdownTick(remaining int)
	HoldExpired()
	AvailabilityChanged(month string, index model.AvailabilityIndex)
	SlotsChanged(date string, slots []*model.TimeSlot)
	FieldErrors(fields map[string]any)
}

// NopObserver ignores every notification. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) StateChanged(State, State)                           {}
func (NopObserver) CountdownTick(int)                                   {}
func (NopObserver) HoldExpired()                                        {}
func (NopObserver) AvailabilityChanged(string, model.AvailabilityIndex) {}
func (NopObserver) SlotsChanged(string, []*model.TimeSlot)              {}
func (NopObserver) FieldErrors(map[string]any)                          {}

// View is a copy of what the flow currently shows.
type View struct {
	State       State
	Mode        Mode
	Draft       model.BookingDraft
	Hold        *model.Hold
	Remaining   int
	Month       string
	ViewDate    string
	Calendar    model.AvailabilityIndex
	Slots       []*model.TimeSlot
	Appointment *model.Appointment
	Err         error
}
