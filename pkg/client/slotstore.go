package client

import (
	"context"
	"net/url"
	"time"

	"clinicslots/pkg/auth"
	apperrors "clinicslots/pkg/errors"
	"clinicslots/pkg/model"
)

const slotStoreService = "slot store"

// SlotStoreClient calls the slot store REST API on behalf of the signed-in
// patient. Error responses come back as *apperrors.AppError with the
// store's code; network failures as retryable transport errors.
type SlotStoreClient struct {
	http     *HttpClient
	identity auth.Identity
}

func NewSlotStoreClient(baseURL string, timeout time.Duration, identity auth.Identity) *SlotStoreClient {
	return &SlotStoreClient{
		http:     NewHttpClient(slotStoreService, baseURL, timeout),
		identity: identity,
	}
}

func (c *SlotStoreClient) headers() (map[string]string, error) {
	creds, ok := c.identity.Credentials()
	if !ok {
		return nil, apperrors.SignInRequired()
	}
	return bearer(creds.Bearer), nil
}

func (c *SlotStoreClient) post(ctx context.Context, path string, body, out any) error {
	headers, err := c.headers()
	if err != nil {
		return err
	}
	resp, err := c.http.POST(ctx, path, body, headers)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.DecodeData(out); err != nil {
		return apperrors.Internal("unexpected slot store response", err)
	}
	return nil
}

func (c *SlotStoreClient) get(ctx context.Context, path string, out any) error {
	headers, err := c.headers()
	if err != nil {
		return err
	}
	resp, err := c.http.GET(ctx, path, headers)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if err := resp.DecodeData(out); err != nil {
		return apperrors.Internal("unexpected slot store response", err)
	}
	return nil
}

func (c *SlotStoreClient) Hold(ctx context.Context, req model.HoldRequest) (*model.Hold, error) {
	var hold model.Hold
	if err := c.post(ctx, "/api/v1/slots/hold", req, &hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

func (c *SlotStoreClient) Release(ctx context.Context, slotID string) (*model.ReleaseResult, error) {
	var result model.ReleaseResult
	if err := c.post(ctx, "/api/v1/slots/release", model.ReleaseRequest{SlotID: slotID}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *SlotStoreClient) BatchAvailability(ctx context.Context, doctorID string, dates []string) (model.AvailabilityCounts, error) {
	counts := model.AvailabilityCounts{}
	req := model.BatchAvailabilityRequest{DoctorID: doctorID, Dates: dates}
	if err := c.post(ctx, "/api/v1/slots/batch-availability", req, &counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// ListSlots lists a doctor's slots on date. An empty status lists all.
func (c *SlotStoreClient) ListSlots(ctx context.Context, doctorID, date string, status model.SlotStatus) ([]*model.TimeSlot, error) {
	q := url.Values{}
	q.Set("doctor_id", doctorID)
	q.Set("date", date)
	if status != "" {
		q.Set("status", string(status))
	}
	var slots []*model.TimeSlot
	if err := c.get(ctx, "/api/v1/slots?"+q.Encode(), &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func (c *SlotStoreClient) GetSlot(ctx context.Context, slotID string) (*model.TimeSlot, error) {
	var slot model.TimeSlot
	if err := c.get(ctx, "/api/v1/slots/id/"+url.PathEscape(slotID), &slot); err != nil {
		return nil, err
	}
	return &slot, nil
}

func (c *SlotStoreClient) CompleteBooking(ctx context.Context, slotID string, details model.BookingDetails) (*model.Appointment, error) {
	var appt model.Appointment
	req := model.CompleteBookingRequest{SlotID: slotID, BookingDetails: details}
	if err := c.post(ctx, "/api/v1/appointments/complete-booking", req, &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}

func (c *SlotStoreClient) Reschedule(ctx context.Context, appointmentID, slotID string, details model.BookingDetails) (*model.RescheduleResult, error) {
	var result model.RescheduleResult
	req := model.CompleteBookingRequest{SlotID: slotID, BookingDetails: details}
	if err := c.post(ctx, "/api/v1/appointments/id/"+url.PathEscape(appointmentID)+"/reschedule", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *SlotStoreClient) GetAppointment(ctx context.Context, appointmentID string) (*model.Appointment, error) {
	var appt model.Appointment
	if err := c.get(ctx, "/api/v1/appointments/id/"+url.PathEscape(appointmentID), &appt); err != nil {
		return nil, err
	}
	return &appt, nil
}
