package validator

import (
	"errors"
	"strings"
	"testing"
	"time"

	"clinicslots/pkg/logger"
	"clinicslots/pkg/model"
)

func newTestValidator() *BookingValidator {
	now := func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return NewBookingValidator(logger.Discard(), now, time.UTC)
}

func intPtr(i int) *int { return &i }

func TestValidateDetails(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name      string
		details   model.BookingDetails
		wantField string
	}{
		{
			name:    "valid",
			details: model.BookingDetails{Reason: "persistent cough", ChiefComplaint: model.ChiefComplaint{OnsetDate: "2026-03-01", PainScale: intPtr(4)}},
		},
		{
			name:      "blank reason",
			details:   model.BookingDetails{Reason: "   "},
			wantField: "reason",
		},
		{
			name:      "pain scale too high",
			details:   model.BookingDetails{Reason: "x", ChiefComplaint: model.ChiefComplaint{PainScale: intPtr(11)}},
			wantField: "chief_complaint.pain_scale",
		},
		{
			name:    "pain scale zero is allowed",
			details: model.BookingDetails{Reason: "x", ChiefComplaint: model.ChiefComplaint{PainScale: intPtr(0)}},
		},
		{
			name:      "onset in the future",
			details:   model.BookingDetails{Reason: "x", ChiefComplaint: model.ChiefComplaint{OnsetDate: "2026-03-11"}},
			wantField: "chief_complaint.onset_date",
		},
		{
			name:      "malformed onset",
			details:   model.BookingDetails{Reason: "x", ChiefComplaint: model.ChiefComplaint{OnsetDate: "10/03/2026"}},
			wantField: "chief_complaint.onset_date",
		},
		{
			name:      "unknown appointment type",
			details:   model.BookingDetails{Reason: "x", AppointmentType: "surgery"},
			wantField: "appointment_type",
		},
		{
			name:      "too many symptoms",
			details:   model.BookingDetails{Reason: "x", ChiefComplaint: model.ChiefComplaint{AssociatedSymptoms: strings.Split("a,b,c,d,e,f,g,h,i,j,k", ",")}},
			wantField: "chief_complaint.associated_symptoms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateDetails(&tt.details)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if _, ok := verrs.Fields()[tt.wantField]; !ok {
				t.Errorf("expected an error on %s, got %v", tt.wantField, verrs)
			}
		})
	}
}

func TestStruct_BatchRequest(t *testing.T) {
	v := newTestValidator()

	if err := v.Struct(&model.BatchAvailabilityRequest{DoctorID: "doc-1", Dates: []string{"2026-03-10"}}); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
	if err := v.Struct(&model.BatchAvailabilityRequest{DoctorID: "doc-1"}); err == nil {
		t.Error("empty dates should be rejected")
	}
	if err := v.Struct(&model.BatchAvailabilityRequest{DoctorID: "doc-1", Dates: []string{"March 10"}}); err == nil {
		t.Error("malformed date should be rejected")
	}
}
