package sanitizer

import (
	"reflect"
	"testing"

	"clinicslots/pkg/model"
)

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trim spaces", "  sore throat  ", "sore throat"},
		{"collapse inner whitespace", "sore\t\n  throat", "sore throat"},
		{"only whitespace", "   \t\n ", ""},
		{"drop control characters", "fever\x00\x07 since monday", "fever since monday"},
		{"unicode preserved", " dolor de cabeza ñ ", "dolor de cabeza ñ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimAndNormalize(tt.input); got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := TrimAndNormalize(TrimAndNormalize(tt.input)); again != tt.want {
				t.Errorf("not idempotent: %q", again)
			}
		})
	}
}

func TestNormalizeDates_DedupesKeepingOrder(t *testing.T) {
	got := NormalizeDates([]string{" 2026-05-02", "2026-05-01", "2026-05-02", "", "  "})
	want := []string{"2026-05-02", "2026-05-01"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeDates() = %v, want %v", got, want)
	}
	if got := NormalizeDates(nil); len(got) != 0 {
		t.Errorf("expected empty slice for nil input, got %v", got)
	}
}

func TestBookingDetails(t *testing.T) {
	d := &model.BookingDetails{
		Reason:          "   persistent   cough ",
		AppointmentType: " Follow_Up ",
		ChiefComplaint: model.ChiefComplaint{
			OnsetDate:          " 2026-04-01 ",
			PrimarySymptom:     " cough ",
			AssociatedSymptoms: []string{"fever", " fever ", "", "fatigue"},
		},
	}

	BookingDetails(d)

	if d.Reason != "persistent cough" {
		t.Errorf("Reason = %q", d.Reason)
	}
	if d.AppointmentType != model.AppointmentFollowUp {
		t.Errorf("AppointmentType = %q", d.AppointmentType)
	}
	if d.ChiefComplaint.OnsetDate != "2026-04-01" {
		t.Errorf("OnsetDate = %q", d.ChiefComplaint.OnsetDate)
	}
	if !reflect.DeepEqual(d.ChiefComplaint.AssociatedSymptoms, []string{"fever", "fatigue"}) {
		t.Errorf("AssociatedSymptoms = %v", d.ChiefComplaint.AssociatedSymptoms)
	}

	BookingDetails(nil)
}
