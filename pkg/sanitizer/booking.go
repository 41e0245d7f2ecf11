package sanitizer

import (
	"strings"

	"clinicslots/pkg/model"
)

// BookingDetails normalizes patient-entered text in place.
func BookingDetails(d *model.BookingDetails) {
	if d == nil {
		return
	}
	d.Reason = TrimAndNormalize(d.Reason)
	d.AppointmentType = model.AppointmentType(strings.ToLower(strings.TrimSpace(string(d.AppointmentType))))
	d.ChiefComplaint.OnsetDate = strings.TrimSpace(d.ChiefComplaint.OnsetDate)
	d.ChiefComplaint.PrimarySymptom = TrimAndNormalize(d.ChiefComplaint.PrimarySymptom)
	if len(d.ChiefComplaint.AssociatedSymptoms) > 0 {
		d.ChiefComplaint.AssociatedSymptoms = NormalizeSymptoms(d.ChiefComplaint.AssociatedSymptoms)
	}
}
