package model

import "time"

type AppointmentStatus string

const (
	AppointmentPending    AppointmentStatus = "pending"
	AppointmentConfirmed  AppointmentStatus = "confirmed"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentCancelled  AppointmentStatus = "cancelled"
	AppointmentSuperseded AppointmentStatus = "superseded"
)

type AppointmentType string

const (
	AppointmentConsultation     AppointmentType = "consultation"
	AppointmentFollowUp         AppointmentType = "follow_up"
	AppointmentCheckup          AppointmentType = "checkup"
	AppointmentTeleconsultation AppointmentType = "teleconsultation"
)

type ChiefComplaint struct {
	OnsetDate          string   `json:"onset_date,omitempty" bson:"onset_date,omitempty" validate:"omitempty,datetime=2006-01-02,not_future_date"`
	PrimarySymptom     string   `json:"primary_symptom,omitempty" bson:"primary_symptom,omitempty" validate:"omitempty,max=200"`
	AssociatedSymptoms []string `json:"associated_symptoms,omitempty" bson:"associated_symptoms,omitempty" validate:"omitempty,max=10,dive,min=1,max=100"`
	PainScale          *int     `json:"pain_scale,omitempty" bson:"pain_scale,omitempty" validate:"omitempty,min=0,max=10"`
}

// BookingDetails is what the patient enters while the slot is held.
type BookingDetails struct {
	Reason          string          `json:"reason" bson:"reason" validate:"not_blank,max=500"`
	ChiefComplaint  ChiefComplaint  `json:"chief_complaint" bson:"chief_complaint"`
	AppointmentType AppointmentType `json:"appointment_type,omitempty" bson:"appointment_type,omitempty" validate:"omitempty,oneof=consultation follow_up checkup teleconsultation"`
}

type Appointment struct {
	ID              string            `json:"id" bson:"_id"`
	SlotID          string            `json:"slot_id" bson:"slot_id"`
	DoctorID        string            `json:"doctor_id" bson:"doctor_id"`
	Patient         string            `json:"patient" bson:"patient"`
	Date            string            `json:"date" bson:"date"`
	StartTime       time.Time         `json:"start_time" bson:"start_time"`
	EndTime         time.Time         `json:"end_time" bson:"end_time"`
	Reason          string            `json:"reason" bson:"reason"`
	ChiefComplaint  ChiefComplaint    `json:"chief_complaint" bson:"chief_complaint"`
	AppointmentType AppointmentType   `json:"appointment_type" bson:"appointment_type"`
	Status          AppointmentStatus `json:"status" bson:"status"`
	RescheduledFrom string            `json:"rescheduled_from,omitempty" bson:"rescheduled_from,omitempty"`
	SupersededBy    string            `json:"superseded_by,omitempty" bson:"superseded_by,omitempty"`
	CreatedAt       time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" bson:"updated_at"`
}

// NewAppointment builds a pending appointment for a slot being booked.
func NewAppointment(id string, slot *TimeSlot, patient string, details BookingDetails, now time.Time) *Appointment {
	apptType := details.AppointmentType
	if apptType == "" {
		apptType = AppointmentConsultation
	}
	return &Appointment{
		ID:              id,
		SlotID:          slot.ID,
		DoctorID:        slot.DoctorID,
		Patient:         patient,
		Date:            slot.Date,
		StartTime:       slot.StartTime,
		EndTime:         slot.EndTime,
		Reason:          details.Reason,
		ChiefComplaint:  details.ChiefComplaint,
		AppointmentType: apptType,
		Status:          AppointmentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Reschedulable reports whether the appointment can still be moved.
func (a *Appointment) Reschedulable() bool {
	return a.Status == AppointmentPending || a.Status == AppointmentConfirmed
}

// RescheduleResult is returned after an atomic reschedule.
type RescheduleResult struct {
	NewAppointment   *Appointment `json:"new_appointment"`
	OldAppointmentID string       `json:"old_appointment_id"`
}
