package model

// DayAvailability summarises one date for one doctor.
type DayAvailability struct {
	OpenCount int  `json:"open_count"`
	IsFull    bool `json:"is_full"`
	IsPast    bool `json:"is_past"`
}

// AvailabilityIndex maps YYYY-MM-DD to that date's availability.
type AvailabilityIndex map[string]DayAvailability

// AvailabilityCounts is the batch wire format: date -> open slot count.
type AvailabilityCounts map[string]int

func (idx AvailabilityIndex) Selectable(date string) bool {
	day, ok := idx[date]
	return ok && !day.IsPast && day.OpenCount > 0
}
