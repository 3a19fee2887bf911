package models

import "time"

// EnergyRecord represents a single energy consumption reading
type EnergyRecord struct {
	ID   int       `json:"id"`   // Position in the source file (1-based) or store row id
	Date time.Time `json:"date"` // Calendar date, kept exactly as parsed
	KWh  float64   `json:"energy_consumption"`
}

// ApplianceRecord represents the power drawn by one appliance
type ApplianceRecord struct {
	ID        int       `json:"id"`
	Appliance string    `json:"appliance"`
	Power     float64   `json:"power_consumption"`
	Date      time.Time `json:"date,omitempty"` // Zero unless the source has a date column
}

// Dated reports whether the record carries a date
func (r ApplianceRecord) Dated() bool {
	return !r.Date.IsZero()
}

// DateRange is an inclusive [Start, End] interval
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range, bounds included
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}
