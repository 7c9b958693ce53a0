package models

import (
	"time"
)

// Outcome is the recorded result of a past change
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeIncident Outcome = "incident"
)

// IncidentDetails describes the incident raised by a past change.
type IncidentDetails struct {
	Resolved bool `json:"resolved" yaml:"resolved"`
}

// HistoricalChange is an entry in the historical change log.
type HistoricalChange struct {
	ID                       string           `json:"id" yaml:"id"`
	BusinessApplicationGroup string           `json:"business_application_group" yaml:"business_application_group"`
	Type                     ChangeType       `json:"type" yaml:"type"`
	Outcome                  Outcome          `json:"outcome" yaml:"outcome"`
	IncidentDetails          *IncidentDetails `json:"incident_details,omitempty" yaml:"incident_details"`
}

// ScheduledChange is an entry in the change calendar.
type ScheduledChange struct {
	ID                       string    `json:"id" yaml:"id"`
	BusinessApplicationGroup string    `json:"business_application_group" yaml:"business_application_group"`
	Start                    time.Time `json:"start" yaml:"start"`
	End                      time.Time `json:"end" yaml:"end"`
}

// MaintenanceWindow is a recurring window in which changes are pre-approved.
// Hours are local 24h clock values.
type MaintenanceWindow struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Weekdays  []time.Weekday `json:"weekdays" yaml:"weekdays"`
	StartHour int            `json:"start_hour" yaml:"start_hour"`
	EndHour   int            `json:"end_hour" yaml:"end_hour"`
}

// AppliesOn reports whether the window recurs on day.
func (w MaintenanceWindow) AppliesOn(day time.Weekday) bool {
	for _, d := range w.Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// Overlaps reports whether the request interval [aStart, aEnd) intersects
// [bStart, bEnd). A request that starts inside, ends inside or fully
// contains the other interval overlaps it; sharing only a boundary instant
// does not.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	startsInside := !aStart.Before(bStart) && aStart.Before(bEnd)
	endsInside := aEnd.After(bStart) && !aEnd.After(bEnd)
	contains := !aStart.After(bStart) && !aEnd.Before(bEnd)
	return startsInside || endsInside || contains
}
