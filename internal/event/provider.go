package event

import "time"

// ProviderEvent is the calendar provider's event shape.
type ProviderEvent struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

// EventTime holds either a timestamp or, for all-day events, a date.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

// Timed reports whether the event has a time-of-day component.
func (p ProviderEvent) Timed() bool {
	return p.Start.DateTime != "" && p.End.DateTime != ""
}

// StartTime parses the start timestamp of a timed event.
func (p ProviderEvent) StartTime() (time.Time, error) {
	return time.Parse(time.RFC3339, p.Start.DateTime)
}
