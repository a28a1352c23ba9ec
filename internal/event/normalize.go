package event

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidInput marks a malformed event request.
var ErrInvalidInput = errors.New("invalid event")

// DefaultDuration is used for requests that carry no duration.
const DefaultDuration = Duration(60)

// FromProvider converts a provider event. Configured, when non-nil, is the
// user's stored configuration for the same id and supplies priority, purpose,
// fixed and weekday flags. All-day events and events with unparseable times
// are rejected.
func FromProvider(pe ProviderEvent, configured *Record) (Record, bool) {
	if !pe.Timed() {
		return Record{}, false
	}
	start, err := time.Parse(time.RFC3339, pe.Start.DateTime)
	if err != nil {
		return Record{}, false
	}
	end, err := time.Parse(time.RFC3339, pe.End.DateTime)
	if err != nil {
		return Record{}, false
	}

	r := Record{
		ID:       pe.ID,
		Name:     pe.Summary,
		Start:    start,
		End:      end,
		Duration: Between(start, end),
		Priority: PriorityMedium,
		Purpose:  PurposePersonal,
	}
	if r.Name == "" {
		r.Name = DefaultName
	}
	if configured != nil {
		r.Priority = ParsePriority(configured.Priority)
		r.Purpose = ParsePurpose(string(configured.Purpose))
		r.Fixed = configured.Fixed
		r.WeekdaysOnly = configured.WeekdaysOnly
	}
	return r, true
}

// Request is an event submitted by the user for placement.
type Request struct {
	ID              string   `json:"id,omitempty"`
	Name            string   `json:"name"`
	Priority        Priority `json:"priority,omitempty"`
	Purpose         string   `json:"purpose,omitempty"`
	Fixed           bool     `json:"fixed"`
	WeekdaysOnly    *bool    `json:"weekdaysOnly,omitempty"`
	Date            string   `json:"date,omitempty"`
	StartTime       string   `json:"startTime,omitempty"`
	DurationHours   *int     `json:"durationHours,omitempty"`
	DurationMinutes *int     `json:"durationMinutes,omitempty"`
	Duration        string   `json:"duration,omitempty"`
	Start           string   `json:"start,omitempty"`
	End             string   `json:"end,omitempty"`
}

// FromRequest builds a Record from a user request. Times given as date plus
// startTime are read in loc. A request with neither start/end nor
// date/startTime stays unscheduled. WeekdaysOnly defaults to true.
func FromRequest(req Request, loc *time.Location) (Record, error) {
	if loc == nil {
		loc = time.Local
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = DefaultName
	}

	r := Record{
		ID:           req.ID,
		Name:         name,
		Priority:     ParsePriority(req.Priority),
		Purpose:      ParsePurpose(req.Purpose),
		Fixed:        req.Fixed,
		WeekdaysOnly: true,
	}
	if req.WeekdaysOnly != nil {
		r.WeekdaysOnly = *req.WeekdaysOnly
	}

	d, err := requestDuration(req)
	if err != nil {
		return Record{}, fmt.Errorf("%q: %w", name, err)
	}
	r.Duration = d

	switch {
	case req.Start != "" || req.End != "":
		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			return Record{}, fmt.Errorf("%q: %w: start: %v", name, ErrInvalidInput, err)
		}
		end, err := time.Parse(time.RFC3339, req.End)
		if err != nil {
			return Record{}, fmt.Errorf("%q: %w: end: %v", name, ErrInvalidInput, err)
		}
		if !end.After(start) {
			return Record{}, fmt.Errorf("%q: %w: end is not after start", name, ErrInvalidDuration)
		}
		r.Start, r.End = start, end
		r.Duration = Between(start, end)
	case req.Date != "" || req.StartTime != "":
		if req.Date == "" || req.StartTime == "" {
			return Record{}, fmt.Errorf("%q: %w: date and startTime must be given together", name, ErrInvalidInput)
		}
		start, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.StartTime, loc)
		if err != nil {
			return Record{}, fmt.Errorf("%q: %w: %v", name, ErrInvalidInput, err)
		}
		r.Start = start
		r.End = start.Add(r.Duration.Std())
	}
	return r, nil
}

// requestDuration returns the requested duration, DefaultDuration when none
// is given. Explicit durations must be positive.
func requestDuration(req Request) (Duration, error) {
	if req.Duration != "" {
		d, err := ParseDuration(req.Duration)
		if err != nil {
			return 0, err
		}
		if d <= 0 {
			return 0, ErrInvalidDuration
		}
		return d, nil
	}
	if req.DurationHours == nil && req.DurationMinutes == nil {
		return DefaultDuration, nil
	}

	var h, m int
	if req.DurationHours != nil {
		h = *req.DurationHours
	}
	if req.DurationMinutes != nil {
		m = *req.DurationMinutes
	}
	if h < 0 || m < 0 || h*60+m <= 0 {
		return 0, fmt.Errorf("%w: %dh%dm", ErrInvalidDuration, h, m)
	}
	return Duration(h*60 + m), nil
}
