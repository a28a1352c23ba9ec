// Package event defines the canonical event record shared by the scheduler,
// the reconciler and the provider sync, and the normalizers that build it.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ManualPrefix marks ids generated locally for events the provider has not
// confirmed yet.
const ManualPrefix = "manual_"

// DefaultName is used when an event arrives without a name.
const DefaultName = "Untitled Event"

// Purpose selects the working-hour window an event is placed in.
type Purpose string

const (
	PurposePersonal Purpose = "personal"
	PurposeBusiness Purpose = "business"
	PurposeSchool   Purpose = "school"
)

// Purposes lists the known purposes in display order.
var Purposes = []Purpose{PurposePersonal, PurposeBusiness, PurposeSchool}

// ParsePurpose lowercases s and defaults to personal.
func ParsePurpose(s string) Purpose {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PurposePersonal
	}
	return Purpose(s)
}

// Record is one event, scheduled or not.
type Record struct {
	ID           string
	Name         string
	Start        time.Time
	End          time.Time
	Duration     Duration
	Priority     Priority
	Purpose      Purpose
	Fixed        bool
	WeekdaysOnly bool
}

// Scheduled reports whether both start and end are set.
func (r Record) Scheduled() bool {
	return !r.Start.IsZero() && !r.End.IsZero()
}

// IsManual reports whether r was added locally and not yet confirmed by the provider.
func (r Record) IsManual() bool {
	return strings.HasPrefix(r.ID, ManualPrefix)
}

// Length is the duration implied by start/end when set, otherwise the
// duration intent.
func (r Record) Length() time.Duration {
	if r.Scheduled() {
		return r.End.Sub(r.Start)
	}
	return r.Duration.Std()
}

type recordJSON struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	Duration     Duration `json:"duration"`
	Priority     Priority `json:"priority"`
	Purpose      Purpose  `json:"purpose"`
	Fixed        bool     `json:"fixed"`
	WeekdaysOnly bool     `json:"weekdaysOnly"`
	IsManual     bool     `json:"isManual,omitempty"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		ID:           r.ID,
		Name:         r.Name,
		Start:        formatTime(r.Start),
		End:          formatTime(r.End),
		Duration:     r.Duration,
		Priority:     r.Priority,
		Purpose:      r.Purpose,
		Fixed:        r.Fixed,
		WeekdaysOnly: r.WeekdaysOnly,
		IsManual:     r.IsManual(),
	})
}

// UnmarshalJSON fills the same defaults as the normalizers: medium priority,
// personal purpose, placeholder name, and a duration derived from start/end.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw recordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	start, err := parseTime(raw.Start)
	if err != nil {
		return fmt.Errorf("parse start of %q: %w", raw.ID, err)
	}
	end, err := parseTime(raw.End)
	if err != nil {
		return fmt.Errorf("parse end of %q: %w", raw.ID, err)
	}

	*r = Record{
		ID:           raw.ID,
		Name:         raw.Name,
		Start:        start,
		End:          end,
		Duration:     raw.Duration,
		Priority:     ParsePriority(raw.Priority),
		Purpose:      ParsePurpose(string(raw.Purpose)),
		Fixed:        raw.Fixed,
		WeekdaysOnly: raw.WeekdaysOnly,
	}
	if r.Name == "" {
		r.Name = DefaultName
	}
	if r.Scheduled() {
		r.Duration = Between(r.Start, r.End)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
