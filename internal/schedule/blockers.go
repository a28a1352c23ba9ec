package schedule

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/jima/gcal-planner/internal/event"
)

// Blocker is a recurring period no flexible event may be placed in, such as
// a daily lunch break. Rule is an RFC 5545 RRULE body without DTSTART.
type Blocker struct {
	Name     string
	Rule     string
	Start    event.Clock
	Duration event.Duration
}

// Validate parses the rule once so configuration errors surface early.
func (b Blocker) Validate() error {
	if b.Duration <= 0 {
		return fmt.Errorf("blocker %q: %w", b.Name, event.ErrInvalidDuration)
	}
	if _, err := rrule.StrToRRule(b.Rule); err != nil {
		return fmt.Errorf("blocker %q: parse rrule: %w", b.Name, err)
	}
	return nil
}

// Expand returns the occurrences of b that start in [from, to), anchored at
// the blocker's time of day on from's calendar day in loc.
func (b Blocker) Expand(from, to time.Time, loc *time.Location) ([]Interval, error) {
	r, err := rrule.StrToRRule(b.Rule)
	if err != nil {
		return nil, fmt.Errorf("blocker %q: parse rrule: %w", b.Name, err)
	}
	from = from.In(loc)
	r.DTStart(b.Start.On(time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)))

	var set rrule.Set
	set.RRule(r)

	// Start one period earlier so an occurrence running across from is kept.
	occ := set.Between(from.Add(-b.Duration.Std()), to.In(loc), true)
	out := make([]Interval, 0, len(occ))
	for _, s := range occ {
		out = append(out, Interval{Start: s, End: s.Add(b.Duration.Std())})
	}
	return out, nil
}
