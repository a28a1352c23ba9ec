package schedule

import (
	"fmt"

	"github.com/jima/gcal-planner/internal/event"
)

// Window is a time-of-day range [Start, End).
type Window struct {
	Start event.Clock `json:"start" yaml:"start"`
	End   event.Clock `json:"end" yaml:"end"`
}

// NewWindow parses two HH:MM values.
func NewWindow(start, end string) (Window, error) {
	s, err := event.ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := event.ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	w := Window{Start: s, End: e}
	if !w.Valid() {
		return Window{}, fmt.Errorf("window %s-%s ends before it starts", start, end)
	}
	return w, nil
}

func mustWindow(start, end string) Window {
	w, err := NewWindow(start, end)
	if err != nil {
		panic(err)
	}
	return w
}

func (w Window) Valid() bool { return w.End > w.Start }

// Intersect returns the overlap of w and o.
func (w Window) Intersect(o Window) (Window, bool) {
	out := Window{Start: max(w.Start, o.Start), End: min(w.End, o.End)}
	return out, out.Valid()
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// TimeRanges maps a purpose to its working-hour window.
type TimeRanges map[event.Purpose]Window

// DefaultWorkingHours are the windows the scheduler places events in when
// the user has not saved their own.
func DefaultWorkingHours() TimeRanges {
	return TimeRanges{
		event.PurposePersonal: mustWindow("08:00", "21:00"),
		event.PurposeBusiness: mustWindow("08:00", "17:00"),
		event.PurposeSchool:   mustWindow("08:30", "17:30"),
	}
}

// DefaultPreferences is what the time-range read surface reports when the
// user has saved nothing.
func DefaultPreferences() TimeRanges {
	w := mustWindow("09:00", "17:00")
	return TimeRanges{
		event.PurposePersonal: w,
		event.PurposeBusiness: w,
		event.PurposeSchool:   w,
	}
}

// DefaultPreferred is the band searched before the rest of the window.
func DefaultPreferred() Window { return mustWindow("10:00", "19:00") }

// Merge returns a copy of r with the entries of override replacing r's.
func (r TimeRanges) Merge(override TimeRanges) TimeRanges {
	out := make(TimeRanges, len(r)+len(override))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range override {
		if v.Valid() {
			out[k] = v
		}
	}
	return out
}

// For returns the window of purpose p. Unknown purposes use the personal window.
func (r TimeRanges) For(p event.Purpose) Window {
	if w, ok := r[p]; ok && w.Valid() {
		return w
	}
	if w, ok := r[event.PurposePersonal]; ok && w.Valid() {
		return w
	}
	return DefaultWorkingHours()[event.PurposePersonal]
}

// Validate checks every window.
func (r TimeRanges) Validate() error {
	for p, w := range r {
		if !w.Valid() {
			return fmt.Errorf("time range for %s: %s ends before it starts", p, w)
		}
	}
	return nil
}
