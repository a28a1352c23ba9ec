// Package schedule places flexible events into free working-hour slots.
package schedule

import (
	"errors"
	"sort"
	"time"

	"github.com/jima/gcal-planner/internal/event"
)

var (
	// ErrFixedWithoutTime marks a fixed request that has no start or end.
	ErrFixedWithoutTime = errors.New("fixed event has no start or end time")
	// ErrNoSlot marks a request that fits nowhere within the horizon.
	ErrNoSlot = errors.New("no free slot within the scheduling horizon")

	// ErrBeforeReference marks a proposed slot that starts before the reference time.
	ErrBeforeReference = errors.New("slot starts before the reference time")
	// ErrOutsideWindow marks a proposed slot outside the purpose's working hours.
	ErrOutsideWindow = errors.New("slot falls outside the working hours")
	// ErrWeekend marks a weekend slot for a weekdays-only request.
	ErrWeekend = errors.New("slot falls on a weekend")
	// ErrConflict marks a proposed slot that overlaps a busy period or its buffer.
	ErrConflict = errors.New("slot overlaps a busy period or its buffer")
)

// Options tune the search. Zero values take the defaults.
type Options struct {
	WorkingHours TimeRanges
	Preferred    Window
	Buffer       time.Duration
	Granularity  time.Duration
	HorizonDays  int
	Location     *time.Location
	Blockers     []Blocker
}

// DefaultOptions returns the standard rules: per-purpose working hours, the
// 10:00-19:00 preferred band, a 15 minute buffer and grid, and 30 days.
func DefaultOptions() Options {
	return Options{
		WorkingHours: DefaultWorkingHours(),
		Preferred:    DefaultPreferred(),
		Buffer:       15 * time.Minute,
		Granularity:  15 * time.Minute,
		HorizonDays:  30,
		Location:     time.Local,
	}
}

// Interval is a half-open busy period.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Failure is a request the scheduler could not place.
type Failure struct {
	Event event.Record
	Err   error
}

func (f Failure) Error() string {
	return f.Event.Name + ": " + f.Err.Error()
}

// Result of one scheduling pass.
type Result struct {
	// Events holds the fixed events followed by every request, in input order.
	Events []event.Record
	// Placed holds the requests given a slot in this pass, in placement order.
	Placed []event.Record
	// Failures holds rejected and unplaceable requests.
	Failures []Failure
}

// Scheduler is a deterministic slot finder. It never mutates its inputs.
type Scheduler struct {
	opts Options
	err  error
}

// New returns a Scheduler, filling zero options with defaults. Blockers
// that fail validation are dropped and reported by Err.
func New(opts Options) *Scheduler {
	def := DefaultOptions()
	if opts.WorkingHours == nil {
		opts.WorkingHours = def.WorkingHours
	} else {
		opts.WorkingHours = def.WorkingHours.Merge(opts.WorkingHours)
	}
	if !opts.Preferred.Valid() {
		opts.Preferred = def.Preferred
	}
	if opts.Buffer < 0 {
		opts.Buffer = 0
	}
	if opts.Granularity <= 0 {
		opts.Granularity = def.Granularity
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = def.HorizonDays
	}
	if opts.Location == nil {
		opts.Location = def.Location
	}

	var errs []error
	blockers := make([]Blocker, 0, len(opts.Blockers))
	for _, b := range opts.Blockers {
		if err := b.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		blockers = append(blockers, b)
	}
	opts.Blockers = blockers
	return &Scheduler{opts: opts, err: errors.Join(errs...)}
}

// Options returns the effective options.
func (s *Scheduler) Options() Options { return s.opts }

// Err reports the blockers New dropped as invalid, or nil.
func (s *Scheduler) Err() error { return s.err }

// Schedule fills start/end of each flexible request with the first legal
// slot at or after ref. Fixed events and requests that already carry times
// are treated as busy and never moved. Requests are placed in priority
// order, ties keeping input order.
func (s *Scheduler) Schedule(fixed, requests []event.Record, ref time.Time) Result {
	loc := s.opts.Location
	ref = ref.In(loc)

	busy := make([]Interval, 0, len(fixed)+len(requests))
	for _, f := range fixed {
		if f.Scheduled() {
			busy = append(busy, Interval{Start: f.Start, End: f.End})
		}
	}

	out := make([]event.Record, len(requests))
	copy(out, requests)

	var res Result
	var pending []int
	for i, r := range out {
		switch {
		case r.Fixed && !r.Scheduled():
			res.Failures = append(res.Failures, Failure{Event: r, Err: ErrFixedWithoutTime})
		case r.Scheduled():
			busy = append(busy, Interval{Start: r.Start, End: r.End})
		case r.Duration <= 0:
			res.Failures = append(res.Failures, Failure{Event: r, Err: event.ErrInvalidDuration})
		default:
			pending = append(pending, i)
		}
	}

	if len(pending) > 0 {
		busy = append(busy, s.blocked(ref)...)
	}

	sort.SliceStable(pending, func(a, b int) bool {
		return out[pending[a]].Priority.Rank() > out[pending[b]].Priority.Rank()
	})

	for _, i := range pending {
		r := &out[i]
		start, ok := s.findSlot(*r, busy, ref)
		if !ok {
			res.Failures = append(res.Failures, Failure{Event: *r, Err: ErrNoSlot})
			continue
		}
		r.Start = start
		r.End = start.Add(r.Duration.Std())
		busy = append(busy, Interval{Start: r.Start, End: r.End})
		res.Placed = append(res.Placed, *r)
	}

	res.Events = make([]event.Record, 0, len(fixed)+len(out))
	res.Events = append(res.Events, fixed...)
	res.Events = append(res.Events, out...)
	return res
}

// Busy returns the intervals of every scheduled record plus the blocker
// occurrences within the horizon from ref.
func (s *Scheduler) Busy(records []event.Record, ref time.Time) []Interval {
	var out []Interval
	for _, r := range records {
		if r.Scheduled() {
			out = append(out, Interval{Start: r.Start, End: r.End})
		}
	}
	return append(out, s.blocked(ref.In(s.opts.Location))...)
}

// Admit checks a proposed start for r against the same rules Schedule
// follows, except the preferred band, which is a bias and not a rule.
func (s *Scheduler) Admit(r event.Record, start time.Time, busy []Interval, ref time.Time) error {
	if r.Duration <= 0 {
		return event.ErrInvalidDuration
	}
	start = start.In(s.opts.Location)
	end := start.Add(r.Duration.Std())
	if start.Before(ref) {
		return ErrBeforeReference
	}
	if r.WeekdaysOnly && isWeekend(start) {
		return ErrWeekend
	}
	w := s.opts.WorkingHours.For(r.Purpose)
	day := startOfDay(start)
	if start.Before(w.Start.On(day)) || end.After(w.End.On(day)) {
		return ErrOutsideWindow
	}
	if s.conflicts(start, end, busy) {
		return ErrConflict
	}
	return nil
}

func (s *Scheduler) blocked(ref time.Time) []Interval {
	from := startOfDay(ref)
	to := from.AddDate(0, 0, s.opts.HorizonDays)
	var out []Interval
	for _, b := range s.opts.Blockers {
		// New keeps only blockers whose rule parses.
		occ, err := b.Expand(from, to, s.opts.Location)
		if err != nil {
			continue
		}
		out = append(out, occ...)
	}
	return out
}

// findSlot walks the candidate days. On each day the preferred band is
// scanned in full before the rest of the working window.
func (s *Scheduler) findSlot(r event.Record, busy []Interval, ref time.Time) (time.Time, bool) {
	window := s.opts.WorkingHours.For(r.Purpose)
	passes := []Window{window}
	if band, ok := window.Intersect(s.opts.Preferred); ok && band != window {
		passes = []Window{band, window}
	}

	d := r.Duration.Std()
	day0 := startOfDay(ref)
	for i := 0; i < s.opts.HorizonDays; i++ {
		day := day0.AddDate(0, 0, i)
		if r.WeekdaysOnly && isWeekend(day) {
			continue
		}
		for _, w := range passes {
			if t, ok := s.scan(day, w, d, busy, ref); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func (s *Scheduler) scan(day time.Time, w Window, d time.Duration, busy []Interval, ref time.Time) (time.Time, bool) {
	limit := w.End.On(day)
	for c := w.Start.On(day); !c.Add(d).After(limit); c = c.Add(s.opts.Granularity) {
		if c.Before(ref) {
			continue
		}
		if !s.conflicts(c, c.Add(d), busy) {
			return c, true
		}
	}
	return time.Time{}, false
}

// conflicts reports whether [start, end) comes within the buffer of any busy interval.
func (s *Scheduler) conflicts(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if start.Before(b.End.Add(s.opts.Buffer)) && b.Start.Add(-s.opts.Buffer).Before(end) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
