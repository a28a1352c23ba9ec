// Package conflict detects overlapping events in a placed set.
package conflict

import (
	"fmt"

	"github.com/jima/gcal-planner/internal/event"
)

// Pair is two events whose intervals overlap. A precedes B in the input.
type Pair struct {
	A event.Record
	B event.Record
}

// FindOverlaps compares every pair of scheduled events and returns each
// overlapping pair. Intervals are half-open, so touching events do not clash.
// Events without both start and end are ignored.
func FindOverlaps(events []event.Record) []Pair {
	var pairs []Pair
	for i := range events {
		if !events[i].Scheduled() {
			continue
		}
		for j := i + 1; j < len(events); j++ {
			if !events[j].Scheduled() {
				continue
			}
			if Overlaps(events[i], events[j]) {
				pairs = append(pairs, Pair{A: events[i], B: events[j]})
			}
		}
	}
	return pairs
}

// Overlaps reports whether a and b share any instant.
func Overlaps(a, b event.Record) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Describe renders pairs for logs and CLI output.
func Describe(pairs []Pair) []string {
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, fmt.Sprintf("%q (%s - %s) overlaps %q (%s - %s)",
			p.A.Name, p.A.Start.Format("Jan 2 15:04"), p.A.End.Format("15:04"),
			p.B.Name, p.B.Start.Format("Jan 2 15:04"), p.B.End.Format("15:04")))
	}
	return out
}
