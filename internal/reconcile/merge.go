// Package reconcile owns the canonical record set: it merges configuration
// by id, combines provider events with local additions, and derives the
// task projection.
package reconcile

import (
	"time"

	"github.com/jima/gcal-planner/internal/event"
)

// Merge returns a new map holding existing with every incoming record
// replacing the one with the same id. Records without an id are ignored;
// assign ids first. Merging the same batch twice gives the same map.
func Merge(existing map[string]event.Record, incoming []event.Record) map[string]event.Record {
	out := make(map[string]event.Record, len(existing)+len(incoming))
	for id, r := range existing {
		out[id] = r
	}
	for _, r := range incoming {
		if r.ID == "" {
			continue
		}
		out[r.ID] = r
	}
	return out
}

// MergeList is Merge over ordered slices. Replaced records keep their
// position; new ids are appended in incoming order.
func MergeList(existing, incoming []event.Record) []event.Record {
	out := make([]event.Record, 0, len(existing)+len(incoming))
	pos := make(map[string]int, len(existing)+len(incoming))
	add := func(r event.Record) {
		if r.ID == "" {
			return
		}
		if i, ok := pos[r.ID]; ok {
			out[i] = r
			return
		}
		pos[r.ID] = len(out)
		out = append(out, r)
	}
	for _, r := range existing {
		add(r)
	}
	for _, r := range incoming {
		add(r)
	}
	return out
}

// Index keys records by id. Later duplicates win.
func Index(records []event.Record) map[string]event.Record {
	return Merge(nil, records)
}

// Combine builds the working set from a provider snapshot and the stored
// configuration. Provider events take the configured priority, purpose and
// fixed flag of the same id; manual records the provider does not know yet
// are appended. All-day provider events are dropped.
func Combine(provider []event.ProviderEvent, configured []event.Record) []event.Record {
	cfg := Index(configured)
	seen := make(map[string]bool, len(provider))

	out := make([]event.Record, 0, len(provider)+len(configured))
	for _, pe := range provider {
		var c *event.Record
		if r, ok := cfg[pe.ID]; ok {
			c = &r
		}
		r, ok := event.FromProvider(pe, c)
		if !ok {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	for _, r := range configured {
		if r.IsManual() && !seen[r.ID] {
			seen[r.ID] = true
			out = append(out, r)
		}
	}
	return out
}

// Unconfigured returns the timed provider events that have no stored
// configuration, with default metadata.
func Unconfigured(provider []event.ProviderEvent, configured []event.Record) []event.Record {
	cfg := Index(configured)
	var out []event.Record
	for _, pe := range provider {
		if _, ok := cfg[pe.ID]; ok {
			continue
		}
		if r, ok := event.FromProvider(pe, nil); ok {
			out = append(out, r)
		}
	}
	return out
}

// Rekey renames record ids according to ids (old -> new), leaving other
// records untouched. It is used to mark synced manual records as
// provider-confirmed and to undo that on revert.
func Rekey(records []event.Record, ids map[string]string) []event.Record {
	out := make([]event.Record, len(records))
	for i, r := range records {
		if id, ok := ids[r.ID]; ok && id != "" {
			r.ID = id
		}
		out[i] = r
	}
	return out
}

// Project derives the display tasks from records, preserving order. Times
// are rendered in loc.
func Project(records []event.Record, loc *time.Location) []event.Task {
	if loc == nil {
		loc = time.Local
	}
	out := make([]event.Task, 0, len(records))
	for _, r := range records {
		t := event.Task{
			ID:              r.ID,
			Name:            r.Name,
			Fixed:           r.Fixed,
			Priority:        r.Priority,
			Duration:        r.Duration.String(),
			DurationMinutes: r.Duration.Minutes(),
			Type:            r.Purpose,
			IsManual:        r.IsManual(),
		}
		if r.Scheduled() {
			start := r.Start.In(loc)
			t.StartDate = start.Format("2006-01-02")
			t.StartTime = start.Format("15:04")
		}
		out = append(out, t)
	}
	return out
}
