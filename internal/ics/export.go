// Package ics writes planned events as an iCalendar feed.
package ics

import (
	"fmt"
	"io"
	"sort"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/jima/gcal-planner/internal/event"
)

const productID = "-//gcal-planner//gplan//EN"

// Build returns a calendar holding every scheduled record, ordered by start.
// Unscheduled records are skipped. stamp is written as DTSTAMP.
func Build(records []event.Record, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)

	sorted := make([]event.Record, 0, len(records))
	for _, r := range records {
		if r.Scheduled() {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	for _, r := range sorted {
		ev := cal.AddEvent(uid(r))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(r.Start.UTC())
		ev.SetEndAt(r.End.UTC())
		ev.SetSummary(r.Name)
		ev.SetDescription(fmt.Sprintf("Priority: %s, Purpose: %s, Fixed: %t", r.Priority, r.Purpose, r.Fixed))
		ev.AddProperty(ical.ComponentPropertyCategories, string(r.Purpose))
		ev.SetProperty(ical.ComponentProperty("X-GPLAN-PRIORITY"), string(r.Priority))
	}
	return cal
}

// Export writes the calendar for records to w.
func Export(w io.Writer, records []event.Record, stamp time.Time) (int, error) {
	cal := Build(records, stamp)
	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return 0, fmt.Errorf("write calendar: %w", err)
	}
	return len(cal.Events()), nil
}

func uid(r event.Record) string {
	if r.ID == "" {
		return fmt.Sprintf("%d@gcal-planner", r.Start.Unix())
	}
	return r.ID + "@gcal-planner"
}
