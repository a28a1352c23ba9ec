package ics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/go-cmp/cmp"

	"github.com/jima/gcal-planner/internal/event"
)

func TestExport(t *testing.T) {
	t.Parallel()
	ny := time.FixedZone("EDT", -4*3600)
	stamp := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)

	records := []event.Record{
		{ID: "manual_2", Name: "Gym", Start: time.Date(2025, 3, 11, 18, 0, 0, 0, ny), End: time.Date(2025, 3, 11, 19, 0, 0, 0, ny), Priority: event.PriorityLow, Purpose: event.PurposePersonal},
		{ID: "g1", Name: "Standup", Start: time.Date(2025, 3, 10, 9, 0, 0, 0, ny), End: time.Date(2025, 3, 10, 9, 30, 0, 0, ny), Priority: event.PriorityHigh, Purpose: event.PurposeBusiness, Fixed: true},
		{ID: "manual_3", Name: "Someday"},
	}

	var buf bytes.Buffer
	n, err := Export(&buf, records, stamp)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if n != 2 {
		t.Errorf("Export wrote %d events, want 2", n)
	}
	if !strings.Contains(buf.String(), "PRODID:"+productID) {
		t.Errorf("missing PRODID in:\n%s", buf.String())
	}

	cal, err := ical.ParseCalendar(strings.NewReader(buf.String()))
	if err != nil {
		t.Fatalf("ParseCalendar: %v", err)
	}

	type row struct {
		UID, Summary, Description string
		Start                     time.Time
	}
	var got []row
	for _, ev := range cal.Events() {
		start, err := ev.GetStartAt()
		if err != nil {
			t.Fatalf("GetStartAt: %v", err)
		}
		got = append(got, row{
			UID:         ev.Id(),
			Summary:     ev.GetProperty(ical.ComponentPropertySummary).Value,
			Description: strings.ReplaceAll(ev.GetProperty(ical.ComponentPropertyDescription).Value, `\,`, ","),
			Start:       start.UTC(),
		})
	}
	want := []row{
		{UID: "g1@gcal-planner", Summary: "Standup", Description: "Priority: high, Purpose: business, Fixed: true", Start: time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)},
		{UID: "manual_2@gcal-planner", Summary: "Gym", Description: "Priority: low, Purpose: personal, Fixed: false", Start: time.Date(2025, 3, 11, 22, 0, 0, 0, time.UTC)},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("events mismatch (-got +want):\n%s", diff)
	}
}
