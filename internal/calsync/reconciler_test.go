package calsync_test

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"

	"github.com/jima/gcal-planner/internal/calsync"
	"github.com/jima/gcal-planner/internal/calsync/calsynctest"
	"github.com/jima/gcal-planner/internal/event"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation() error = %v", err)
	}
	return loc
}

func TestSyncSkipsNearDuplicate(t *testing.T) {
	t.Parallel()
	loc := newYork(t)

	start := time.Date(2025, 3, 10, 10, 0, 0, 0, loc)
	remote := event.ProviderEvent{
		ID:      "g1",
		Summary: "Deep Work",
		Start:   event.EventTime{DateTime: start.Add(45 * time.Second).Format(time.RFC3339)},
		End:     event.EventTime{DateTime: start.Add(2 * time.Hour).Format(time.RFC3339)},
	}
	p := calsynctest.New(remote)
	local := []event.Record{{ID: "manual_1_0_abcdefghi", Name: "Deep Work", Start: start, End: start.Add(2 * time.Hour)}}

	got := calsync.New(p, loc, 0).Sync(context.Background(), local, p.Events())

	want := calsync.Result{Created: 0, Skipped: 1, Errors: []calsync.ItemError{}, Mapping: []calsync.Mapping{}}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Sync() mismatch (-got +want):\n%s", diff)
	}
}

func TestSync(t *testing.T) {
	t.Parallel()
	loc := newYork(t)

	day := func(h, m int) time.Time { return time.Date(2025, 3, 10, h, m, 0, 0, loc) }
	local := []event.Record{
		{ID: "g7", Name: "Provider owned", Start: day(8, 0), End: day(9, 0)},
		{ID: "manual_1_0_a", Name: "Unscheduled", Duration: 60},
		{ID: "manual_1_1_b", Name: "Gym", Start: day(18, 0), End: day(19, 0), Priority: event.PriorityLow, Purpose: event.PurposePersonal},
		{ID: "manual_1_2_c", Name: "Broken", Start: day(11, 0), End: day(12, 0)},
		{ID: "manual_1_3_d", Name: "Gym", Start: day(18, 0).Add(30 * time.Second), End: day(19, 0)},
		{ID: "manual_1_4_e", Name: "Report", Start: day(13, 0), End: day(14, 30), Priority: event.PriorityHigh, Purpose: event.PurposeBusiness, Fixed: true},
	}
	p := calsynctest.New()
	p.FailCreate = map[string]error{"Broken": errors.New("backend unavailable")}

	got := calsync.New(p, loc, time.Minute).Sync(context.Background(), local, nil)

	want := calsync.Result{
		Created: 2,
		Skipped: 1,
		Errors:  []calsync.ItemError{{Event: "Broken", Error: "backend unavailable"}},
		Mapping: []calsync.Mapping{
			{RemoteID: "remote-1", Name: "Gym", LocalID: "manual_1_1_b"},
			{RemoteID: "remote-2", Name: "Report", LocalID: "manual_1_4_e"},
		},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Sync() mismatch (-got +want):\n%s", diff)
	}

	wantCreated := []calsync.NewEvent{
		{
			Summary:     "Gym",
			Description: "Priority: low, Purpose: personal, Fixed: false",
			Start:       "2025-03-10T18:00:00",
			End:         "2025-03-10T19:00:00",
			TimeZone:    "America/New_York",
		},
		{
			Summary:     "Report",
			Description: "Priority: high, Purpose: business, Fixed: true",
			Start:       "2025-03-10T13:00:00",
			End:         "2025-03-10T14:30:00",
			TimeZone:    "America/New_York",
		},
	}
	if diff := cmp.Diff(p.Created, wantCreated); diff != "" {
		t.Errorf("created payloads mismatch (-got +want):\n%s", diff)
	}
}

func TestWallClockAcrossDST(t *testing.T) {
	t.Parallel()
	loc := newYork(t)

	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{name: "winter offset", in: time.Date(2025, 1, 15, 15, 0, 0, 0, time.UTC), want: "2025-01-15T10:00:00"},
		{name: "summer offset", in: time.Date(2025, 7, 15, 15, 0, 0, 0, time.UTC), want: "2025-07-15T11:00:00"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(calsync.WallClock(tt.in, loc), tt.want); diff != "" {
				t.Errorf("WallClock() mismatch (-got +want):\n%s", diff)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()
	loc := newYork(t)

	p := calsynctest.New(event.ProviderEvent{
		ID:      "remote-1",
		Summary: "Gym",
		Start:   event.EventTime{DateTime: "2025-03-10T18:00:00-04:00"},
		End:     event.EventTime{DateTime: "2025-03-10T19:00:00-04:00"},
	})
	p.FailGet = map[string]error{"remote-3": errors.New("quota exceeded")}

	got := calsync.New(p, loc, 0).Verify(context.Background(), []calsync.Mapping{
		{RemoteID: "remote-1", Name: "Gym", LocalID: "manual_a"},
		{RemoteID: "remote-2", Name: "Deleted", LocalID: "manual_b"},
		{RemoteID: "remote-3", Name: "Flaky", LocalID: "manual_c"},
	})
	want := []calsync.Verification{
		{Name: "Gym", Exists: true, RemoteID: "remote-1"},
		{Name: "Deleted", Exists: false, RemoteID: "remote-2", Error: "event not found in calendar"},
		{Name: "Flaky", Exists: false, RemoteID: "remote-3", Error: "quota exceeded"},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Verify() mismatch (-got +want):\n%s", diff)
	}
}

func TestRevert(t *testing.T) {
	t.Parallel()
	loc := newYork(t)

	ev := func(id string) event.ProviderEvent {
		return event.ProviderEvent{
			ID:    id,
			Start: event.EventTime{DateTime: "2025-03-10T18:00:00-04:00"},
			End:   event.EventTime{DateTime: "2025-03-10T19:00:00-04:00"},
		}
	}
	mapping := []calsync.Mapping{
		{RemoteID: "remote-1", Name: "Gym", LocalID: "manual_a"},
		{RemoteID: "remote-2", Name: "Report", LocalID: "manual_b"},
	}

	tests := []struct {
		name       string
		failDelete map[string]error
		events     []event.ProviderEvent
		want       calsync.RevertResult
		complete   bool
	}{
		{
			name:     "all deleted",
			events:   []event.ProviderEvent{ev("remote-1"), ev("remote-2")},
			want:     calsync.RevertResult{Deleted: 2, Errors: []calsync.ItemError{}},
			complete: true,
		},
		{
			name:     "already gone counts as deleted",
			events:   []event.ProviderEvent{ev("remote-1")},
			want:     calsync.RevertResult{Deleted: 2, Errors: []calsync.ItemError{}},
			complete: true,
		},
		{
			name:       "one delete fails",
			events:     []event.ProviderEvent{ev("remote-1"), ev("remote-2")},
			failDelete: map[string]error{"remote-2": errors.New("permission denied")},
			want: calsync.RevertResult{
				Deleted:   1,
				Errors:    []calsync.ItemError{{Event: "Report", Error: "permission denied"}},
				Remaining: []calsync.Mapping{mapping[1]},
			},
			complete: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := calsynctest.New(tt.events...)
			p.FailDelete = tt.failDelete

			got := calsync.New(p, loc, 0).Revert(context.Background(), mapping)
			if diff := cmp.Diff(got, tt.want); diff != "" {
				t.Errorf("Revert() mismatch (-got +want):\n%s", diff)
			}
			if got.Complete() != tt.complete {
				t.Errorf("Complete() = %v, want %v", got.Complete(), tt.complete)
			}
		})
	}
}
