package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"github.com/sashabaranov/go-openai"

	"github.com/jima/gcal-planner/internal/calsync"
	"github.com/jima/gcal-planner/internal/calsync/calsynctest"
	"github.com/jima/gcal-planner/internal/config"
	"github.com/jima/gcal-planner/internal/event"
	"github.com/jima/gcal-planner/internal/reconcile"
	"github.com/jima/gcal-planner/internal/schedule"
	"github.com/jima/gcal-planner/internal/store"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return loc
}

// monday is 08:00 on Monday 2025-03-10, the day after DST began.
func monday(t *testing.T) time.Time {
	return time.Date(2025, 3, 10, 8, 0, 0, 0, newYork(t))
}

func at(t *testing.T, day, hour, min int) time.Time {
	return time.Date(2025, 3, day, hour, min, 0, 0, newYork(t))
}

func remoteEvent(id, name string, start, end time.Time) event.ProviderEvent {
	return event.ProviderEvent{
		ID:      id,
		Summary: name,
		Start:   event.EventTime{DateTime: start.Format(time.RFC3339)},
		End:     event.EventTime{DateTime: end.Format(time.RFC3339)},
	}
}

type fixture struct {
	planner  *Planner
	store    *store.Memory
	provider *calsynctest.Provider
	now      time.Time
}

func manualID(now time.Time, idx int) string {
	return fmt.Sprintf("%s%d_%d_abc", event.ManualPrefix, now.UnixMilli(), idx)
}

func newFixture(t *testing.T, cfg *config.Config, remote []event.ProviderEvent, opts ...Option) *fixture {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	f := &fixture{
		store:    store.NewMemory(),
		provider: calsynctest.New(remote...),
		now:      monday(t),
	}
	ids := &reconcile.IDGenerator{
		Now:    func() time.Time { return f.now },
		Random: func() string { return "abc" },
	}
	opts = append([]Option{WithClock(func() time.Time { return f.now }), WithIDGenerator(ids)}, opts...)
	p, err := New(cfg, f.store, f.provider, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.planner = p
	return f
}

func TestAddEventsPlacesAndSyncs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, []event.ProviderEvent{
		remoteEvent("r1", "Standup", at(t, 10, 10, 0), at(t, 10, 11, 0)),
	})

	res, err := f.planner.AddEvents(ctx, []event.Request{
		{Name: "Write report", Priority: event.PriorityHigh, Purpose: "business", Duration: "01:00"},
	}, AddOptions{})
	if err != nil {
		t.Fatalf("AddEvents() error = %v", err)
	}

	if len(res.Placed) != 1 {
		t.Fatalf("placed %d events, want 1", len(res.Placed))
	}
	// The standup plus the 15 minute buffer pushes the slot to 11:15.
	if got, want := res.Placed[0].Start, at(t, 10, 11, 15); !got.Equal(want) {
		t.Errorf("placed start = %v, want %v", got, want)
	}
	if res.Sync == nil || res.Sync.Created != 1 {
		t.Fatalf("sync result = %+v, want one created event", res.Sync)
	}
	if len(res.Overlaps) != 0 {
		t.Errorf("overlaps = %v, want none", res.Overlaps)
	}

	rec, err := f.store.LoadSync(ctx)
	if err != nil {
		t.Fatalf("LoadSync() error = %v", err)
	}
	wantMapping := []calsync.Mapping{{RemoteID: "remote-1", Name: "Write report", LocalID: manualID(f.now, 0)}}
	if diff := cmp.Diff(rec.Created, wantMapping); diff != "" {
		t.Errorf("sync record mismatch (-got +want):\n%s", diff)
	}

	doc, err := f.store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(doc.ConfiguredEvents) != 1 || doc.ConfiguredEvents[0].ID != "remote-1" {
		t.Fatalf("configured events = %+v, want one record keyed remote-1", doc.ConfiguredEvents)
	}
	if len(doc.Tasks) != 1 || doc.Tasks[0].StartTime != "11:15" || doc.Tasks[0].IsManual {
		t.Errorf("tasks = %+v", doc.Tasks)
	}

	again, err := f.planner.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if again.Created != 0 {
		t.Errorf("second Sync() created %d, want 0", again.Created)
	}
}

func TestAddEventsRejectsInvalidBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	f.store.Enqueue(event.Request{Name: "Queued"})

	zero := 0
	_, err := f.planner.AddEvents(ctx, []event.Request{
		{Name: "Fine"},
		{Name: "Empty", DurationHours: &zero, DurationMinutes: &zero},
		{Name: "Half", Date: "2025-03-11"},
	}, AddOptions{NoSync: true})
	if err == nil {
		t.Fatal("AddEvents() succeeded, want error")
	}
	if !errors.Is(err, event.ErrInvalidDuration) || !errors.Is(err, event.ErrInvalidInput) {
		t.Errorf("AddEvents() error = %v, want both failures joined", err)
	}

	doc, _ := f.store.Load(ctx)
	if len(doc.ConfiguredEvents) != 0 {
		t.Errorf("configured events = %+v, want none", doc.ConfiguredEvents)
	}
	inbox, _ := f.store.Inbox(ctx)
	if len(inbox) != 1 {
		t.Errorf("inbox has %d requests, want 1 kept", len(inbox))
	}
}

func TestAddEventsDrainsInbox(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	f.store.Enqueue(event.Request{Name: "Gym", Duration: "00:30", Priority: event.PriorityLow})

	res, err := f.planner.AddEvents(ctx, nil, AddOptions{NoSync: true})
	if err != nil {
		t.Fatalf("AddEvents() error = %v", err)
	}
	if len(res.Added) != 1 || res.Added[0].Name != "Gym" || !res.Added[0].IsManual() {
		t.Fatalf("added = %+v", res.Added)
	}
	if got, want := res.Added[0].Start, at(t, 10, 10, 0); !got.Equal(want) {
		t.Errorf("start = %v, want %v", got, want)
	}
	if res.Sync != nil {
		t.Errorf("sync ran with NoSync: %+v", res.Sync)
	}
	if inbox, _ := f.store.Inbox(ctx); len(inbox) != 0 {
		t.Errorf("inbox not cleared: %+v", inbox)
	}
	if len(f.provider.Created) != 0 {
		t.Errorf("provider received %d creates, want 0", len(f.provider.Created))
	}
}

func TestAddEventsRetriesUnplacedRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	waiting := event.Record{
		ID:           "manual_1_0_old",
		Name:         "Taxes",
		Duration:     event.Minutes(90),
		Priority:     event.PriorityMedium,
		Purpose:      event.PurposeBusiness,
		WeekdaysOnly: true,
	}
	if _, err := f.planner.SaveSetup(ctx, []event.Record{waiting}, nil); err != nil {
		t.Fatalf("SaveSetup() error = %v", err)
	}

	res, err := f.planner.AddEvents(ctx, nil, AddOptions{NoSync: true})
	if err != nil {
		t.Fatalf("AddEvents() error = %v", err)
	}
	if len(res.Placed) != 1 || res.Placed[0].ID != waiting.ID {
		t.Fatalf("placed = %+v, want the stored record", res.Placed)
	}

	doc, _ := f.store.Load(ctx)
	if len(doc.ConfiguredEvents) != 1 || !doc.ConfiguredEvents[0].Scheduled() {
		t.Errorf("configured events = %+v, want the record scheduled in place", doc.ConfiguredEvents)
	}
}

func TestAddEventsReportsFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	res, err := f.planner.AddEvents(ctx, []event.Request{
		{Name: "Dentist", Fixed: true},
	}, AddOptions{NoSync: true})
	if err != nil {
		t.Fatalf("AddEvents() error = %v", err)
	}
	want := []calsync.ItemError{{Event: "Dentist", Error: schedule.ErrFixedWithoutTime.Error()}}
	if diff := cmp.Diff(res.Failures, want); diff != "" {
		t.Errorf("failures mismatch (-got +want):\n%s", diff)
	}
}

func TestAddEventsWithoutProvider(t *testing.T) {
	t.Parallel()
	p, err := New(config.DefaultConfig(), store.NewMemory(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := p.AddEvents(context.Background(), nil, AddOptions{}); !errors.Is(err, ErrNoProvider) {
		t.Errorf("AddEvents() error = %v, want ErrNoProvider", err)
	}
}

type stubModel struct {
	content string
	err     error
}

func (s stubModel) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: s.content}}},
	}, nil
}

func TestAddEventsWithOracle(t *testing.T) {
	t.Parallel()

	now := monday(t)
	tests := []struct {
		name  string
		model stubModel
		want  time.Time
	}{
		{
			name:  "accepted proposal",
			model: stubModel{content: fmt.Sprintf(`{"scheduled":[{"id":%q,"start":"2025-03-10T14:00:00","end":"2025-03-10T15:00:00"}]}`, manualID(now, 0))},
			want:  at(t, 10, 14, 0),
		},
		{
			name:  "rejected proposal falls back",
			model: stubModel{content: fmt.Sprintf(`{"scheduled":[{"id":%q,"start":"2025-03-10T06:00:00","end":"2025-03-10T07:00:00"}]}`, manualID(now, 0))},
			want:  at(t, 10, 10, 0),
		},
		{
			name:  "model error falls back",
			model: stubModel{err: errors.New("rate limited")},
			want:  at(t, 10, 10, 0),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.DefaultConfig()
			cfg.Oracle.Enabled = true
			f := newFixture(t, cfg, nil, WithOracle(tt.model))

			res, err := f.planner.AddEvents(context.Background(), []event.Request{
				{Name: "Deep work", Purpose: "business", Duration: "01:00"},
			}, AddOptions{NoSync: true})
			if err != nil {
				t.Fatalf("AddEvents() error = %v", err)
			}
			if len(res.Placed) != 1 {
				t.Fatalf("placed = %+v, want one event", res.Placed)
			}
			if got := res.Placed[0].Start; !got.Equal(tt.want) {
				t.Errorf("start = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	if _, err := f.planner.Verify(ctx); !errors.Is(err, store.ErrNoSyncRecord) {
		t.Fatalf("Verify() without record error = %v, want ErrNoSyncRecord", err)
	}

	if _, err := f.planner.AddEvents(ctx, []event.Request{{Name: "Gym"}, {Name: "Read"}}, AddOptions{}); err != nil {
		t.Fatalf("AddEvents() error = %v", err)
	}
	if err := f.provider.DeleteEvent(ctx, "remote-2"); err != nil {
		t.Fatalf("DeleteEvent() error = %v", err)
	}

	got, err := f.planner.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	want := []calsync.Verification{
		{Name: "Gym", Exists: true, RemoteID: "remote-1"},
		{Name: "Read", Exists: false, RemoteID: "remote-2", Error: calsync.ErrNotFound.Error()},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Verify() mismatch (-got +want):\n%s", diff)
	}
}

func TestRevert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		failDelete    map[string]error
		wantDeleted   int
		wantRemaining []string
		wantManual    []bool
	}{
		{
			name:        "all deleted",
			wantDeleted: 2,
			wantManual:  []bool{true, true},
		},
		{
			name:          "partial failure keeps the rest",
			failDelete:    map[string]error{"remote-2": errors.New("backend error")},
			wantDeleted:   1,
			wantRemaining: []string{"remote-2"},
			wantManual:    []bool{true, false},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			f := newFixture(t, nil, nil)

			if _, err := f.planner.AddEvents(ctx, []event.Request{{Name: "Gym"}, {Name: "Read"}}, AddOptions{}); err != nil {
				t.Fatalf("AddEvents() error = %v", err)
			}
			f.provider.FailDelete = tt.failDelete

			res, err := f.planner.Revert(ctx)
			if err != nil {
				t.Fatalf("Revert() error = %v", err)
			}
			if res.Deleted != tt.wantDeleted {
				t.Errorf("deleted = %d, want %d", res.Deleted, tt.wantDeleted)
			}

			rec, err := f.store.LoadSync(ctx)
			if len(tt.wantRemaining) == 0 {
				if !errors.Is(err, store.ErrNoSyncRecord) {
					t.Errorf("LoadSync() after full revert = %+v, %v; want ErrNoSyncRecord", rec, err)
				}
			} else {
				var remaining []string
				for _, m := range rec.Created {
					remaining = append(remaining, m.RemoteID)
				}
				if diff := cmp.Diff(remaining, tt.wantRemaining); diff != "" {
					t.Errorf("remaining mismatch (-got +want):\n%s", diff)
				}
			}

			doc, _ := f.store.Load(ctx)
			var manual []bool
			for _, r := range doc.ConfiguredEvents {
				manual = append(manual, r.IsManual())
			}
			if diff := cmp.Diff(manual, tt.wantManual); diff != "" {
				t.Errorf("manual flags mismatch (-got +want):\n%s", diff)
			}
		})
	}
}

func TestSyncAccumulatesRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	if _, err := f.planner.AddEvents(ctx, []event.Request{{Name: "Gym"}}, AddOptions{}); err != nil {
		t.Fatalf("first AddEvents() error = %v", err)
	}
	first := manualID(f.now, 0)
	f.now = f.now.Add(time.Minute)
	if _, err := f.planner.AddEvents(ctx, []event.Request{{Name: "Read"}}, AddOptions{}); err != nil {
		t.Fatalf("second AddEvents() error = %v", err)
	}

	rec, err := f.store.LoadSync(ctx)
	if err != nil {
		t.Fatalf("LoadSync() error = %v", err)
	}
	want := []calsync.Mapping{
		{RemoteID: "remote-1", Name: "Gym", LocalID: first},
		{RemoteID: "remote-2", Name: "Read", LocalID: manualID(f.now, 0)},
	}
	if diff := cmp.Diff(rec.Created, want); diff != "" {
		t.Errorf("sync record mismatch (-got +want):\n%s", diff)
	}

	res, err := f.planner.Revert(ctx)
	if err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	if res.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", res.Deleted)
	}
	if n := len(f.provider.Events()); n != 0 {
		t.Errorf("provider still holds %d events", n)
	}
}

func TestSetupEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, []event.ProviderEvent{
		remoteEvent("r1", "Standup", at(t, 10, 9, 0), at(t, 10, 9, 30)),
		remoteEvent("r2", "Review", at(t, 12, 14, 0), at(t, 12, 15, 0)),
		remoteEvent("r3", "Offsite", at(t, 25, 9, 0), at(t, 25, 17, 0)),
	})

	if _, err := f.planner.SaveSetup(ctx, []event.Record{{ID: "r1", Name: "Standup", Priority: event.PriorityHigh, Purpose: event.PurposeBusiness, Fixed: true}}, nil); err != nil {
		t.Fatalf("SaveSetup() error = %v", err)
	}

	tests := []struct {
		rng     string
		want    []string
		wantErr error
	}{
		{rng: "week", want: []string{"r2"}},
		{rng: "month", want: []string{"r2", "r3"}},
		{rng: "year", wantErr: ErrInvalidRange},
	}
	for _, tt := range tests {
		got, err := f.planner.SetupEvents(ctx, tt.rng)
		if !errors.Is(err, tt.wantErr) {
			t.Fatalf("SetupEvents(%s) error = %v, want %v", tt.rng, err, tt.wantErr)
		}
		var ids []string
		for _, r := range got {
			ids = append(ids, r.ID)
		}
		if diff := cmp.Diff(ids, tt.want); diff != "" {
			t.Errorf("SetupEvents(%s) mismatch (-got +want):\n%s", tt.rng, diff)
		}
	}
}

func TestSaveSetup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	ranges := schedule.TimeRanges{event.PurposeBusiness: {Start: event.MustClock("07:00"), End: event.MustClock("15:00")}}
	if _, err := f.planner.SaveSetup(ctx, []event.Record{{ID: "a", Name: "A"}}, ranges); err != nil {
		t.Fatalf("SaveSetup() error = %v", err)
	}
	doc, err := f.planner.SaveSetup(ctx, []event.Record{{ID: "b", Name: "B"}, {ID: "a", Name: "A2"}}, nil)
	if err != nil {
		t.Fatalf("SaveSetup() error = %v", err)
	}

	var names []string
	for _, r := range doc.ConfiguredEvents {
		names = append(names, r.Name)
	}
	if diff := cmp.Diff(names, []string{"A2", "B"}); diff != "" {
		t.Errorf("configured names mismatch (-got +want):\n%s", diff)
	}
	if len(doc.Tasks) != 2 {
		t.Errorf("tasks = %d, want 2", len(doc.Tasks))
	}
	if diff := cmp.Diff(doc.TimeRanges, ranges); diff != "" {
		t.Errorf("time ranges not kept (-got +want):\n%s", diff)
	}

	_, err = f.planner.SaveSetup(ctx, []event.Record{{Name: "no id"}, {Name: "also none"}}, nil)
	if !errors.Is(err, event.ErrInvalidInput) {
		t.Errorf("SaveSetup() without ids error = %v, want ErrInvalidInput", err)
	}
}

func TestTimeRanges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	got, err := f.planner.TimeRanges(ctx)
	if err != nil {
		t.Fatalf("TimeRanges() error = %v", err)
	}
	if diff := cmp.Diff(got, schedule.DefaultPreferences()); diff != "" {
		t.Errorf("unset TimeRanges() mismatch (-got +want):\n%s", diff)
	}

	bad := schedule.TimeRanges{event.PurposeSchool: {Start: event.MustClock("17:00"), End: event.MustClock("09:00")}}
	if err := f.planner.SetTimeRanges(ctx, bad); err == nil {
		t.Error("SetTimeRanges() accepted an inverted window")
	}

	good := schedule.TimeRanges{event.PurposeSchool: {Start: event.MustClock("08:00"), End: event.MustClock("12:00")}}
	if err := f.planner.SetTimeRanges(ctx, good); err != nil {
		t.Fatalf("SetTimeRanges() error = %v", err)
	}
	got, _ = f.planner.TimeRanges(ctx)
	if diff := cmp.Diff(got, good); diff != "" {
		t.Errorf("TimeRanges() mismatch (-got +want):\n%s", diff)
	}
}

func TestTasks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, nil, []event.ProviderEvent{
		remoteEvent("r1", "Standup", at(t, 10, 9, 0), at(t, 10, 9, 30)),
		remoteEvent("r9", "Far away", at(t, 28, 9, 0), at(t, 28, 10, 0)),
	})
	_, err := f.planner.SaveSetup(ctx, []event.Record{
		{ID: "r1", Name: "Standup", Priority: event.PriorityHigh, Purpose: event.PurposeBusiness, Fixed: true},
		{ID: "manual_5_0_x", Name: "Gym", Duration: event.Minutes(45), Priority: event.PriorityLow, Purpose: event.PurposePersonal},
	}, nil)
	if err != nil {
		t.Fatalf("SaveSetup() error = %v", err)
	}

	got, err := f.planner.Tasks(ctx)
	if err != nil {
		t.Fatalf("Tasks() error = %v", err)
	}
	want := []event.Task{
		{ID: "r1", Name: "Standup", Fixed: true, Priority: event.PriorityHigh, StartDate: "2025-03-10", StartTime: "09:00", Duration: "00:30", DurationMinutes: 30, Type: event.PurposeBusiness},
		{ID: "manual_5_0_x", Name: "Gym", Priority: event.PriorityLow, Duration: "00:45", DurationMinutes: 45, Type: event.PurposePersonal, IsManual: true},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Tasks() mismatch (-got +want):\n%s", diff)
	}
}
