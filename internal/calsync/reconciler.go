package calsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jima/gcal-planner/internal/event"
)

// DefaultTolerance is how close two starts must be for events of the same
// name to count as duplicates.
const DefaultTolerance = time.Minute

// Result of a sync. Errors is non-empty whenever any create failed.
type Result struct {
	Created int         `json:"created"`
	Skipped int         `json:"skipped"`
	Errors  []ItemError `json:"errors"`
	Mapping []Mapping   `json:"createdMapping"`
}

// Verification reports whether one created event still exists remotely.
type Verification struct {
	Name     string `json:"name"`
	Exists   bool   `json:"exists"`
	RemoteID string `json:"googleCalendarId"`
	Error    string `json:"error,omitempty"`
}

// RevertResult of deleting created events. Remaining lists the mappings
// that could not be deleted and must be kept for a later retry.
type RevertResult struct {
	Deleted   int         `json:"deleted"`
	Errors    []ItemError `json:"errors"`
	Remaining []Mapping   `json:"remaining,omitempty"`
}

// Complete reports whether every mapped event is gone.
func (r RevertResult) Complete() bool { return len(r.Remaining) == 0 }

// Reconciler drives a Provider. Calls are issued one at a time, in input
// order, so duplicate detection sees every earlier create.
type Reconciler struct {
	provider  Provider
	loc       *time.Location
	tolerance time.Duration
}

// New returns a Reconciler sending wall-clock times in loc.
func New(p Provider, loc *time.Location, tolerance time.Duration) *Reconciler {
	if loc == nil {
		loc = time.Local
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Reconciler{provider: p, loc: loc, tolerance: tolerance}
}

// Sync creates every manual, scheduled record the remote snapshot does not
// already hold. A record is a duplicate when a remote event has the same
// name and a start within the tolerance.
func (rc *Reconciler) Sync(ctx context.Context, local []event.Record, remote []event.ProviderEvent) Result {
	logger := log.Ctx(ctx).With().Str("component", "calsync").Str("stage", "sync").Logger()

	starts := make(map[string][]time.Time)
	for _, pe := range remote {
		if !pe.Timed() {
			continue
		}
		t, err := pe.StartTime()
		if err != nil {
			continue
		}
		starts[pe.Summary] = append(starts[pe.Summary], t)
	}

	res := Result{Errors: []ItemError{}, Mapping: []Mapping{}}
	for _, r := range local {
		if !r.IsManual() || !r.Scheduled() {
			continue
		}
		if rc.duplicate(starts[r.Name], r.Start) {
			logger.Debug().Str("event", r.Name).Msg("skipping duplicate")
			res.Skipped++
			continue
		}

		id, err := rc.provider.CreateEvent(ctx, rc.newEvent(r))
		if err != nil {
			logger.Error().Err(err).Str("event", r.Name).Msg("create failed")
			res.Errors = append(res.Errors, ItemError{Event: r.Name, Error: err.Error()})
			continue
		}
		res.Created++
		res.Mapping = append(res.Mapping, Mapping{RemoteID: id, Name: r.Name, LocalID: r.ID})
		starts[r.Name] = append(starts[r.Name], r.Start)
	}

	logger.Info().Int("created", res.Created).Int("skipped", res.Skipped).Int("failed", len(res.Errors)).Msg("sync finished")
	return res
}

func (rc *Reconciler) duplicate(existing []time.Time, start time.Time) bool {
	for _, t := range existing {
		d := t.Sub(start)
		if d < 0 {
			d = -d
		}
		if d < rc.tolerance {
			return true
		}
	}
	return false
}

func (rc *Reconciler) newEvent(r event.Record) NewEvent {
	return NewEvent{
		Summary:     r.Name,
		Description: fmt.Sprintf("Priority: %s, Purpose: %s, Fixed: %t", r.Priority, r.Purpose, r.Fixed),
		Start:       WallClock(r.Start, rc.loc),
		End:         WallClock(r.End, rc.loc),
		TimeZone:    rc.loc.String(),
	}
}

// Verify re-fetches every mapped event. Missing events are reported, not
// treated as failures of the whole call.
func (rc *Reconciler) Verify(ctx context.Context, mapping []Mapping) []Verification {
	out := make([]Verification, 0, len(mapping))
	for _, m := range mapping {
		v := Verification{Name: m.Name, RemoteID: m.RemoteID}
		_, err := rc.provider.GetEvent(ctx, m.RemoteID)
		switch {
		case err == nil:
			v.Exists = true
		case errors.Is(err, ErrNotFound):
			v.Error = ErrNotFound.Error()
		default:
			v.Error = err.Error()
		}
		out = append(out, v)
	}
	return out
}

// Revert deletes every mapped event. An event already gone counts as deleted.
func (rc *Reconciler) Revert(ctx context.Context, mapping []Mapping) RevertResult {
	logger := log.Ctx(ctx).With().Str("component", "calsync").Str("stage", "revert").Logger()

	res := RevertResult{Errors: []ItemError{}}
	for _, m := range mapping {
		err := rc.provider.DeleteEvent(ctx, m.RemoteID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			logger.Error().Err(err).Str("event", m.Name).Str("remote_id", m.RemoteID).Msg("delete failed")
			res.Errors = append(res.Errors, ItemError{Event: m.Name, Error: err.Error()})
			res.Remaining = append(res.Remaining, m)
			continue
		}
		res.Deleted++
	}

	logger.Info().Int("deleted", res.Deleted).Int("failed", len(res.Errors)).Msg("revert finished")
	return res
}
