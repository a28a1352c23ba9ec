package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jima/gcal-planner/internal/calsync"
	"github.com/jima/gcal-planner/internal/event"
	"github.com/jima/gcal-planner/internal/oracle"
	"github.com/jima/gcal-planner/internal/reconcile"
	"github.com/jima/gcal-planner/internal/store"
)

// AddOptions controls AddEvents.
type AddOptions struct {
	// NoSync skips pushing the new events to the calendar.
	NoSync bool
}

// AddResult reports one AddEvents run.
type AddResult struct {
	Added    []event.Record      `json:"added"`
	Placed   []event.Record      `json:"placed"`
	Proposed int                 `json:"oracleAccepted"`
	Failures []calsync.ItemError `json:"failures"`
	Overlaps []string            `json:"overlaps"`
	Sync     *calsync.Result     `json:"sync,omitempty"`
}

// AddEvents ingests the inbox plus reqs, places every flexible request
// around the calendar's existing events, persists the result and, unless
// opts.NoSync, pushes the new events to the provider.
//
// Manual records stored earlier without a slot are retried in the same
// pass. A batch with any invalid request is rejected whole, and the inbox
// is cleared only after the batch has been persisted.
func (p *Planner) AddEvents(ctx context.Context, reqs []event.Request, opts AddOptions) (AddResult, error) {
	if p.provider == nil {
		return AddResult{}, ErrNoProvider
	}
	logger := log.Ctx(ctx).With().Str("component", "planner").Str("stage", "add").Logger()

	p.mu.Lock()
	defer p.mu.Unlock()

	inbox, err := p.store.Inbox(ctx)
	if err != nil {
		return AddResult{}, fmt.Errorf("read inbox: %w", err)
	}
	all := append(append([]event.Request(nil), inbox...), reqs...)

	incoming, err := p.normalize(all)
	if err != nil {
		return AddResult{}, err
	}
	incoming = p.ids.Assign(incoming)

	now := p.now().In(p.loc)
	doc, err := p.store.Load(ctx)
	if err != nil {
		return AddResult{}, fmt.Errorf("load store: %w", err)
	}
	remote, err := p.list(ctx, now, p.cfg.Scheduling.HorizonDays)
	if err != nil {
		return AddResult{}, err
	}
	existing := reconcile.Combine(remote, doc.ConfiguredEvents)

	busy, retry := splitRetry(existing)
	requests := append(retry, incoming...)
	if len(requests) == 0 {
		logger.Debug().Msg("nothing to add")
		return AddResult{Added: []event.Record{}, Failures: []calsync.ItemError{}, Overlaps: []string{}}, nil
	}

	sched, err := p.scheduler(doc.TimeRanges)
	if err != nil {
		return AddResult{}, err
	}

	res := AddResult{Failures: []calsync.ItemError{}}
	before := requests
	if p.llm != nil && p.cfg.Oracle.Enabled {
		out, err := oracle.New(p.llm, p.cfg.Oracle.Model, sched).Plan(ctx, busy, requests, now)
		if err != nil {
			logger.Warn().Err(err).Msg("oracle unavailable, using the scheduler alone")
		}
		requests = out.Records
		res.Proposed = len(out.Accepted)
	}

	placed := sched.Schedule(busy, requests, now)
	for _, f := range placed.Failures {
		logger.Warn().Str("event", f.Event.Name).Err(f.Err).Msg("not placed")
		res.Failures = append(res.Failures, calsync.ItemError{Event: f.Event.Name, Error: f.Err.Error()})
	}
	res.Overlaps = describeOverlaps(ctx, placed.Events)

	res.Added = placed.Events[len(busy):]
	res.Placed = []event.Record{}
	for i, r := range res.Added {
		if r.Scheduled() && !before[i].Scheduled() {
			res.Placed = append(res.Placed, r)
		}
	}

	err = p.store.Update(ctx, func(d *store.Document) error {
		d.ConfiguredEvents = reconcile.MergeList(d.ConfiguredEvents, res.Added)
		d.Tasks = reconcile.Project(d.ConfiguredEvents, p.loc)
		return nil
	})
	if err != nil {
		return AddResult{}, fmt.Errorf("persist events: %w", err)
	}
	if len(inbox) > 0 {
		if err := p.store.ClearInbox(ctx); err != nil {
			logger.Error().Err(err).Msg("failed to clear inbox")
		}
	}
	logger.Info().
		Int("requests", len(requests)).
		Int("placed", len(res.Placed)).
		Int("failed", len(res.Failures)).
		Int("overlaps", len(res.Overlaps)).
		Msg("events added")

	if opts.NoSync {
		return res, nil
	}
	sr, err := p.sync(ctx)
	if err != nil {
		return res, fmt.Errorf("sync added events: %w", err)
	}
	res.Sync = &sr
	return res, nil
}

// normalize builds records from reqs, rejecting the batch when any request
// is invalid.
func (p *Planner) normalize(reqs []event.Request) ([]event.Record, error) {
	out := make([]event.Record, 0, len(reqs))
	var errs []error
	for i, req := range reqs {
		r, err := event.FromRequest(req, p.loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("request %d: %w", i, err))
			continue
		}
		out = append(out, r)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// splitRetry separates manual records still waiting for a slot from the
// rest, which are busy time.
func splitRetry(records []event.Record) (busy, retry []event.Record) {
	for _, r := range records {
		if r.IsManual() && !r.Fixed && !r.Scheduled() {
			retry = append(retry, r)
			continue
		}
		busy = append(busy, r)
	}
	return busy, retry
}
