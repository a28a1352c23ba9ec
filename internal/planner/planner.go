// Package planner ties the store, the calendar provider, the scheduler and
// the sync reconciler together into the operations the CLI and daemon run.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jima/gcal-planner/internal/calsync"
	"github.com/jima/gcal-planner/internal/config"
	"github.com/jima/gcal-planner/internal/conflict"
	"github.com/jima/gcal-planner/internal/event"
	"github.com/jima/gcal-planner/internal/oracle"
	"github.com/jima/gcal-planner/internal/reconcile"
	"github.com/jima/gcal-planner/internal/schedule"
	"github.com/jima/gcal-planner/internal/store"
)

// TaskDays is how far ahead the task view looks.
const TaskDays = 7

var (
	// ErrNoProvider is returned by operations that need the calendar when
	// the planner was built offline.
	ErrNoProvider = errors.New("no calendar provider configured")
	// ErrInvalidRange is returned for a setup range other than week or month.
	ErrInvalidRange = errors.New("range must be week or month")
)

// Planner runs the planning operations. Mutating operations are serialized.
type Planner struct {
	cfg      *config.Config
	loc      *time.Location
	store    store.Store
	provider calsync.Provider
	llm      oracle.Completer
	ids      *reconcile.IDGenerator

	mu  sync.Mutex
	now func() time.Time
}

// Option customizes a Planner.
type Option func(*Planner)

// WithOracle enables the model-backed scheduling pass.
func WithOracle(c oracle.Completer) Option {
	return func(p *Planner) { p.llm = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Planner) { p.now = now }
}

// WithIDGenerator replaces the manual id source.
func WithIDGenerator(g *reconcile.IDGenerator) Option {
	return func(p *Planner) { p.ids = g }
}

// New builds a Planner. provider may be nil for offline use; operations
// that need it then return ErrNoProvider.
func New(cfg *config.Config, st store.Store, provider calsync.Provider, opts ...Option) (*Planner, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	p := &Planner{
		cfg:      cfg,
		loc:      loc,
		store:    st,
		provider: provider,
		ids:      reconcile.NewIDGenerator(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Location is the zone every wall-clock value is read and written in.
func (p *Planner) Location() *time.Location { return p.loc }

// Tasks lists the provider's events for the coming week with configured
// metadata applied, plus manual records the provider does not hold yet.
func (p *Planner) Tasks(ctx context.Context) ([]event.Task, error) {
	records, err := p.Combined(ctx, p.today(), TaskDays)
	if err != nil {
		return nil, err
	}
	return reconcile.Project(records, p.loc), nil
}

// Combined returns provider events in [from, from+days] (whole days)
// merged with the stored configuration. Without a provider only the
// stored records are returned.
func (p *Planner) Combined(ctx context.Context, from time.Time, days int) ([]event.Record, error) {
	doc, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	if p.provider == nil {
		return doc.ConfiguredEvents, nil
	}
	remote, err := p.list(ctx, from, days)
	if err != nil {
		return nil, err
	}
	return reconcile.Combine(remote, doc.ConfiguredEvents), nil
}

// SetupEvents lists provider events in range ("week" or "month") that have
// no stored configuration yet.
func (p *Planner) SetupEvents(ctx context.Context, rng string) ([]event.Record, error) {
	var days int
	switch rng {
	case "", "week":
		days = p.cfg.Ranges.WeekDays
	case "month":
		days = p.cfg.Ranges.MonthDays
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRange, rng)
	}
	if p.provider == nil {
		return nil, ErrNoProvider
	}

	doc, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	remote, err := p.list(ctx, p.today(), days)
	if err != nil {
		return nil, err
	}
	return reconcile.Unconfigured(remote, doc.ConfiguredEvents), nil
}

// SaveSetup merges records into the configuration by id and refreshes the
// task projection. Stored time ranges are replaced only when ranges is
// non-nil.
func (p *Planner) SaveSetup(ctx context.Context, records []event.Record, ranges schedule.TimeRanges) (store.Document, error) {
	var errs []error
	for i, r := range records {
		if r.ID == "" {
			errs = append(errs, fmt.Errorf("record %d (%q): %w: missing id", i, r.Name, event.ErrInvalidInput))
		}
	}
	if ranges != nil {
		if err := ranges.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("time ranges: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return store.Document{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var saved store.Document
	err := p.store.Update(ctx, func(doc *store.Document) error {
		doc.ConfiguredEvents = reconcile.MergeList(doc.ConfiguredEvents, records)
		doc.Tasks = reconcile.Project(doc.ConfiguredEvents, p.loc)
		if ranges != nil {
			doc.TimeRanges = ranges
		}
		saved = *doc
		return nil
	})
	if err != nil {
		return store.Document{}, fmt.Errorf("save setup: %w", err)
	}
	log.Ctx(ctx).Info().
		Str("component", "planner").Str("stage", "setup").
		Int("saved", len(records)).Int("configured", len(saved.ConfiguredEvents)).
		Msg("configuration saved")
	return saved, nil
}

// TimeRanges returns the saved working windows, or the defaults reported
// for an unset value.
func (p *Planner) TimeRanges(ctx context.Context) (schedule.TimeRanges, error) {
	doc, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	if doc.TimeRanges == nil {
		return schedule.DefaultPreferences(), nil
	}
	return doc.TimeRanges, nil
}

// SetTimeRanges stores r after validating it.
func (p *Planner) SetTimeRanges(ctx context.Context, r schedule.TimeRanges) error {
	if err := r.Validate(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Update(ctx, func(doc *store.Document) error {
		doc.TimeRanges = r
		return nil
	})
}

// Records returns the stored configuration.
func (p *Planner) Records(ctx context.Context) ([]event.Record, error) {
	doc, err := p.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	return doc.ConfiguredEvents, nil
}

// list fetches provider events from the start of from's day through the
// end of the day days later.
func (p *Planner) list(ctx context.Context, from time.Time, days int) ([]event.ProviderEvent, error) {
	start := startOfDay(from.In(p.loc))
	end := start.AddDate(0, 0, days+1)
	remote, err := p.provider.ListEvents(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list provider events: %w", err)
	}
	return remote, nil
}

func (p *Planner) today() time.Time {
	return startOfDay(p.now().In(p.loc))
}

func (p *Planner) scheduler(ranges schedule.TimeRanges) (*schedule.Scheduler, error) {
	opts, err := p.cfg.ScheduleOptions(p.loc, ranges)
	if err != nil {
		return nil, fmt.Errorf("scheduler options: %w", err)
	}
	sched := schedule.New(opts)
	if err := sched.Err(); err != nil {
		return nil, fmt.Errorf("scheduler options: %w", err)
	}
	return sched, nil
}

func (p *Planner) reconciler() *calsync.Reconciler {
	tol := time.Duration(p.cfg.Sync.DuplicateToleranceSeconds) * time.Second
	return calsync.New(p.provider, p.loc, tol)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// describeOverlaps logs each overlapping pair and returns the descriptions.
func describeOverlaps(ctx context.Context, records []event.Record) []string {
	pairs := conflict.FindOverlaps(records)
	out := conflict.Describe(pairs)
	logger := log.Ctx(ctx).With().Str("component", "planner").Str("stage", "validate").Logger()
	for _, d := range out {
		logger.Warn().Msg(d)
	}
	return out
}
