package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jima/gcal-planner/internal/calsync"
	"github.com/jima/gcal-planner/internal/reconcile"
	"github.com/jima/gcal-planner/internal/store"
)

// Sync pushes every scheduled manual record to the provider. Created
// events are added to the sync record and their local records take the
// remote id, so a later sync does not push them again.
func (p *Planner) Sync(ctx context.Context) (calsync.Result, error) {
	if p.provider == nil {
		return calsync.Result{}, ErrNoProvider
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sync(ctx)
}

func (p *Planner) sync(ctx context.Context) (calsync.Result, error) {
	logger := log.Ctx(ctx).With().Str("component", "planner").Str("stage", "sync").Logger()

	doc, err := p.store.Load(ctx)
	if err != nil {
		return calsync.Result{}, fmt.Errorf("load store: %w", err)
	}
	from := p.today().AddDate(0, 0, -p.cfg.Sync.LookbackDays)
	remote, err := p.list(ctx, from, p.cfg.Sync.LookbackDays+p.cfg.Sync.LookaheadDays)
	if err != nil {
		return calsync.Result{}, err
	}

	res := p.reconciler().Sync(ctx, doc.ConfiguredEvents, remote)
	if len(res.Mapping) == 0 {
		return res, nil
	}

	prev, err := p.store.LoadSync(ctx)
	if err != nil && !errors.Is(err, store.ErrNoSyncRecord) {
		return res, fmt.Errorf("load sync record: %w", err)
	}
	// Mappings accumulate across syncs instead of replacing the previous
	// record. Synced records now carry remote ids, so dropping an earlier
	// mapping would leave those events out of reach of Revert.
	rec := calsync.Record{
		Timestamp: p.now().UTC(),
		Created:   append(prev.Created, res.Mapping...),
	}
	if err := p.store.SaveSync(ctx, rec); err != nil {
		return res, fmt.Errorf("save sync record: %w", err)
	}

	ids := make(map[string]string, len(res.Mapping))
	for _, m := range res.Mapping {
		ids[m.LocalID] = m.RemoteID
	}
	err = p.store.Update(ctx, func(d *store.Document) error {
		d.ConfiguredEvents = reconcile.Rekey(d.ConfiguredEvents, ids)
		d.Tasks = reconcile.Project(d.ConfiguredEvents, p.loc)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("rekey synced events: %w", err)
	}
	logger.Info().Int("recorded", len(rec.Created)).Msg("sync record saved")
	return res, nil
}

// Verify checks that every event in the sync record still exists.
func (p *Planner) Verify(ctx context.Context) ([]calsync.Verification, error) {
	if p.provider == nil {
		return nil, ErrNoProvider
	}
	rec, err := p.store.LoadSync(ctx)
	if err != nil {
		return nil, err
	}
	return p.reconciler().Verify(ctx, rec.Created), nil
}

// Revert deletes the events of the sync record. The record is removed when
// every delete succeeded and otherwise rewritten with the remaining
// entries. Reverted local records become manual again.
func (p *Planner) Revert(ctx context.Context) (calsync.RevertResult, error) {
	if p.provider == nil {
		return calsync.RevertResult{}, ErrNoProvider
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, err := p.store.LoadSync(ctx)
	if err != nil {
		return calsync.RevertResult{}, err
	}
	res := p.reconciler().Revert(ctx, rec.Created)

	if res.Complete() {
		err = p.store.DeleteSync(ctx)
	} else {
		err = p.store.SaveSync(ctx, calsync.Record{Timestamp: rec.Timestamp, Created: res.Remaining})
	}
	if err != nil {
		return res, fmt.Errorf("update sync record: %w", err)
	}

	failed := make(map[string]bool, len(res.Remaining))
	for _, m := range res.Remaining {
		failed[m.RemoteID] = true
	}
	ids := make(map[string]string, len(rec.Created))
	for _, m := range rec.Created {
		if !failed[m.RemoteID] {
			ids[m.RemoteID] = m.LocalID
		}
	}
	err = p.store.Update(ctx, func(d *store.Document) error {
		d.ConfiguredEvents = reconcile.Rekey(d.ConfiguredEvents, ids)
		d.Tasks = reconcile.Project(d.ConfiguredEvents, p.loc)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("restore manual ids: %w", err)
	}
	return res, nil
}
