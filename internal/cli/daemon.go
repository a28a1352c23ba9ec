package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jima/gcal-planner/internal/logging"
	"github.com/jima/gcal-planner/internal/planner"
	"github.com/jima/gcal-planner/internal/store"
)

func newDaemonCommand(a *App) *cobra.Command {
	var schedule string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Re-plan on a schedule and whenever the inbox changes",
		Long: `The daemon runs the add pipeline with no new requests on the configured
cron schedule, and immediately whenever new_events.json in the data
directory is written. Each run drains the inbox and retries events that
are still waiting for a slot.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if schedule != "" {
				a.cfg.Daemon.Cron = schedule
			}
			p, err := a.planner(ctx, true)
			if err != nil {
				return err
			}
			d := &replanner{
				planner: p,
				opts:    planner.AddOptions{NoSync: !a.cfg.Daemon.Sync},
				logger:  logging.Component(ctx, "daemon", "replan"),
			}
			return d.serve(ctx, a.files, a.cfg.Daemon.Cron)
		},
	}
	cmd.Flags().StringVar(&schedule, "cron", "", "Cron expression for periodic re-planning (overrides config)")
	return cmd
}

// replanner serializes re-plan runs from the cron and inbox triggers.
type replanner struct {
	mu      sync.Mutex
	planner *planner.Planner
	opts    planner.AddOptions
	logger  zerolog.Logger
}

func (d *replanner) serve(ctx context.Context, files *store.FileStore, expr string) error {
	c := cron.New(cron.WithLocation(d.planner.Location()))
	if _, err := c.AddFunc(expr, func() { d.run(ctx, "cron") }); err != nil {
		return fmt.Errorf("%w: daemon cron %q: %v", errInvalidInput, expr, err)
	}

	w, err := store.NewWatcher(files, d.logger, func(string) { d.run(ctx, "inbox") }, store.InboxFile)
	if err != nil {
		return fmt.Errorf("watch inbox: %w", err)
	}
	defer w.Close()

	c.Start()
	defer func() { <-c.Stop().Done() }()

	d.logger.Info().Str("cron", expr).Bool("sync", !d.opts.NoSync).Msg("daemon started")
	d.run(ctx, "startup")

	<-ctx.Done()
	d.logger.Info().Msg("daemon stopping")
	return nil
}

func (d *replanner) run(ctx context.Context, trigger string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	res, err := d.planner.AddEvents(ctx, nil, d.opts)
	if err != nil {
		d.logger.Error().Err(err).Str("trigger", trigger).Msg("re-plan failed")
		return
	}
	ev := d.logger.Info().
		Str("trigger", trigger).
		Int("added", len(res.Added)).
		Int("placed", len(res.Placed)).
		Int("failed", len(res.Failures))
	if res.Sync != nil {
		ev = ev.Int("synced", res.Sync.Created)
	}
	ev.Msg("re-plan finished")
}
