package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jima/gcal-planner/internal/event"
	"github.com/jima/gcal-planner/internal/planner"
	"github.com/jima/gcal-planner/internal/schedule"
)

func newTasksCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks",
		Short: "List this week's events with their planning metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.planner(cmd.Context(), true)
			if err != nil {
				return err
			}
			tasks, err := p.Tasks(cmd.Context())
			if err != nil {
				return err
			}
			return respond(cmd.OutOrStdout(), tasks, "%d tasks", len(tasks))
		},
	}
}

func newSetupCommand(a *App) *cobra.Command {
	setup := &cobra.Command{
		Use:   "setup",
		Short: "Configure priority, purpose and fixed flags of calendar events",
	}

	var rng string
	list := &cobra.Command{
		Use:   "list",
		Short: "List calendar events that have no configuration yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.planner(cmd.Context(), true)
			if err != nil {
				return err
			}
			records, err := p.SetupEvents(cmd.Context(), rng)
			if err != nil {
				return err
			}
			if records == nil {
				records = []event.Record{}
			}
			return respond(cmd.OutOrStdout(), records, "%d unconfigured events", len(records))
		},
	}
	list.Flags().StringVar(&rng, "range", "week", "Range to list: week or month")

	var eventsFile, rangesFile string
	save := &cobra.Command{
		Use:   "save",
		Short: "Merge configured events (and optionally time ranges) into the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var records []event.Record
			if err := readInput(eventsFile, cmd.InOrStdin(), &records); err != nil {
				return err
			}
			var ranges schedule.TimeRanges
			if rangesFile != "" {
				if err := readInput(rangesFile, cmd.InOrStdin(), &ranges); err != nil {
					return err
				}
			}
			p, err := a.planner(cmd.Context(), false)
			if err != nil {
				return err
			}
			doc, err := p.SaveSetup(cmd.Context(), records, ranges)
			if err != nil {
				return err
			}
			return respond(cmd.OutOrStdout(), doc, "saved %d events", len(records))
		},
	}
	save.Flags().StringVarP(&eventsFile, "file", "f", "-", "JSON array of configured events (- for stdin)")
	save.Flags().StringVar(&rangesFile, "ranges", "", "JSON object of purpose time ranges")

	setup.AddCommand(list, save)
	return setup
}

func newRangesCommand(a *App) *cobra.Command {
	ranges := &cobra.Command{
		Use:   "ranges",
		Short: "Show or change the working hours per purpose",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Show the working hours per purpose",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.planner(cmd.Context(), false)
			if err != nil {
				return err
			}
			r, err := p.TimeRanges(cmd.Context())
			if err != nil {
				return err
			}
			return respond(cmd.OutOrStdout(), r, "time ranges")
		},
	}

	var file, purpose, start, end string
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the working hours from a file, or change one purpose",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.planner(cmd.Context(), false)
			if err != nil {
				return err
			}

			var r schedule.TimeRanges
			switch {
			case file != "":
				if err := readInput(file, cmd.InOrStdin(), &r); err != nil {
					return err
				}
			case purpose != "":
				pp, w, err := parseRange(purpose, start, end)
				if err != nil {
					return err
				}
				cur, err := p.TimeRanges(cmd.Context())
				if err != nil {
					return err
				}
				r = cur.Merge(schedule.TimeRanges{pp: w})
			default:
				return fmt.Errorf("%w: give --file or --purpose with --start and --end", errInvalidInput)
			}

			if err := p.SetTimeRanges(cmd.Context(), r); err != nil {
				return fmt.Errorf("%w: %v", errInvalidInput, err)
			}
			return respond(cmd.OutOrStdout(), r, "time ranges saved")
		},
	}
	set.Flags().StringVarP(&file, "file", "f", "", "JSON object of purpose time ranges (- for stdin)")
	set.Flags().StringVar(&purpose, "purpose", "", "Purpose to change: personal, business or school")
	set.Flags().StringVar(&start, "start", "", "Window start, HH:MM")
	set.Flags().StringVar(&end, "end", "", "Window end, HH:MM")

	ranges.AddCommand(get, set)
	return ranges
}

func newAddCommand(a *App) *cobra.Command {
	var (
		file     string
		req      event.Request
		priority string
		duration string
		weekends bool
		noSync   bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Schedule new events into free slots and push them to the calendar",
		Long: `Add reads requests from --file and/or the flags, together with anything
queued in the data directory's new_events.json inbox, places every flexible
request into a free slot and syncs the result unless --no-sync is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var reqs []event.Request
			if file != "" {
				if err := readInput(file, cmd.InOrStdin(), &reqs); err != nil {
					return err
				}
			}
			if req.Name != "" {
				r := req
				r.Priority = event.ParsePriority(priority)
				r.Duration = duration
				if weekends {
					no := false
					r.WeekdaysOnly = &no
				}
				reqs = append(reqs, r)
			}

			p, err := a.planner(cmd.Context(), true)
			if err != nil {
				return err
			}
			res, err := p.AddEvents(cmd.Context(), reqs, planner.AddOptions{NoSync: noSync})
			if err != nil {
				return err
			}
			return respond(cmd.OutOrStdout(), res, "placed %d of %d events", len(res.Placed), len(res.Added))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "JSON array of event requests (- for stdin)")
	f.StringVar(&req.Name, "name", "", "Name of a single event to add")
	f.StringVar(&priority, "priority", "", "Priority: low, medium or high")
	f.StringVar(&req.Purpose, "purpose", "", "Purpose: personal, business or school")
	f.StringVar(&duration, "duration", "", "Duration, HH:MM (default 01:00)")
	f.BoolVar(&req.Fixed, "fixed", false, "Event has a fixed time (requires --date and --start)")
	f.StringVar(&req.Date, "date", "", "Date of a fixed event, YYYY-MM-DD")
	f.StringVar(&req.StartTime, "start", "", "Start of a fixed event, HH:MM")
	f.BoolVar(&weekends, "weekends", false, "Allow placement on Saturday and Sunday")
	f.BoolVar(&noSync, "no-sync", false, "Do not push the new events to the calendar")
	return cmd
}
