package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jima/gcal-planner/internal/ics"
	"github.com/jima/gcal-planner/internal/render"
)

func newShowCommand(a *App) *cobra.Command {
	var (
		date    string
		offline bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Draw the week containing --date as a terminal grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.planner(cmd.Context(), !offline)
			if err != nil {
				return err
			}
			day, err := parseDay(date, p.Location(), time.Now())
			if err != nil {
				return err
			}

			week := render.NewWeek(day, p.Location(), render.DefaultOptions())
			records, err := p.Combined(cmd.Context(), week.Monday(), 6)
			if err != nil {
				return err
			}
			for _, r := range records {
				week.Add(r)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), week.Render())
			return err
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Any day of the week to show, YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&offline, "offline", false, "Show stored events only, without contacting the calendar")
	return cmd
}

func newExportCommand(a *App) *cobra.Command {
	var (
		out     string
		days    int
		offline bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the planned events as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.planner(cmd.Context(), !offline)
			if err != nil {
				return err
			}
			now := time.Now()
			if days <= 0 {
				days = a.cfg.Scheduling.HorizonDays
			}
			today, _ := parseDay("", p.Location(), now)
			records, err := p.Combined(cmd.Context(), today, days)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err := ics.Export(cmd.OutOrStdout(), records, now)
				return err
			}
			f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			n, err := ics.Export(f, records, now)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			return respond(cmd.OutOrStdout(), map[string]any{"path": out, "events": n}, "exported %d events", n)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().IntVar(&days, "days", 0, "Days ahead to export (default scheduling horizon)")
	cmd.Flags().BoolVar(&offline, "offline", false, "Export stored events only, without contacting the calendar")
	return cmd
}
