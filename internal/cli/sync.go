package cli

import (
	"github.com/spf13/cobra"
)

func newSyncCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push scheduled local events to the calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.planner(cmd.Context(), true)
			if err != nil {
				return err
			}
			res, err := p.Sync(cmd.Context())
			if err != nil {
				return err
			}
			return respond(cmd.OutOrStdout(), res, "synced %d events, skipped %d", res.Created, res.Skipped)
		},
	}
}

func newVerifyCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that the events of the last sync still exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.planner(cmd.Context(), true)
			if err != nil {
				return err
			}
			res, err := p.Verify(cmd.Context())
			if err != nil {
				return err
			}
			found := 0
			for _, v := range res {
				if v.Exists {
					found++
				}
			}
			return respond(cmd.OutOrStdout(), res, "%d of %d synced events found", found, len(res))
		},
	}
}

func newRevertCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "revert",
		Short: "Delete the events created by the last sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.planner(cmd.Context(), true)
			if err != nil {
				return err
			}
			res, err := p.Revert(cmd.Context())
			if err != nil {
				return err
			}
			if !res.Complete() {
				return respond(cmd.OutOrStdout(), res, "deleted %d events, %d remain recorded for retry", res.Deleted, len(res.Remaining))
			}
			return respond(cmd.OutOrStdout(), res, "deleted %d events", res.Deleted)
		},
	}
}
