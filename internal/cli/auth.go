package cli

import (
	"github.com/spf13/cobra"

	gcal "github.com/jima/gcal-planner"
)

func newAuthCommand(a *App) *cobra.Command {
	auth := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Calendar",
	}

	var port int
	login := &cobra.Command{
		Use:   "login",
		Short: "Run the browser authorization flow and store the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := a.paths.LoadCredentials()
			if err != nil {
				return err
			}
			if err := a.paths.RunAuthFlow(cmd.Context(), creds, port, cmd.ErrOrStderr()); err != nil {
				return err
			}
			return respond(cmd.OutOrStdout(), nil, "authorized")
		},
	}
	login.Flags().IntVar(&port, "port", gcal.DefaultCallbackPort, "Local port for the OAuth callback")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the stored authorization and its scopes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.paths.Status(cmd.Context())
			if err != nil {
				return err
			}
			if !st.Configured {
				return writeResponse(cmd.OutOrStdout(), Response{
					Success: true,
					Data:    st,
					Error:   gcal.ErrNotConfigured,
					Message: "run 'gplan auth login' first",
				})
			}
			return respond(cmd.OutOrStdout(), st, "authorized as %s", st.Email)
		},
	}

	auth.AddCommand(login, status)
	return auth
}

func newCalendarsCommand(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "calendars",
		Short: "List the calendars you can access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cal, err := a.Connect(cmd.Context())
			if err != nil {
				return err
			}
			list, err := cal.ListCalendars(cmd.Context())
			if err != nil {
				return err
			}
			return respond(cmd.OutOrStdout(), list, "%d calendars", len(list))
		},
	}
}
