package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newProfileCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage school profiles",
	}

	cmd.AddCommand(
		newProfileAddCmd(app),
		newProfileListCmd(app),
		newProfileUseCmd(app),
		newProfileHistoryCmd(app),
	)

	return cmd
}

func newProfileAddCmd(app *app) *cobra.Command {
	var profile domain.Profile
	var id string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a profile; the first one becomes active",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile.ID = domain.ProfileID(strings.TrimSpace(id))
			if err := app.profiles.AddProfile(cmd.Context(), profile); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "profile %s added\n", profile.ID)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&id, "id", "", "Profile ID")
	flags.StringVar(&profile.Name, "name", "", "Display name")
	flags.StringVar(&profile.BaseURL, "base-url", "", "Backend API base URL")
	flags.StringVar(&profile.Context.AuthenticationContextID, "auth-context", "", "Authentication context ID")
	flags.StringVar(&profile.Context.AccountID, "account", "", "Account ID (messages)")
	flags.StringVar(&profile.Context.SubjectID, "subject", "", "Student ID (timetable, homework, grades)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("base-url")
	_ = cmd.MarkFlagRequired("auth-context")

	return cmd
}

func newProfileListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, err := app.profiles.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), profiles)
			}

			active := activeProfileID(cmd.Context(), app)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			for _, profile := range profiles {
				marker := " "
				if profile.ID == active {
					marker = "*"
				}
				token := "no token"
				if profile.TokenRef != "" {
					token = "token"
				}
				fmt.Fprintf(w, "%s %s\t%s\t%s\t%s\n", marker, profile.ID, profile.DisplayName(), profile.BaseURL, token)
			}

			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}

// newProfileUseCmd switches the active profile and activates its context,
// which records the switch in the context history.
func newProfileUseCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Switch the active profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := app.profiles.Use(cmd.Context(), domain.ProfileID(args[0]))
			if err != nil {
				return err
			}

			if err := app.withSession(cmd, func(context.Context, *session) error { return nil }); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "switched to %s\n", profile.DisplayName())
			return err
		},
	}
}

func newProfileHistoryCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently used contexts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := app.profileRepo.History(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), history)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			for _, entry := range history.Entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					entry.Label,
					entry.Context.ID(),
					entry.LastSeen.In(app.cfg.Location).Format("2006-01-02 15:04"),
					entry.Switches,
				)
			}

			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}

func activeProfileID(ctx context.Context, app *app) domain.ProfileID {
	profile, err := app.profiles.Active(ctx)
	if err != nil {
		return ""
	}
	return profile.ID
}
