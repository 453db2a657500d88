package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/bnema/schoolday-cli/internal/application"
	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newSyncCmd(app *app) *cobra.Command {
	var week string
	var folder string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh timetable, homework, grades and messages at once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := app.periodKey(week)
			if err != nil {
				return err
			}

			return app.withSession(cmd, func(ctx context.Context, s *session) error {
				var results []application.SyncResult
				fetch := func(ctx context.Context) error {
					var err error
					results, err = s.sync.SyncAll(ctx, key, folder)
					return err
				}

				if asJSON || app.flags.offline {
					err = fetch(ctx)
				} else {
					err = runFetchSpinner(ctx, cmd.ErrOrStderr(), fetchTarget{
						profile: s.profile.ID,
						calls:   s.sync.Calls(),
						period:  key,
					}, fetch)
				}
				if err != nil {
					return fmt.Errorf("sync: %w", err)
				}

				if asJSON {
					return writeJSON(cmd.OutOrStdout(), results)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
				for _, result := range results {
					state := "up to date"
					if result.Updated {
						state = "updated"
					}
					fmt.Fprintf(w, "%s\t%s\n", result.Call, state)
				}

				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&week, "week", "", "ISO week as <year>~<week> (defaults to the current week)")
	cmd.Flags().StringVar(&folder, "folder", domain.DefaultMessageFolder, "Message folder")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}
