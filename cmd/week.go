package cmd

import (
	"context"

	"github.com/bnema/schoolday-cli/internal/adapters/render/agenda"
	"github.com/bnema/schoolday-cli/internal/application"
	"github.com/spf13/cobra"
)

func newWeekCmd(app *app) *cobra.Command {
	var week string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "week",
		Short: "Show the timetable of a week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := app.periodKey(week)
			if err != nil {
				return err
			}

			return app.withSession(cmd, func(_ context.Context, s *session) error {
				err := app.refresh(cmd, asJSON, fetchTarget{profile: s.profile.ID, calls: []string{application.CallAppointments}, period: key}, func(ctx context.Context) error {
					_, err := s.appointments.Refresh(ctx, key)
					return err
				})
				if err != nil {
					return err
				}

				bucket, ok := s.appointments.Week(key)
				if !ok {
					bucket = s.appointments.Reducer().EmptyWeek(key)
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), bucket)
				}

				rendered, err := agenda.RenderWeek(bucket, app.renderOptions())
				return writeRendered(cmd.OutOrStdout(), rendered, err)
			})
		},
	}

	cmd.Flags().StringVar(&week, "week", "", "ISO week as <year>~<week> (defaults to the current week)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}
