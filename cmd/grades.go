package cmd

import (
	"context"

	"github.com/bnema/schoolday-cli/internal/adapters/render/agenda"
	"github.com/bnema/schoolday-cli/internal/application"
	"github.com/spf13/cobra"
)

func newGradesCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "grades",
		Short: "Show recent grades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withSession(cmd, func(_ context.Context, s *session) error {
				err := app.refresh(cmd, asJSON, fetchTarget{profile: s.profile.ID, calls: []string{application.CallGrades}}, func(ctx context.Context) error {
					_, err := s.grades.Refresh(ctx)
					return err
				})
				if err != nil {
					return err
				}

				if asJSON {
					return writeJSON(cmd.OutOrStdout(), s.grades.State())
				}

				rendered, err := agenda.RenderGrades(s.grades.State(), app.renderOptions())
				return writeRendered(cmd.OutOrStdout(), rendered, err)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}
