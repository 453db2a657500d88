package cmd

import (
	"context"
	"fmt"

	"github.com/bnema/schoolday-cli/internal/adapters/render/agenda"
	"github.com/bnema/schoolday-cli/internal/application"
	"github.com/spf13/cobra"
)

func newHomeworkCmd(app *app) *cobra.Command {
	var week string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "homework",
		Short: "Show the homework of a week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := app.periodKey(week)
			if err != nil {
				return err
			}

			return app.withSession(cmd, func(_ context.Context, s *session) error {
				err := app.refresh(cmd, asJSON, fetchTarget{profile: s.profile.ID, calls: []string{application.CallHomework}, period: key}, func(ctx context.Context) error {
					_, err := s.homework.Refresh(ctx, key)
					return err
				})
				if err != nil {
					return err
				}

				bucket, ok := s.homework.Week(key)
				if !ok {
					bucket = s.homework.Reducer().EmptyWeek(key)
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), bucket)
				}

				rendered, err := agenda.RenderHomework(bucket, app.renderOptions())
				return writeRendered(cmd.OutOrStdout(), rendered, err)
			})
		},
	}

	cmd.Flags().StringVar(&week, "week", "", "ISO week as <year>~<week> (defaults to the current week)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.AddCommand(newHomeworkDoneCmd(app))

	return cmd
}

func newHomeworkDoneCmd(app *app) *cobra.Command {
	var week string
	var undo bool

	cmd := &cobra.Command{
		Use:   "done <id>",
		Short: "Mark a homework item as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := app.periodKey(week)
			if err != nil {
				return err
			}

			return app.withSession(cmd, func(ctx context.Context, s *session) error {
				if _, err := s.homework.Refresh(ctx, key); err != nil {
					return err
				}
				if err := s.homework.SetCompleted(ctx, args[0], !undo); err != nil {
					return err
				}

				state := "completed"
				if undo {
					state = "open"
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "homework %s marked %s\n", args[0], state)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&week, "week", "", "ISO week holding the item (defaults to the current week)")
	cmd.Flags().BoolVar(&undo, "undo", false, "Mark the item as not completed")

	return cmd
}
