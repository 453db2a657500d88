package cmd

import (
	"context"
	"fmt"

	"github.com/bnema/schoolday-cli/internal/adapters/render/agenda"
	"github.com/bnema/schoolday-cli/internal/application"
	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newMessagesCmd(app *app) *cobra.Command {
	var folder string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "messages",
		Short: "List the messages of a folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withSession(cmd, func(_ context.Context, s *session) error {
				err := app.refresh(cmd, asJSON, fetchTarget{profile: s.profile.ID, calls: []string{application.CallMessages}, folder: folder}, func(ctx context.Context) error {
					_, err := s.messages.Refresh(ctx, folder)
					return err
				})
				if err != nil {
					return err
				}

				messages := s.messages.Folder(folder)
				if asJSON {
					if messages == nil {
						messages = []domain.Message{}
					}
					return writeJSON(cmd.OutOrStdout(), messages)
				}

				rendered, err := agenda.RenderMessages(folder, messages, app.renderOptions())
				return writeRendered(cmd.OutOrStdout(), rendered, err)
			})
		},
	}

	cmd.Flags().StringVar(&folder, "folder", domain.DefaultMessageFolder, "Message folder")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	cmd.AddCommand(newMessagesReadCmd(app))

	return cmd
}

func newMessagesReadCmd(app *app) *cobra.Command {
	var folder string
	var unread bool

	cmd := &cobra.Command{
		Use:   "read <id>",
		Short: "Mark a message as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withSession(cmd, func(ctx context.Context, s *session) error {
				if _, err := s.messages.Refresh(ctx, folder); err != nil {
					return err
				}
				if err := s.messages.MarkRead(ctx, args[0], !unread); err != nil {
					return err
				}

				state := "read"
				if unread {
					state = "unread"
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "message %s marked %s\n", args[0], state)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&folder, "folder", domain.DefaultMessageFolder, "Folder holding the message")
	cmd.Flags().BoolVar(&unread, "unread", false, "Mark the message as unread")

	return cmd
}
