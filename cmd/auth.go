package cmd

import (
	"context"
	"fmt"
	"strings"

	filestore "github.com/bnema/schoolday-cli/internal/adapters/secrets/file"
	"github.com/bnema/schoolday-cli/internal/domain"
	"github.com/spf13/cobra"
)

func newAuthCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage profile API tokens",
	}

	cmd.AddCommand(newAuthSetCmd(app), newAuthRemoveCmd(app))

	return cmd
}

func newAuthSetCmd(app *app) *cobra.Command {
	var profileID string
	var secretKey string
	var token string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the API token of a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := resolveProfileID(cmd.Context(), app, profileID)
			if err != nil {
				return err
			}

			key := secretKey
			if key == "" {
				key = filestore.TokenKey(id)
			}

			if err := app.profiles.SetToken(cmd.Context(), id, key, strings.TrimSpace(token)); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "token stored for profile %s\n", id)
			return err
		},
	}

	cmd.Flags().StringVar(&profileID, "profile", "", "Profile ID (defaults to the active profile)")
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "Secret-store key (defaults to "+filestore.KeyScheme+"profiles/<id>/token)")
	cmd.Flags().StringVar(&token, "token", "", "API token")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func newAuthRemoveCmd(app *app) *cobra.Command {
	var profileID string

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove the API token of a profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := resolveProfileID(cmd.Context(), app, profileID)
			if err != nil {
				return err
			}

			return app.profiles.RemoveToken(cmd.Context(), id)
		},
	}

	cmd.Flags().StringVar(&profileID, "profile", "", "Profile ID (defaults to the active profile)")

	return cmd
}

func resolveProfileID(ctx context.Context, app *app, raw string) (domain.ProfileID, error) {
	if id := strings.TrimSpace(raw); id != "" {
		return domain.ProfileID(id), nil
	}

	profile, err := app.profiles.Active(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve profile: %w", err)
	}

	return profile.ID, nil
}
