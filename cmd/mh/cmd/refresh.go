package cmd

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/meli-harvester/internal/api/client"
)

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Force an access token refresh",
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := newClient().RefreshToken(cmd.Context())
			if apiclient.IsStatus(err, http.StatusUnauthorized) {
				return errors.New("refresh token expired, re-authorize the application")
			}
			if err != nil {
				return fmt.Errorf("refreshing token: %w", err)
			}

			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), result)
			}

			expires := "-"
			if result.Token.ExpiresAt != nil {
				expires = result.Token.ExpiresAt.Local().Format(timeLayout)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"Token refreshed: %s (expires %s)\n", result.TokenPreview, expires)
			return err
		},
	}
}
