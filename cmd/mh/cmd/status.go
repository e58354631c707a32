package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/meli-harvester/internal/api/client"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show credential state and API quota",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := newClient()
			ctx := cmd.Context()

			status, err := c.AuthStatus(ctx)
			if err != nil {
				return fmt.Errorf("getting auth status: %w", err)
			}

			quota, err := c.Quota(ctx)
			if err != nil {
				return fmt.Errorf("getting quota: %w", err)
			}

			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), struct {
					*apiclient.AuthStatus
					Quota *apiclient.Quota `json:"quota"`
				}{status, quota})
			}
			return printStatus(cmd.OutOrStdout(), status, quota)
		},
	}
}
