package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/meli-harvester/internal/api/client"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

func extractCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Trigger an extraction run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := newClient().Extract(cmd.Context(), wait)
			if apiclient.IsStatus(err, http.StatusConflict) {
				return fmt.Errorf("an extraction is already running")
			}
			if err != nil {
				return fmt.Errorf("triggering extraction: %w", err)
			}

			if resp.Report == nil {
				if jsonOutput() {
					return outputJSON(cmd.OutOrStdout(), resp)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "Extraction started.")
				return err
			}

			if jsonOutput() {
				err = outputJSON(cmd.OutOrStdout(), resp.Report)
			} else {
				err = printReport(cmd.OutOrStdout(), resp.Report)
			}
			if err != nil {
				return err
			}

			if resp.Report.Status == domain.OutcomeFailed {
				return fmt.Errorf("extraction failed (%s)", resp.Report.Reason)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "block until the run finishes and print its report")

	cmd.AddCommand(&cobra.Command{
		Use:   "last",
		Short: "Show the most recent run report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := newClient().LastRun(cmd.Context())
			if apiclient.IsStatus(err, http.StatusNotFound) {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No extraction has run yet.")
				return err
			}
			if err != nil {
				return fmt.Errorf("getting last run: %w", err)
			}

			if jsonOutput() {
				return outputJSON(cmd.OutOrStdout(), report)
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	})

	return cmd
}
