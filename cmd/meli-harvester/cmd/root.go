// Package cmd implements the CLI commands for meli-harvester.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cfgFile string

// ExitError carries a process exit code out of a command. Err is nil when
// the command already reported the outcome.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

var rootCmd = &cobra.Command{
	Use:   "meli-harvester",
	Short: "Harvest a MercadoLibre seller catalog",
	Long: "Discovers every listing of a MercadoLibre seller account, resolves each item " +
		"into a normalized product record, and writes the result to the configured sinks.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
