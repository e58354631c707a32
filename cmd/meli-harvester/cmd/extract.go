package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/meli-harvester/internal/harvest"
	domain "github.com/donaldgifford/meli-harvester/pkg/types"
)

// Process exit codes of the extract command.
const (
	ExitSuccess = 0
	ExitFailed  = 1
	ExitPartial = 2
)

var outputDir string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run one extraction and exit",
	Long: "Runs the extraction pipeline once and prints the run report as JSON. " +
		"Exits 0 on success, 2 when some items were skipped, and 1 on failure.",
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&outputDir, "output-dir", "", "override harvest.output_dir for the file sink")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return &ExitError{
			Code: ExitFailed,
			Err:  fmt.Errorf("loading config (reason %s): %w", harvest.Classify(err), err),
		}
	}
	if outputDir != "" {
		cfg.Harvest.OutputDir = outputDir
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return &ExitError{Code: ExitFailed, Err: err}
	}
	defer func() {
		if cerr := a.Close(); cerr != nil {
			log.Warn("closing components", "error", cerr)
		}
	}()

	report, runErr := a.pipeline.Run(ctx)
	if report == nil {
		return &ExitError{Code: ExitFailed, Err: runErr}
	}

	if err := writeReport(cmd.OutOrStdout(), report); err != nil {
		return &ExitError{Code: ExitFailed, Err: err}
	}
	if code := exitCode(report); code != ExitSuccess {
		return &ExitError{Code: code}
	}
	return nil
}

func writeReport(w io.Writer, report *domain.RunReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("writing run report: %w", err)
	}
	return nil
}

// exitCode maps a run outcome to the process exit status.
func exitCode(report *domain.RunReport) int {
	switch report.Status {
	case domain.OutcomeSuccess:
		return ExitSuccess
	case domain.OutcomePartial:
		return ExitPartial
	default:
		return ExitFailed
	}
}
