package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
	"github.com/Aman-CERP/amanrdf/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment before indexing",
		Long: `Run diagnostics for the effective configuration.

Checks:
  - Data root exists and holds triple files
  - Disk space and write permissions at the backend path (local backends)
  - File descriptor limit for the configured number of workers
  - Backend health

Use --verbose for detailed diagnostic information.
Use --json for machine-readable output.`,
		Example: `  # Run diagnostics
  amanrdf doctor

  # JSON output for scripting
  amanrdf doctor --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			opts := []preflight.Option{
				preflight.WithVerbose(verbose),
				preflight.WithOutput(cmd.OutOrStdout()),
			}
			st, openErr := openStore(cfg, nil)
			if openErr == nil {
				defer func() { _ = st.Close() }()
				opts = append(opts, preflight.WithHealth(st.Health))
			} else {
				opts = append(opts, preflight.WithHealth(func(context.Context) error { return openErr }))
			}
			checker := preflight.New(opts...)
			results := checker.RunAll(ctx, cfg)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(doctorReport{Status: checker.SummaryStatus(results), Checks: results}); err != nil {
					return err
				}
			} else {
				checker.PrintResults(results)
			}

			if checker.HasCriticalFailures(results) {
				return amerrors.New(amerrors.ErrCodePreflightFailed, "system check failed", nil).
					WithSuggestion("run 'amanrdf doctor --verbose' for details")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// doctorReport is the --json output of doctor.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}
