package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrdf/internal/logging"
	"github.com/Aman-CERP/amanrdf/internal/ui"
)

func newLogsCmd() *cobra.Command {
	var (
		follow  bool
		lines   int
		level   string
		filter  string
		noColor bool
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View amanrdf logs",
		Long: `Show the last lines of the amanrdf log file, or follow it with -f.

The default file is ~/.amanrdf/logs/amanrdf.log; logging.file in the
configuration or --file point elsewhere.`,
		Example: `  # Last 50 records
  amanrdf logs

  # Follow dispatch failures during a run
  amanrdf logs -f --filter bulk_dispatch_failed

  # Only warnings and errors
  amanrdf logs --level warn`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if logFile == "" {
				if cfg, err := loadConfig(); err == nil {
					logFile = cfg.Logging.File
				}
			}
			path, err := logging.FindLogFile(logFile)
			if err != nil {
				return err
			}

			var pattern *regexp.Regexp
			if filter != "" {
				if pattern, err = regexp.Compile(filter); err != nil {
					return fmt.Errorf("invalid filter pattern: %w", err)
				}
			}

			viewer := logging.NewViewer(logging.ViewerConfig{
				Level:   level,
				Pattern: pattern,
				NoColor: noColor || ui.DetectNoColor(),
			}, cmd.OutOrStdout())
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Log file: %s\n---\n", path)

			if !follow {
				entries, err := viewer.Tail(path, lines)
				if err != nil {
					return err
				}
				viewer.Print(entries)
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			entries := make(chan logging.Entry, 100)
			errCh := make(chan error, 1)
			go func() { errCh <- viewer.Follow(ctx, path, entries) }()
			for {
				select {
				case e := <-entries:
					viewer.Print([]logging.Entry{e})
				case err := <-errCh:
					return err
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&level, "level", "", "Filter by log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&filter, "filter", "", "Filter by pattern (regex)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&logFile, "file", "", "Path to log file")

	return cmd
}
