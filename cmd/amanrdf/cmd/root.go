// Package cmd provides the CLI commands for amanrdf.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrdf/internal/config"
	"github.com/Aman-CERP/amanrdf/internal/logging"
	"github.com/Aman-CERP/amanrdf/internal/profiling"
	"github.com/Aman-CERP/amanrdf/pkg/version"
)

// Persistent flags
var (
	configPath  string
	debugMode   bool
	profileOpts profiling.Options
)

var (
	profileSession *profiling.Session
	loggingCleanup func()
)

// NewRootCmd creates the root command for the amanrdf CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amanrdf",
		Short: "Parse RDF triple files and bulk-index them",
		Long: `amanrdf reads N-Triples and Turtle-like triple files, line by line,
and bulk-indexes every triple into a search backend.

The baseline pass writes one document per triple to the base index and
one document per configured field to that field's property index. The
extended pass then writes one enriched document per triple, pulling
human-readable labels from the property indices.

Backends: embedded bleve (default), SQLite FTS5, in-memory, or a remote
'amanrdf serve' instance.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("amanrdf version {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Config file (YAML, or legacy tab-separated .tsv/.conf/.config)")
	pf.BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.amanrdf/logs/")
	pf.StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	pf.StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	pf.StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = func(*cobra.Command, []string) error {
		return shutdown()
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfiling(_ *cobra.Command, _ []string) error {
	if !profileOpts.Enabled() {
		return nil
	}
	s, err := profiling.Start(profileOpts)
	if err != nil {
		return err
	}
	profileSession = s
	return nil
}

// shutdown stops profiling and closes the log file. It runs after every
// command, failed ones included.
func shutdown() error {
	var err error
	if profileSession != nil {
		err = profileSession.Stop()
		profileSession = nil
	}
	if loggingCleanup != nil {
		slog.Debug("logging_stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command.
func Execute() error {
	err := NewRootCmd().Execute()
	if stopErr := shutdown(); err == nil {
		err = stopErr
	}
	return err
}

// loadConfig loads the effective configuration for the working directory
// and sets up logging from it.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Load(configPath, cwd)
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the JSON file logger once per process. --debug
// raises the level to debug.
func setupLogging(cfg *config.Config) error {
	if loggingCleanup != nil {
		return nil
	}

	lc := logging.DefaultConfig()
	lc.Level = cfg.Logging.Level
	if cfg.Logging.File != "" {
		lc.FilePath = cfg.Logging.File
	}
	if cfg.Logging.MaxSizeMB > 0 {
		lc.MaxSizeMB = cfg.Logging.MaxSizeMB
	}
	if cfg.Logging.MaxFiles > 0 {
		lc.MaxFiles = cfg.Logging.MaxFiles
	}
	if debugMode {
		lc.Level = "debug"
	}

	cleanup, err := logging.SetupDefault(lc)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Debug("logging_started",
		slog.String("log_file", lc.FilePath),
		slog.String("version", version.Version))
	return nil
}
