package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrdf/internal/config"
	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
	"github.com/Aman-CERP/amanrdf/internal/index"
	"github.com/Aman-CERP/amanrdf/internal/metrics"
	"github.com/Aman-CERP/amanrdf/internal/partition"
	"github.com/Aman-CERP/amanrdf/internal/schema"
	"github.com/Aman-CERP/amanrdf/internal/store"
	"github.com/Aman-CERP/amanrdf/internal/summary"
	"github.com/Aman-CERP/amanrdf/internal/ui"
)

type indexFlags struct {
	data        string
	backend     string
	workers     int
	bulkSize    int
	extend      bool
	reset       bool
	summaryPath string
	metricsPath string
	plain       bool
	noColor     bool
}

func newIndexCmd() *cobra.Command {
	var f indexFlags

	cmd := &cobra.Command{
		Use:   "index [data-root]",
		Short: "Index every triple file under a data root",
		Long: `Index the triple files found under a data root.

Each child of each subfolder of the data root is one work unit. Work
units are processed concurrently by --workers workers, each with its own
bulk buffer. A buffer is flushed once it holds more than --bulk-size
documents for an index, so --bulk-size 3 writes batches of 4.

With extended indexing enabled the baseline pass also fills one property
index per configured field, and the extended pass runs after it.`,
		Example: `  # Index ./data with the project configuration
  amanrdf index

  # Rebuild every index from scratch and write a summary
  amanrdf index /srv/rdf --reset --summary summary.json

  # Use a legacy configuration file
  amanrdf index -c settings.tsv`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				f.data = args[0]
			}
			if err := applyIndexFlags(cmd, cfg, f); err != nil {
				return err
			}
			return runIndex(ctx, cmd, cfg, f)
		},
	}

	cmd.Flags().StringVar(&f.data, "data", "", "Data root (overrides indexing.data)")
	cmd.Flags().StringVar(&f.backend, "backend", "", "Backend: bleve, sqlite, memory or remote")
	cmd.Flags().IntVarP(&f.workers, "workers", "w", 0, "Concurrent work units (overrides indexing.workers)")
	cmd.Flags().IntVar(&f.bulkSize, "bulk-size", 0, "Flush an index buffer once it holds more than this many documents (overrides indexing.bulk_size)")
	cmd.Flags().BoolVar(&f.extend, "extend", false, "Enable property and extended indexing")
	cmd.Flags().BoolVar(&f.reset, "reset", false, "Delete the configured indices before indexing")
	cmd.Flags().StringVar(&f.summaryPath, "summary", "", "Write a JSON summary of the indices to this file")
	cmd.Flags().StringVar(&f.metricsPath, "metrics-file", "", "Write the run's Prometheus metrics to this file")
	cmd.Flags().BoolVar(&f.plain, "plain", false, "Plain text progress instead of the TUI")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable colors")

	return cmd
}

// applyIndexFlags overrides cfg with the flags that were set and
// validates the result again.
func applyIndexFlags(cmd *cobra.Command, cfg *config.Config, f indexFlags) error {
	if f.data != "" {
		cfg.Indexing.Data = f.data
	}
	if f.backend != "" {
		cfg.Backend.Kind = f.backend
	}
	if cmd.Flags().Changed("workers") {
		cfg.Indexing.Workers = f.workers
	}
	if cmd.Flags().Changed("bulk-size") {
		cfg.Indexing.BulkSize = f.bulkSize
	}
	if cmd.Flags().Changed("extend") {
		cfg.Indexing.Extended.Enabled = f.extend
	}
	if cfg.Indexing.Data == "" {
		return amerrors.ConfigError("no data root given", nil).
			WithSuggestion("pass it as an argument or set indexing.data")
	}
	return cfg.Validate()
}

// openStore opens the configured backend, reporting breaker transitions
// to m when m is set.
func openStore(cfg *config.Config, m *metrics.Metrics) (store.Store, error) {
	return store.Open(cfg, store.WithBreakerObserver(func(name string, from, to amerrors.State) {
		slog.Warn("backend_breaker_state_changed",
			slog.String("breaker", name),
			slog.String("from", from.String()),
			slog.String("to", to.String()))
		if m != nil {
			m.SetBreakerState(int(to))
		}
	}))
}

// prepareIndices creates every index cfg writes to, dropping them first
// when reset is set.
func prepareIndices(ctx context.Context, st store.Store, set schema.Set, reset bool) error {
	all := set.All()
	if reset {
		for _, sc := range all {
			if err := st.DeleteIndex(ctx, sc.Index); err != nil {
				return amerrors.BackendError(fmt.Sprintf("cannot delete index %s", sc.Index), err)
			}
			slog.Info("index_reset", slog.String("index", sc.Index))
		}
	}
	for _, sc := range all {
		if err := st.CreateIndex(ctx, sc); err != nil {
			return amerrors.BackendError(fmt.Sprintf("cannot create index %s", sc.Index), err)
		}
	}
	return nil
}

func runIndex(ctx context.Context, cmd *cobra.Command, cfg *config.Config, f indexFlags) error {
	ix := cfg.Indexing
	if !ix.Base.Enabled && !ix.Extended.Enabled {
		return amerrors.ConfigError("nothing to index: base and extended indexing are both disabled", nil)
	}

	m := metrics.New()
	st, err := openStore(cfg, m)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	set := schema.FromConfig(cfg)
	if err := prepareIndices(ctx, st, set, f.reset); err != nil {
		return err
	}

	units, err := partition.Partition(ix.Data, ix.Patterns)
	if err != nil {
		return amerrors.IOError(fmt.Sprintf("cannot partition %s", ix.Data), err)
	}
	slog.Info("index_started",
		slog.String("data", ix.Data),
		slog.Int("work_units", len(units)),
		slog.String("backend", cfg.Backend.Kind),
		slog.Int("workers", ix.Workers),
		slog.Int("bulk_size", ix.BulkSize))

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(f.plain),
		ui.WithNoColor(f.noColor || ui.DetectNoColor()),
		ui.WithTitle(ix.Data),
	))
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start renderer: %w", err)
	}
	defer func() { _ = renderer.Stop() }()

	runner, err := index.NewRunner(index.OptionsFromConfig(cfg), index.Dependencies{
		Backend:  st,
		Searcher: st,
		Renderer: renderer,
		Metrics:  m,
	})
	if err != nil {
		return err
	}

	total := &index.Result{Documents: make(map[string]int)}
	res, err := runner.RunBaseline(ctx, units)
	total.Merge(res)
	if err == nil && ix.Extended.Enabled {
		res, err = runner.RunExtended(ctx, units)
		total.Merge(res)
	}
	renderer.Complete(total.CompletionStats())
	logMetrics(m)
	if err != nil {
		return err
	}

	if f.metricsPath != "" {
		if err := m.WriteTextfile(f.metricsPath); err != nil {
			return amerrors.IOError("cannot write metrics", err)
		}
		slog.Info("metrics_written", slog.String("path", f.metricsPath))
	}

	if f.summaryPath != "" {
		s, err := summary.Build(ctx, cfg, st)
		if err != nil {
			return err
		}
		if err := summary.Write(f.summaryPath, s); err != nil {
			return amerrors.IOError("cannot write summary", err)
		}
		slog.Info("summary_written", slog.String("path", f.summaryPath))
	}
	return nil
}

// logMetrics records the run's collectors as one log event.
func logMetrics(m *metrics.Metrics) {
	samples, err := m.Snapshot()
	if err != nil {
		slog.Warn("metrics_snapshot_failed", slog.String("error", err.Error()))
		return
	}
	attrs := make([]any, 0, len(samples))
	for _, s := range samples {
		attrs = append(attrs, slog.Float64(s.Name, s.Value))
	}
	slog.Info("index_metrics", attrs...)
}
