package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrdf/internal/config"
	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
	"github.com/Aman-CERP/amanrdf/internal/schema"
	"github.com/Aman-CERP/amanrdf/internal/store"
	"github.com/Aman-CERP/amanrdf/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var (
		jsonOutput bool
		noColor    bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show backend health and index document counts",
		Long: `Display the configured backend and, for every index the configuration
writes to, whether it exists and how many documents it holds.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := openStore(cfg, nil)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			info := collectStatus(cmd.Context(), cfg, st)
			r := ui.NewStatusRenderer(cmd.OutOrStdout(), noColor || ui.DetectNoColor())
			if jsonOutput {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colors")

	return cmd
}

// breakerReporter is implemented by backends guarded by a circuit breaker.
type breakerReporter interface {
	BreakerState() amerrors.State
}

func collectStatus(ctx context.Context, cfg *config.Config, st store.Store) ui.StatusInfo {
	info := ui.StatusInfo{
		Backend:     cfg.Backend.Kind,
		Location:    st.Location(),
		Health:      healthLabel(st.Health(ctx)),
		StorageSize: store.StorageSize(store.DataPath(cfg)),
		Indices:     []ui.IndexStatus{},
	}
	if b, ok := st.(breakerReporter); ok {
		info.Breaker = b.BreakerState().String()
	}
	if info.Health != "ready" {
		return info
	}

	for _, sc := range schema.FromConfig(cfg).All() {
		ix := ui.IndexStatus{Name: sc.Index, Role: string(sc.Role)}
		exists, err := st.Exists(ctx, sc.Index)
		if err == nil && exists {
			ix.Exists = true
			if n, err := st.Count(ctx, sc.Index); err == nil {
				ix.Documents = n
			}
		}
		info.Indices = append(info.Indices, ix)
	}
	return info
}

// healthLabel maps a health probe result to "ready", "offline" or "error".
func healthLabel(err error) string {
	switch {
	case err == nil:
		return "ready"
	case errors.Is(err, amerrors.ErrCircuitOpen), amerrors.IsRetryable(err):
		return "offline"
	default:
		return "error"
	}
}
