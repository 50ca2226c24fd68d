package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrdf/internal/config"
	amerrors "github.com/Aman-CERP/amanrdf/internal/errors"
	"github.com/Aman-CERP/amanrdf/internal/metrics"
	"github.com/Aman-CERP/amanrdf/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr        string
		backend     string
		maxBodySize int64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a local backend over HTTP",
		Long: `Expose a local backend as the bulk-write service used by the remote
backend of 'amanrdf index'.

Routes:
  GET    /health
  GET    /metrics
  GET    /indices
  PUT    /indices/:index
  HEAD   /indices/:index
  DELETE /indices/:index
  POST   /indices/:index/_bulk
  GET    /indices/:index/_count
  GET    /indices/:index/_lookup?field=&value=&limit=
  GET    /indices/:index/_search?q=&limit=`,
		Example: `  # Serve the default bleve store on 127.0.0.1:7701
  amanrdf serve

  # Serve a SQLite store on all interfaces
  amanrdf serve --backend sqlite --addr :7701`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if backend != "" {
				cfg.Backend.Kind = backend
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if cfg.Backend.Kind == config.BackendRemote {
				return amerrors.ConfigError("serve needs a local backend", nil).
					WithSuggestion("use --backend bleve, sqlite or memory")
			}

			if !debugMode {
				gin.SetMode(gin.ReleaseMode)
			}
			m := metrics.New()
			st, err := openStore(cfg, m)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			var opts []server.Option
			if maxBodySize > 0 {
				opts = append(opts, server.WithMaxBodyBytes(maxBodySize))
			}
			srv := server.New(st, m, opts...)

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving %s backend at %s on http://%s\n",
				cfg.Backend.Kind, st.Location(), cfg.Server.Addr)
			return srv.Run(ctx, cfg.Server.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().StringVar(&backend, "backend", "", "Backend: bleve, sqlite or memory")
	cmd.Flags().Int64Var(&maxBodySize, "max-body-bytes", 0, "Largest accepted request body (0 keeps the default)")

	return cmd
}
