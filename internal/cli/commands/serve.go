package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/anyset/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the datasets over HTTP",
		Long: `Load every dataset in the datasets directory, connect their adapters and
serve the query API:

  POST /api/{prefix}/v{version}/query
  POST /api/{prefix}/v{version}/validate
  POST /api/{prefix}/v{version}/plan
  GET  /api/{prefix}/v{version}/filter-options
  GET  /api/{prefix}/v{version}/schema
  GET  /api/datasets
  GET  /healthz

With --watch, edited dataset documents are reloaded without a restart.`,
		Example: `  # Serve on the configured address
  anyset serve

  # Serve on all interfaces, reloading schemas on change
  anyset serve --host 0.0.0.0 --port 9000 --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	// Read through the config loader via their flag names.
	cmd.Flags().String("host", "", "Listen host (default: 127.0.0.1)")
	cmd.Flags().Int("port", 0, "Listen port (default: 8080)")
	cmd.Flags().Bool("watch", false, "Reload dataset schemas when their files change")
	cmd.Flags().Int("max-limit", 0, "Largest page size a request may ask for")
	cmd.Flags().Duration("timeout", 0, "Per-query execution timeout")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cc := NewCommandContext(cmd)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := cc.OpenCatalog(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = catalog.Close() }()

	if len(catalog.List()) == 0 {
		cc.Renderer.Warning("no datasets found in " + cc.Cfg.DatasetsDir)
	}

	watchDir := ""
	if cc.Cfg.Watch {
		watchDir = cc.Cfg.DatasetsDir
	}

	return server.New(catalog, cc.Cfg.Server, cc.Logger).Serve(ctx, watchDir)
}
