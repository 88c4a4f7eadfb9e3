package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP",
		Long: `Run the engine's single-writer loop behind an HTTP API. Messages from
concurrent requests are applied one at a time; queries see committed
state only.

Endpoints:
  POST /v1/call                          execute a message
  POST /v1/query                         run a message and discard its effects
  GET  /v1/modules                       list catalog modules
  GET  /v1/diamonds/{address}/facets     loupe facets()
  GET  /v1/diamonds/{address}/log        audit log (event, after, limit)
  GET  /metrics                          Prometheus metrics
  GET  /healthz                          liveness

Examples:
  diamond serve
  diamond serve --listen :8545 --db ./diamond.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions, cmd *cobra.Command) error {
	metrics := engine.NewMetrics("diamond")
	e, err := openEnv(ctx, opts.RootOptions, cmd, engine.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer e.Close()

	addr := opts.Config.Listen
	if opts.Listen != "" {
		addr = opts.Listen
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- e.engine.Run(ctx) }()

	srv := server.New(e.engine,
		server.WithLogger(e.logger),
		server.WithCatalog(e.catalog),
		server.WithGatherer(metrics.Registry()),
	)
	e.logger.Info("serving", "addr", addr, "db", opts.Config.DBPath)
	serveErr := srv.ListenAndServe(ctx, addr, opts.Config.ShutdownTimeout)

	e.engine.Stop()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Error("engine loop failed", "error", err)
	}
	if serveErr != nil {
		return WrapExitError(ExitCommandError, "server failed", serveErr)
	}
	return nil
}
