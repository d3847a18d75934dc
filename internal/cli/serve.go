package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/taskq/internal/api"
	"github.com/roach88/taskq/internal/expiry"
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
		Short: "Run the queue HTTP service",
		Long: `Run the queue HTTP service.

Serves PUT and GET /api/queue/v1/task/{taskId} against the configured store
and, when expiry.schedule is set, removes expired definitions on that
schedule.

Example:
  taskq serve --config taskq.yaml
  TASKQ_STORE_DRIVER=sqlite3 TASKQ_STORE_DSN=./tasks.db taskq serve`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	e, err := openEnv(ctx, opts.RootOptions, f)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := e.Close(); closeErr != nil {
			e.logger.Error("error closing store", "error", closeErr)
		}
	}()

	listen := e.cfg.Listen
	if opts.Listen != "" {
		listen = opts.Listen
	}

	var sweeper *expiry.Sweeper
	if e.cfg.Expiry.Schedule != "" {
		sweeper, err = expiry.New(e.store, e.cfg.Expiry.Schedule, e.logger.GetLogger("expiry"))
		if err != nil {
			return f.failWith(ErrCodeConfig, "invalid expiry schedule", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			e.logger.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	if sweeper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sweeper.Run(ctx)
		}()
	}

	handler := api.NewHandler(e.service, e.clients, e.logger.GetLogger("http")).Routes()
	srv := api.NewServer(listen, handler, e.cfg.ShutdownTimeout, e.logger.GetLogger("server"))

	e.logger.Info("taskq starting",
		"listen", listen,
		"store", e.cfg.Store.Driver,
		"auth", e.cfg.Auth.Enabled,
		"expiry", e.cfg.Expiry.Schedule,
	)
	f.VerboseLog("listening on %s", listen)

	serveErr := srv.Run(ctx)
	cancel()
	wg.Wait()

	if serveErr != nil {
		return f.failWith(ErrCodeGeneric, fmt.Sprintf("server on %s failed", listen), serveErr)
	}
	e.logger.Info("taskq stopped gracefully")
	return nil
}
