package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/starrybamboo/chatsync/internal/remote"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr     string // overrides server.addr
	Database string // overrides server.db_path
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the snapshot service",
		Long: `Serve document snapshots over HTTP from a SQLite database.

This is the remote that "remote.kind: http" clients talk to:
  GET  /snapshots/{doc}
  PUT  /snapshots/{doc}
  GET  /healthz
  GET  /metrics

Example:
  chatsync serve --addr 127.0.0.1:8787 --db ./snapshots.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite snapshot database (default from config)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	logger := opts.logger()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	dbPath := cfg.Server.DBPath
	if opts.Database != "" {
		dbPath = opts.Database
	}

	logger.Info("opening database", "path", dbPath)
	st, err := openStore(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	srv := &http.Server{
		Handler:           remote.NewServer(st, remote.ServerOptions{Logger: logger, Gatherer: reg}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	logger.Info("snapshot service listening", "addr", ln.Addr().String())
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", ln.Addr())

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	logger.Info("stopped gracefully")
	return nil
}
