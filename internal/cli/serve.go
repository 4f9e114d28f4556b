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

	"github.com/spf13/cobra"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen string

	// Ready is called with the bound address once the edge accepts
	// connections (for testing).
	Ready func(addr string)
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}
	return newServeCommand(opts)
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the offline edge",
		Long: `Run the offline edge in front of the application origin.

On start the edge resumes an earlier install or installs the offline
manifest, activates, and replays any actions left queued. It then proxies
the application, answers from the cache while the origin is unreachable,
queues mutations, and replays them when connectivity returns.

Example:
  precedent-offline serve --config ./offline.yaml
  precedent-offline serve --db /var/lib/precedent/offline.db --listen :8787 --verbose`,
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
	e, err := opts.setup(cmd, false)
	if err != nil {
		return err
	}
	defer e.close()
	if opts.Listen != "" {
		e.cfg.Listen = opts.Listen
	}

	// Setup signal handling for graceful shutdown.
	// Use command's context if available (for testing), otherwise create one.
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			e.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	ed, err := e.edge(ctx)
	if err != nil {
		return err
	}
	if err := ed.Start(ctx); err != nil {
		// Keep serving: the proxy still works network-only.
		e.logger.Error("offline install failed", "error", err)
	}

	ln, err := net.Listen("tcp", e.cfg.Listen)
	if err != nil {
		return e.out.Fail(ExitCommandError, ErrCodeEdge, "failed to listen on "+e.cfg.Listen, err)
	}
	srv := &http.Server{
		Handler:           ed.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = ed.Run(ctx)
	}()

	addr := ln.Addr().String()
	e.logger.Info("edge serving",
		"addr", addr,
		"origin", e.cfg.Origin,
		"state", ed.Coordinator.State().String(),
		"durable", e.store != nil,
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s (%s)\n", e.cfg.Origin, addr, ed.Coordinator.State())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	if opts.Ready != nil {
		opts.Ready(addr)
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		e.logger.Error("http shutdown", "error", err)
	}
	<-runDone

	if serveErr != nil {
		return WrapExitError(ExitFailure, "edge server error", serveErr)
	}
	e.logger.Info("edge stopped gracefully")
	return nil
}
