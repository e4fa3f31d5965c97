package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/nbhd/internal/community"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Database    string
	Actor       string
	MetricsAddr string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the engine and print every state change",
		Long: `Run the resolution engine for one actor until interrupted.

Every published state is printed as one line (text) or one JSON object per
line (json). SIGHUP requests a refresh with a fresh retry budget;
SIGINT and SIGTERM stop the engine.

With --metrics-addr the engine's Prometheus metrics are served on /metrics.

Example:
  nbhd watch --db ./nbhd.db --actor u1
  nbhd watch --db ./nbhd.db --actor u1 --metrics-addr 127.0.0.1:9464`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $NBHD_DB or nbhd.db)")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "signed-in actor ID (required)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	f := newFormatter(cmd, opts.RootOptions)

	actor := community.NormalizeActor(community.ActorID(opts.Actor))
	if actor.SignedOut() {
		return f.Fail(CodeConfig, NewExitError(ExitCommandError, "--actor must not be empty"))
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := newRuntime(ctx, cmd, opts.RootOptions, opts.Database)
	if err != nil {
		return f.Fail(CodeConfig, err)
	}
	defer func() {
		if err := rt.shutdown(context.WithoutCancel(ctx)); err != nil {
			rt.logger.Error("shutdown failed", "error", err)
		}
	}()

	if opts.MetricsAddr != "" {
		rt.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		stop, addr, err := serveMetrics(opts.MetricsAddr, rt.registry, rt.logger)
		if err != nil {
			return f.Fail(CodeConfig, WrapExitError(ExitCommandError, "failed to serve metrics", err))
		}
		defer stop()
		rt.logger.Info("serving metrics", "addr", addr)
	}

	acc := rt.engine.Accessor()
	updates, unsubscribe := acc.Subscribe(64)
	defer unsubscribe()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	rt.start(ctx)
	rt.engine.SetActor(actor)

	emit := newStatePrinter(f)
	for {
		select {
		case <-ctx.Done():
			return nil

		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				rt.logger.Info("received SIGHUP, refreshing")
				acc.Refresh()
				continue
			}
			rt.logger.Info("received signal, shutting down", "signal", sig)
			return nil

		case s, ok := <-updates:
			if !ok {
				return nil
			}
			if err := emit(newResolutionView(actor, s, nil)); err != nil {
				return err
			}

		case n := <-acc.Notices():
			if err := emit(newResolutionView(actor, acc.Snapshot(), &n)); err != nil {
				return err
			}
		}
	}
}

// newStatePrinter writes one line per view: NDJSON in json mode.
func newStatePrinter(f *OutputFormatter) func(resolutionView) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		return func(v resolutionView) error { return enc.Encode(v) }
	}
	return func(v resolutionView) error {
		_, err := fmt.Fprintln(f.Writer, v.line())
		return err
	}
}

// metricsHandler serves reg in the Prometheus exposition format.
func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

// serveMetrics listens on addr and serves metricsHandler in the background.
// It returns a stop func and the bound address.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", err
	}
	srv := &http.Server{
		Handler:           metricsHandler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return stop, ln.Addr().String(), nil
}
