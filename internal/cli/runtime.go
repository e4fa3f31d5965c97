package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/nbhd/internal/config"
	"github.com/roach88/nbhd/internal/engine"
	"github.com/roach88/nbhd/internal/store"
	"github.com/roach88/nbhd/internal/telemetry"
)

// runtime is the composition root shared by commands that drive the engine.
type runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	store       *store.Store
	registry    *prometheus.Registry
	engine      *engine.Engine
	stopTracing func(context.Context) error

	done chan error
}

// loadConfig reads the environment and lets a non-empty --db override it.
func loadConfig(db string) (config.Config, error) {
	cfg, err := config.Load(config.WithDBPath(db))
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func openStore(cfg config.Config, logger *slog.Logger) (*store.Store, error) {
	logger.Debug("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// newRuntime wires config, logging, tracing, the store, and an engine with
// its own metrics registry.
func newRuntime(ctx context.Context, cmd *cobra.Command, opts *RootOptions, db string) (*runtime, error) {
	cfg, err := loadConfig(db)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	stopTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		ServiceName: "nbhd",
		Endpoint:    cfg.OTELEndpoint,
		Enabled:     cfg.OTELEnabled,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		_ = stopTracing(ctx)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	eng := engine.New(st,
		engine.WithLogger(logger),
		engine.WithMetrics(telemetry.NewMetrics(reg)),
		engine.WithMaxRetries(cfg.MaxRetries),
		engine.WithSafetyTimeout(cfg.SafetyTimeout),
		engine.WithBackoff(cfg.BackoffInitial, cfg.BackoffMax),
	)

	return &runtime{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		registry:    reg,
		engine:      eng,
		stopTracing: stopTracing,
	}, nil
}

// start runs the engine loop in the background until ctx ends or shutdown.
func (r *runtime) start(ctx context.Context) {
	r.done = make(chan error, 1)
	go func() {
		r.done <- r.engine.Run(ctx)
	}()
}

// shutdown stops the engine, waits for its loop, and releases the store and
// tracer provider.
func (r *runtime) shutdown(ctx context.Context) error {
	r.engine.Stop()

	var errs []error
	if r.done != nil {
		if err := <-r.done; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			errs = append(errs, err)
		}
	}
	if err := r.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := r.stopTracing(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
