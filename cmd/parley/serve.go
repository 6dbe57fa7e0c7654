package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/config"
	httpAdapter "github.com/aretw0/parley/pkg/adapters/http"
	"github.com/aretw0/parley/pkg/observability"
	"github.com/aretw0/parley/pkg/session"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Host dialogue sessions over HTTP",
	Long: `Starts the session server: a JSON API (documented at /openapi.yaml and /swagger),
Server-Sent Events for session changes and Prometheus metrics at /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if f := cmd.Flags().Lookup("validate-requests"); f.Changed {
			cfg.ValidateRequests, _ = cmd.Flags().GetBool("validate-requests")
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Address to listen on (default :8080)")
	serveCmd.Flags().String("graphs", "", "Graph file or directory to serve (default .)")
	serveCmd.Flags().Bool("validate-requests", true, "Validate requests against the OpenAPI document")
}

// services wires the session stack shared by serve and mcp.
type services struct {
	engine  *parley.Engine
	manager *session.Manager
	metrics *observability.Metrics
	streams *httpAdapter.StreamManager
	close   func() error
}

func newServices(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*services, error) {
	metrics := observability.NewMetrics()
	hooks := metrics.Hooks().Merge(observability.LoggingHooks(logger))

	engOpts := []parley.Option{
		parley.WithLogger(logger),
		parley.WithLifecycleHooks(hooks),
		parley.WithStepLimit(cfg.StepLimit),
	}
	if cfg.StrictGraphs {
		engOpts = append(engOpts, parley.WithStrictValidation())
	}
	eng, err := parley.New(cfg.Graphs, engOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing parley: %w", err)
	}

	backend, err := cfg.OpenStore(ctx)
	if err != nil {
		return nil, err
	}

	streams := httpAdapter.NewStreamManager(logger)
	mgrOpts := []session.Option{
		session.WithLogger(logger),
		session.WithInterpreterOptions(eng.InterpreterOptions()...),
		session.WithChangeListener(streams.Publish),
		session.WithStartListener(metrics.SessionStarted),
	}
	if backend.Locker != nil {
		mgrOpts = append(mgrOpts, session.WithLocker(backend.Locker))
	}

	return &services{
		engine:  eng,
		manager: session.NewManager(backend.Store, eng.Loader(), mgrOpts...),
		metrics: metrics,
		streams: streams,
		close:   backend.Close,
	}, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := newServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	opts := []httpAdapter.Option{
		httpAdapter.WithLogger(logger),
		httpAdapter.WithMetrics(svc.metrics),
		httpAdapter.WithStreams(svc.streams),
	}
	if cfg.ValidateRequests {
		opts = append(opts, httpAdapter.WithRequestValidation())
	}
	handler, err := httpAdapter.NewHandler(svc.manager, svc.engine.Loader(), opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting parley server", "addr", srv.Addr, "graphs", cfg.Graphs, "store", cfg.Store)
		serverErrors <- srv.ListenAndServe()
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		logger.Info("shutting down", "timeout", shutdownTimeout)

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("could not stop server: %w", err)
			}
		}
		logger.Info("parley server stopped gracefully")
		return nil
	}
}
