package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quotes-api/internal/adapters/http"
	"github.com/jsamuelsen/quotes-api/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotes-api/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotes-api/internal/adapters/storage"
	"github.com/jsamuelsen/quotes-api/internal/app"
	"github.com/jsamuelsen/quotes-api/internal/platform/config"
	"github.com/jsamuelsen/quotes-api/internal/platform/logging"
	"github.com/jsamuelsen/quotes-api/internal/platform/telemetry"
	"github.com/jsamuelsen/quotes-api/internal/ports"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (same as running with no subcommand)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *globalOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	return serve(ctx, cfg, nil)
}

// loadConfig loads and validates the profile (fail fast).
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadFrom(opts.configDir, opts.profile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// serve runs the service until ctx is done or the server fails. When ready
// is set it is called with the base URL once the listener is bound.
func serve(ctx context.Context, cfg *config.Config, ready func(baseURL string)) error {
	// 1. Logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 2. Telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
		StoreDriver:  cfg.Store.Driver,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := telProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", err))
		}
	}()

	// 3. Quote store
	repo, err := storage.Open(&cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("initializing quote store: %w", err)
	}

	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("quote store close error", slog.Any("error", err))
		}
	}()

	// 4. Seed
	if err := seedStore(ctx, cfg.Seed, repo, logger); err != nil {
		return err
	}

	// 5. Health and metrics
	healthRegistry := ports.NewHealthRegistry()
	if err := healthRegistry.Register(repo); err != nil {
		return fmt.Errorf("registering store health check: %w", err)
	}

	logger.Debug("readiness checks registered", slog.Int("count", healthRegistry.Len()))

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := telemetry.RegisterQuoteGauge(metrics, repo.Count); err != nil {
		return fmt.Errorf("registering quote gauge: %w", err)
	}

	// 6. Application layer and handlers
	quoteService := app.NewQuoteService(app.QuoteServiceConfig{
		Repository: repo,
		Logger:     logger,
	})

	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)

	routerCfg := http.RouterConfig{
		Logger:        logger,
		ServiceName:   cfg.Telemetry.ServiceName,
		HealthHandler: handlers.NewHealthHandler(healthRegistry, buildInfo, handlers.WithGatherer(metrics)),
		QuoteHandler:  handlers.NewQuoteHandler(quoteService),
		Timeout:       cfg.Server.RequestTimeout,
	}

	if cfg.Docs.Enabled {
		routerCfg.DocsHandler = handlers.NewDocsHandler(cfg.Docs.Path)
	}

	if cfg.RateLimit.Enabled {
		routerCfg.RateLimit = &middleware.RateLimitConfig{
			RPS:   cfg.RateLimit.RPS,
			Burst: cfg.RateLimit.Burst,
		}
	}

	// 7. HTTP server
	server := http.New(&cfg.Server, logger)
	http.SetupRouter(server.Engine(), routerCfg)

	serverErr, err := server.Start()
	if err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	logger.Info("quotes API ready", slog.String("base_url", server.BaseURL()))

	if ready != nil {
		ready(server.BaseURL())
	}

	// 8. Wait for shutdown
	select {
	case err, ok := <-serverErr:
		if ok && err != nil {
			return fmt.Errorf("server error: %w", err)
		}

		return nil

	case <-ctx.Done():
		logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown", slog.Duration("timeout", cfg.Server.ShutdownTimeout))

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")

	return nil
}

// seedStore loads the configured seed set into an empty store.
func seedStore(ctx context.Context, cfg config.SeedConfig, repo ports.QuoteRepository, logger *slog.Logger) error {
	if !cfg.Enabled {
		return nil
	}

	quotes := app.DefaultSeed()

	if cfg.File != "" {
		var err error

		quotes, err = app.LoadSeedFile(cfg.File)
		if err != nil {
			return fmt.Errorf("loading seed file: %w", err)
		}
	}

	if _, err := app.Seed(ctx, repo, quotes, logger); err != nil {
		return fmt.Errorf("seeding quote store: %w", err)
	}

	return nil
}
