package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgedesk/scanforge/internal/api"
	"github.com/edgedesk/scanforge/internal/codegen"
	"github.com/edgedesk/scanforge/internal/config"
	"github.com/edgedesk/scanforge/internal/detect"
	"github.com/edgedesk/scanforge/internal/engine"
	"github.com/edgedesk/scanforge/internal/maintenance"
	"github.com/edgedesk/scanforge/internal/metrics"
	"github.com/edgedesk/scanforge/internal/registry"
	"github.com/edgedesk/scanforge/internal/repo"
	"github.com/edgedesk/scanforge/internal/services"
	"github.com/edgedesk/scanforge/internal/store"
	"github.com/edgedesk/scanforge/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting scanforge", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	provider := newStoreProvider(cfg.Store, logger)
	defer provider.Close()

	library, err := detect.LoadPatternPack(cfg.Detection.PatternsPath, logger)
	if err != nil {
		logger.Error("failed to load pattern pack", slog.Any("error", err))
		os.Exit(1)
	}
	detector := detect.NewDetector(logger, library, detect.Options{
		MinConfidence:  cfg.Detection.MinConfidence,
		TermOverlap:    cfg.Detection.TermOverlap,
		MinTermMatches: cfg.Detection.MinTermMatches,
	})

	executionClient := repo.NewExecutionClient(
		cfg.Clients.Execution.BaseURL,
		cfg.Clients.Execution.ExecutePath,
		cfg.Clients.Execution.StatusPath,
		cfg.Clients.Execution.CancelPath,
		cfg.Clients.Execution.Timeout,
	)

	var aiClient engine.CodeFormatter
	if cfg.Clients.AI.BaseURL != "" {
		aiClient = repo.NewAIClient(
			cfg.Clients.AI.BaseURL,
			cfg.Clients.AI.Model,
			cfg.Clients.AI.APIKey,
			cfg.Clients.AI.Timeout,
		)
	}

	pipeline := engine.NewPipeline(logger, detector, codegen.NewGenerator(), aiClient)

	adviceEngine, err := engine.NewAdviceEngine(cfg.Advice.Path, logger)
	if err != nil {
		logger.Error("failed to load advice pack", slog.Any("error", err))
		os.Exit(1)
	}

	params := registry.NewParameterRegistry(logger, provider)
	columns := registry.NewColumnRegistry(logger, provider)
	sessions := registry.NewSessionRegistry(logger, provider)

	loadCtx, loadCancel := context.WithTimeout(context.Background(), 10*time.Second)
	for name, load := range map[string]func(context.Context) error{
		"parameters": params.Load,
		"columns":    columns.Load,
		"sessions":   sessions.Load,
	} {
		if err := load(loadCtx); err != nil {
			logger.Warn("registry load failed", slog.String("registry", name), slog.Any("error", err))
		}
	}
	loadCancel()

	scannerService := services.NewScannerService(
		logger,
		pipeline,
		executionClient,
		executionClient,
		engine.TrackerOptions{
			PollInterval: cfg.Polling.Interval,
			MaxInterval:  cfg.Polling.MaxInterval,
			WallClock:    cfg.Polling.WallClockTimeout,
		},
		params,
		columns,
		sessions,
	)
	defer scannerService.Close()

	scheduler := maintenance.NewScheduler(logger, cfg.Cleanup, params, columns, sessions)
	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start maintenance scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	handler := api.NewHandler(logger, scannerService, adviceEngine)
	server, err := api.NewServer(cfg.Server, handler.Router())
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.GracefulTimeout())
	defer cancel()
	server.Shutdown(shutdownCtx)
	scheduler.Stop(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("scanforge stopped")
}

// newStoreProvider selects the registry persistence backend, falling back to
// memory with a warning when the configured backend is unavailable.
func newStoreProvider(cfg config.StoreConfig, logger *slog.Logger) store.Provider {
	switch cfg.Backend {
	case "", "memory":
		return store.NewMemoryProvider()
	case "file":
		provider, err := store.NewFileProvider(cfg.Path)
		if err != nil {
			logger.Warn("file store unavailable, using memory", slog.String("path", cfg.Path), slog.Any("error", err))
			return store.NewMemoryProvider()
		}
		return provider
	case "redis":
		provider, err := store.NewRedisProvider(store.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("redis store unavailable, using memory", slog.String("addr", cfg.Redis.Addr), slog.Any("error", err))
			return store.NewMemoryProvider()
		}
		return provider
	default:
		logger.Warn("unknown store backend, using memory", slog.String("backend", cfg.Backend))
		return store.NewMemoryProvider()
	}
}
