package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camarize/reconciler/internal/infrastructure/cache"
	"github.com/camarize/reconciler/internal/infrastructure/config"
	"github.com/camarize/reconciler/internal/infrastructure/logging"
	"github.com/camarize/reconciler/internal/infrastructure/metrics"
	"github.com/camarize/reconciler/internal/infrastructure/store"
	"github.com/camarize/reconciler/internal/services/catalog"
	"github.com/camarize/reconciler/internal/services/reconcile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const (
	defaultEnv      = "dev"
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	if err := run(env); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(env string) error {
	// Initialize configuration
	if err := config.InitConfig(env); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Reconcile.Interval <= 0 {
		return fmt.Errorf("RECONCILE_INTERVAL must be positive, got %s", cfg.Reconcile.Interval)
	}

	logger := logging.New(cfg.Log, os.Stderr)

	cat := catalog.Default()
	if path := cfg.Reconcile.CatalogPath; path != "" {
		if cat, err = catalog.Load(path); err != nil {
			return err
		}
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter(collector, registry)

	// Store and coordinator
	connector := store.NewPostgresConnector(cfg, cat, logger, collector, exporter)
	if c := connector.Cache(); c != nil {
		collector.SetCache(c)
	}
	coordinator, err := reconcile.NewCoordinator(connector, cat, reconcile.Options{
		Concurrency:  cfg.Reconcile.Concurrency,
		PageSize:     cfg.Reconcile.PageSize,
		CheckTimeout: cfg.Reconcile.CheckTimeout,
		DryRun:       cfg.Reconcile.DryRun,
	}, logger)
	if err != nil {
		return err
	}
	coordinator.SetRecorder(exporter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Cache invalidation follows deletes made by other writers
	var invalidator *cache.Invalidator
	if evicter := connector.Evicter(); evicter != nil {
		invalidator = cache.NewInvalidator(cfg.Database.ConnectionString(), evicter, logger)
		if err := invalidator.Start(ctx); err != nil {
			// Without notifications the cache can only expire by TTL
			logger.Warn("cache invalidation unavailable", "error", err)
			invalidator = nil
		}
	}

	// Create gRPC server
	healthServer := health.NewServer()
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(metrics.UnaryServerInterceptor(collector)))
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Register reflection service (for grpcurl, etc.)
	reflection.Register(grpcServer)

	// NOT_SERVING until the first run connects
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(healthService, healthpb.HealthCheckResponse_NOT_SERVING)

	grpcAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", "addr", grpcAddr)
		if err := grpcServer.Serve(listener); err != nil {
			serverErrors <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics server listening", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	d := &daemon{
		runner:   coordinator,
		health:   healthServer,
		failures: exporter,
		interval: cfg.Reconcile.Interval,
		logger:   logger,
	}
	loopDone := make(chan struct{})
	go func() {
		d.loop(ctx)
		close(loopDone)
	}()

	// Wait for shutdown signal or server error
	var serveErr error
	select {
	case serveErr = <-serverErrors:
		logger.Error("server failed, shutting down", "error", serveErr)
		stop()
	case <-ctx.Done():
		logger.Info("received shutdown signal, initiating graceful shutdown")
	}

	shutdown(logger, grpcServer, healthServer, metricsServer, invalidator, loopDone)
	return serveErr
}

func shutdown(
	logger *slog.Logger,
	grpcServer *grpc.Server,
	healthServer *health.Server,
	metricsServer *http.Server,
	invalidator *cache.Invalidator,
	loopDone <-chan struct{},
) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	healthServer.Shutdown()

	// The in-flight run observes the cancelled context and stops scheduling work
	select {
	case <-loopDone:
	case <-shutdownCtx.Done():
		logger.Warn("reconciliation run did not stop before the shutdown timeout")
	}

	if invalidator != nil {
		if err := invalidator.Stop(); err != nil {
			logger.Warn("error stopping cache invalidator", "error", err)
		}
	}

	// Channel to notify when graceful stop completes
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	// Wait for graceful stop or timeout
	select {
	case <-stopped:
		logger.Info("gRPC server stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing stop")
		grpcServer.Stop()
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping metrics server", "error", err)
	}

	logger.Info("shutdown complete")
}
