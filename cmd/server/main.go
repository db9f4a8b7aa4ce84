package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/kevin07696/settlement-recon/internal/adapters/postgres"
	"github.com/kevin07696/settlement-recon/internal/app"
	"github.com/kevin07696/settlement-recon/internal/config"
	cronHandler "github.com/kevin07696/settlement-recon/internal/handlers/cron"
	opsHandler "github.com/kevin07696/settlement-recon/internal/handlers/ops"
	"github.com/kevin07696/settlement-recon/pkg/middleware"
	"github.com/kevin07696/settlement-recon/pkg/observability"
	"github.com/kevin07696/settlement-recon/pkg/resilience"
	"github.com/kevin07696/settlement-recon/pkg/shutdown"
)

const serviceName = "settlement-recon"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting settlement reconciliation service",
		zap.String("environment", cfg.Environment),
		zap.Int("http_port", cfg.Server.Port),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Service exited with error", zap.Error(err))
	}
	logger.Info("Servers stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}

	sm := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)
	sm.RegisterNoErr("storage", deps.Close)

	postgres.StartPoolMonitoring(ctx, deps.Pool, 30*time.Second, logger)

	if deps.MemoryDedup != nil {
		sweeper := shutdown.NewPeriodicWorker("dedup-sweeper", cfg.Dedup.SweepInterval, logger)
		sweeper.Start(func(context.Context) {
			if n := deps.MemoryDedup.Sweep(); n > 0 {
				logger.Debug("Swept expired dedup keys", zap.Int("evicted", n))
			}
		})
		sm.Register("dedup-sweeper", sweeper.Shutdown)
	}

	// Health checks and metrics
	pingers := map[string]observability.Pinger{"postgres": deps.Pool}
	if deps.Redis != nil {
		pingers["redis"] = observability.PingFunc(func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		})
	}
	readiness := &observability.Readiness{}
	metricsServer := observability.StartMetricsServer(
		fmt.Sprintf(":%d", cfg.Server.MetricsPort), observability.NewHealthChecker(pingers), readiness, logger)
	sm.Register("metrics-server", func(context.Context) error {
		return observability.ShutdownMetricsServer(metricsServer)
	})

	// gRPC health service for orchestrator probes
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.HealthPort))
	if err != nil {
		return fmt.Errorf("listen health port: %w", err)
	}
	go func() {
		logger.Info("gRPC health server listening", zap.String("address", listener.Addr().String()))
		if err := grpcServer.Serve(listener); err != nil {
			logger.Error("gRPC health server stopped", zap.Error(err))
		}
	}()
	sm.RegisterNoErr("grpc-health", grpcServer.GracefulStop)

	// HTTP API
	timeouts := resilience.DefaultTimeoutConfig()
	tracker := shutdown.NewInFlightTracker("cron", logger)
	rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger)
	sm.RegisterNoErr("rate-limiter", rateLimiter.Shutdown)

	if deps.CronSecret == "" {
		logger.Warn("CRON_SECRET not set; cron endpoints will reject every request")
	}
	if deps.WebhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET not set; bank-credit webhooks will be rejected")
	}

	ops := opsHandler.NewHandler(opsHandler.Config{
		Exceptions: deps.Exceptions,
		Settlement: deps.Settlement,
		Pipeline:   deps.Pipeline,
		Ingest:     deps.Ingest,
		Timeouts:   timeouts,
		Logger:     logger,
	})
	router := opsHandler.NewRouter(opsHandler.RouterConfig{
		Ops:      ops,
		Webhooks: opsHandler.NewWebhookHandler(ops, deps.WebhookSecret, logger),
		Cron: cronHandler.NewReconHandler(deps.Recon, deps.Settlement, deps.Exceptions,
			cronHandler.NewAuthenticator(deps.CronSecret, logger), tracker, timeouts, nil, logger),
		RateLimiter: rateLimiter,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info("HTTP server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", zap.Error(err))
			cancel()
		}
	}()
	sm.Register("http-server", httpServer.Shutdown)

	// Shutdown runs in reverse: readiness flips, then in-flight cron jobs
	// drain before the listeners and storage go away
	sm.Register("cron-jobs", tracker.Shutdown)
	sm.RegisterNoErr("readiness", func() {
		readiness.SetReady(false)
		healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	})

	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	readiness.SetReady(true)

	var failed []error
	for name, err := range sm.WaitForShutdown(ctx) {
		failed = append(failed, fmt.Errorf("%s: %w", name, err))
	}
	return errors.Join(failed...)
}
