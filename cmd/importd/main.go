package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerline/importd/internal/config"
	"github.com/ledgerline/importd/internal/handler"
	"github.com/ledgerline/importd/internal/infra/memory"
	"github.com/ledgerline/importd/internal/infra/observability"
	"github.com/ledgerline/importd/internal/infra/postgres"
	redisinfra "github.com/ledgerline/importd/internal/infra/redis"
	"github.com/ledgerline/importd/internal/infra/resilience"
	"github.com/ledgerline/importd/internal/port"
	"github.com/ledgerline/importd/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("redis_configured", cfg.RedisURL != ""),
		zap.Bool("postgres_configured", cfg.DatabaseURL != ""),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Duration("batch_delay", cfg.BatchDelay),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("retry_delay", cfg.RetryDelay),
		zap.Duration("job_ttl", cfg.JobTTL),
		zap.Int("max_concurrent_imports", cfg.MaxConcurrentImports),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "importd")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	ctx := context.Background()

	// --- Job bookkeeping & progress backends ---
	var (
		kv        port.KV
		publisher port.ProgressPublisher
	)
	if cfg.RedisURL != "" {
		client, err := redisinfra.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		kv = redisinfra.NewKV(client)
		publisher = redisinfra.NewPublisher(client, logger, metrics)
		logger.Info("using Redis for job state and progress events")
	} else {
		kv = memory.NewKV()
		publisher = memory.NewPublisher()
		logger.Warn("REDIS_URL not set, job state is process-local")
	}

	// --- Transaction & account stores ---
	var (
		accounts port.AccountStore
		txs      port.TransactionStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		db := postgres.NewDB(pool)
		defer db.Close()
		accounts = postgres.NewAccountStore(db)
		txs = postgres.NewTransactionStore(db)
		logger.Info("using Postgres for accounts and transactions")
	} else {
		accounts = memory.NewAccountStore()
		txs = memory.NewTransactionStore()
		logger.Warn("DATABASE_URL not set, storage is process-local")
	}

	// --- Services ---
	jobs := service.NewJobStore(kv, cfg.JobTTL, cfg.ActiveJobGrace, logger)
	importSvc := service.NewImportService(
		jobs,
		service.NewAccountResolver(accounts, logger),
		service.NewProcessor(service.NewDeduper(txs, logger), publisher, logger, metrics),
		resilience.NewBulkhead(cfg.MaxConcurrentImports),
		cfg,
		logger,
		metrics,
	)

	// --- Router ---
	router := handler.NewRouter(importSvc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}
