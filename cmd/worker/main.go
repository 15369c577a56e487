package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/cadencehr/cadence/internal/app"
	"github.com/cadencehr/cadence/internal/auth"
	jobmetrics "github.com/cadencehr/cadence/internal/jobs"
	"github.com/cadencehr/cadence/internal/permissions"
	"github.com/cadencehr/cadence/internal/platform/db"
	"github.com/cadencehr/cadence/internal/shared"
	"github.com/cadencehr/cadence/internal/tenants"
	"github.com/cadencehr/cadence/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	auditLogger := shared.NewAuditLogger(pool)
	metrics := jobmetrics.NewMetrics(nil)

	authService := auth.NewService(auth.NewRepository(pool))
	tenantService := tenants.NewService(tenants.NewRepository(pool), nil, logger)

	matrixCache := permissions.NewMatrixCache(redisClient, cfg.MatrixCacheTTL)
	permissionService := permissions.NewService(permissions.NewRepository(pool), tenantService, authService, matrixCache, auditLogger, logger)

	provisionJob := jobs.NewTenantProvisionJob(permissionService, logger, metrics)
	warmupJob := jobs.NewMatrixWarmupJob(permissionService, pool, logger, metrics)

	warmupTask, err := jobs.NewMatrixWarmupTask(jobs.MatrixWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTenantProvision, Handler: provisionJob.Handle},
			{Type: jobs.TaskMatrixWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.WarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
