package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/sentinel-cyber/portal/internal/app"
	jobmetrics "github.com/sentinel-cyber/portal/internal/jobs"
	"github.com/sentinel-cyber/portal/internal/platform/cache"
	"github.com/sentinel-cyber/portal/internal/rbac"
	"github.com/sentinel-cyber/portal/internal/users"
	"github.com/sentinel-cyber/portal/jobs"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("open stores", slog.String("driver", cfg.StoreDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer stores.Close()

	if cfg.StoreDriver == app.StoreMemory {
		logger.Warn("worker running against the memory store; jobs only see demo data")
		if err := stores.Seed(ctx, cfg, logger); err != nil {
			logger.Error("seed demo data", slog.Any("error", err))
			os.Exit(1)
		}
	}

	rbacService := rbac.NewService(rbac.ServiceConfig{
		Roles:   stores.Roles,
		Catalog: stores.Roles,
		Cache:   rbac.NewCache(redisClient, cfg.PermissionCacheTTL),
		Logger:  logger,
	})
	usersService := users.NewService(stores.Users, stores.Roles, rbacService, stores.Audit, logger)
	rbacService.SetSubjects(usersService)

	metrics := jobmetrics.NewMetrics(nil)
	auditJob := jobs.NewRoleAuditJob(stores.Roles, logger, metrics)
	warmupJob := jobs.NewCacheWarmupJob(usersService, rbacService, logger, metrics)

	handlers, crons, err := schedule(cfg, logger, auditJob, warmupJob)
	if err != nil {
		logger.Error("build schedule", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    handlers,
		Cron:        crons,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// schedule lists the handlers and cron entries the worker serves. Cache
// warmup only runs against postgres; a memory store is private to the
// worker process and diverges from the API's.
func schedule(cfg *app.Config, logger *slog.Logger, auditJob *jobs.RoleAuditJob, warmupJob *jobs.CacheWarmupJob) ([]jobs.TaskHandler, []jobs.CronRegistration, error) {
	auditTask, err := jobs.NewAuditRolesTask(jobs.AuditRolesPayload{})
	if err != nil {
		return nil, nil, fmt.Errorf("build audit task: %w", err)
	}
	handlers := []jobs.TaskHandler{{Type: jobs.TaskAuditRoles, Handler: auditJob.Handle}}
	crons := []jobs.CronRegistration{{Spec: jobs.AuditRolesCron, Task: auditTask, Options: []asynq.Option{asynq.MaxRetry(3)}}}

	if cfg.StoreDriver != app.StorePostgres {
		logger.Warn("cache warmup disabled", slog.String("driver", cfg.StoreDriver))
		return handlers, crons, nil
	}
	warmupTask, err := jobs.NewCacheWarmupTask(jobs.CacheWarmupPayload{})
	if err != nil {
		return nil, nil, fmt.Errorf("build warmup task: %w", err)
	}
	handlers = append(handlers, jobs.TaskHandler{Type: jobs.TaskCacheWarmup, Handler: warmupJob.Handle})
	crons = append(crons, jobs.CronRegistration{Spec: jobs.CacheWarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(1)}})
	return handlers, crons, nil
}
