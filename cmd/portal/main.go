package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sentinel-cyber/portal/internal/app"
	"github.com/sentinel-cyber/portal/internal/auth"
	"github.com/sentinel-cyber/portal/internal/observability"
	"github.com/sentinel-cyber/portal/internal/platform/cache"
	"github.com/sentinel-cyber/portal/internal/rbac"
	"github.com/sentinel-cyber/portal/internal/roles"
	"github.com/sentinel-cyber/portal/internal/shared"
	"github.com/sentinel-cyber/portal/internal/users"
	"github.com/sentinel-cyber/portal/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if err := stores.Seed(ctx, cfg, logger); err != nil {
		logger.Error("seed demo data", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, "sentinel_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	permissionCache := rbac.NewCache(redisClient, cfg.PermissionCacheTTL)
	rbacService := rbac.NewService(rbac.ServiceConfig{
		Roles:    stores.Roles,
		Catalog:  stores.Roles,
		Cache:    permissionCache,
		Logger:   logger,
		Recorder: metrics,
	})
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	rolesService := roles.NewService(stores.Roles, rbacService, stores.Audit, logger)
	usersService := users.NewService(stores.Users, stores.Roles, rbacService, stores.Audit, logger)
	rbacService.SetSubjects(usersService)

	authService := auth.NewService(stores.Auth)
	authHandler := auth.NewHandler(logger, authService, usersService, rbacService, sessionManager, csrfManager)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	health := map[string]app.HealthCheck{"redis": cache.HealthCheck(redisClient)}
	for name, check := range stores.Health {
		health[name] = check
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthHandler:        authHandler,
		RolesHandler:       roles.NewHandler(logger, rolesService, rbacMiddleware),
		PermissionsHandler: roles.NewPermissionsHandler(logger, rolesService, rbacMiddleware),
		UsersHandler:       users.NewHandler(logger, usersService, rbacService, rbacMiddleware),
		HierarchyHandler:   rbac.NewHierarchyHandler(logger),
		JobHandler:         jobs.NewHandler(inspector, logger),
		RBACMiddleware:     rbacMiddleware,
		Metrics:            metrics,
		HealthChecks:       health,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
