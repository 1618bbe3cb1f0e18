package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sentinel-cyber/portal/internal/app"
	jobmetrics "github.com/sentinel-cyber/portal/internal/jobs"
	"github.com/sentinel-cyber/portal/internal/rbac"
	"github.com/sentinel-cyber/portal/internal/seed"
	_ "github.com/sentinel-cyber/portal/internal/testing/guard"
	"github.com/sentinel-cyber/portal/internal/users"
	"github.com/sentinel-cyber/portal/jobs"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	main()
}

type process struct {
	stores *app.Stores
	rbac   *rbac.Service
	users  *users.Service
}

// newProcess wires a seeded memory store to the shared redis, the way the
// API and the worker each do at startup.
func newProcess(t *testing.T, mr *miniredis.Miniredis, logger *slog.Logger) process {
	t.Helper()
	ctx := context.Background()
	stores, err := app.OpenStores(ctx, &app.Config{StoreDriver: app.StoreMemory}, logger)
	require.NoError(t, err)
	require.NoError(t, seed.Apply(ctx, stores.Roles, stores.Users, seed.Options{Logger: logger, HashCost: bcrypt.MinCost}))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rbacService := rbac.NewService(rbac.ServiceConfig{
		Roles:   stores.Roles,
		Catalog: stores.Roles,
		Cache:   rbac.NewCache(client, time.Minute),
		Logger:  logger,
	})
	usersService := users.NewService(stores.Users, stores.Roles, rbacService, stores.Audit, logger)
	rbacService.SetSubjects(usersService)
	return process{stores: stores, rbac: rbacService, users: usersService}
}

func TestMemoryWorkerKeepsDeactivationVisible(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)

	api := newProcess(t, mr, logger)
	worker := newProcess(t, mr, logger)

	perms, err := api.rbac.EffectivePermissions(ctx, "user-manager")
	require.NoError(t, err)
	require.NotEmpty(t, perms)

	_, err = api.users.SetActive(ctx, "user-manager", false)
	require.NoError(t, err)

	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	auditJob := jobs.NewRoleAuditJob(worker.stores.Roles, logger, metrics)
	warmupJob := jobs.NewCacheWarmupJob(worker.users, worker.rbac, logger, metrics)
	handlers, crons, err := schedule(&app.Config{StoreDriver: app.StoreMemory}, logger, auditJob, warmupJob)
	require.NoError(t, err)
	require.Len(t, crons, len(handlers))

	for _, h := range handlers {
		assert.NotEqual(t, jobs.TaskCacheWarmup, h.Type)
		for _, c := range crons {
			if c.Task.Type() == h.Type {
				require.NoError(t, h.Handler(ctx, c.Task))
			}
		}
	}

	perms, err = api.rbac.EffectivePermissions(ctx, "user-manager")
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestPostgresWorkerSchedulesWarmup(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())

	handlers, crons, err := schedule(&app.Config{StoreDriver: app.StorePostgres}, logger,
		jobs.NewRoleAuditJob(nil, logger, metrics), jobs.NewCacheWarmupJob(nil, nil, logger, metrics))
	require.NoError(t, err)

	var types []string
	for _, h := range handlers {
		types = append(types, h.Type)
	}
	assert.Equal(t, []string{jobs.TaskAuditRoles, jobs.TaskCacheWarmup}, types)
	require.Len(t, crons, 2)
	assert.Equal(t, jobs.CacheWarmupCron, crons[1].Spec)
	assert.Equal(t, jobs.TaskCacheWarmup, crons[1].Task.Type())
}
