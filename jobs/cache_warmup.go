package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/sentinel-cyber/portal/internal/jobs"
	"github.com/sentinel-cyber/portal/internal/rbac"
	"github.com/sentinel-cyber/portal/internal/users"
)

const defaultWarmupConcurrency = 4

// UserLister lists portal accounts.
type UserLister interface {
	ListUsers(ctx context.Context) ([]users.User, error)
}

// PermissionResolver computes and caches a user's effective permissions.
type PermissionResolver interface {
	EffectivePermissions(ctx context.Context, userID string) ([]rbac.Permission, error)
}

// CacheWarmupJob precomputes permission sets so the first request after a
// cache bump does not pay the resolution cost.
type CacheWarmupJob struct {
	Users       UserLister
	Resolver    PermissionResolver
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
	Concurrency int
}

// NewCacheWarmupJob wires dependencies for the warmup handler.
func NewCacheWarmupJob(users UserLister, resolver PermissionResolver, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheWarmupJob {
	return &CacheWarmupJob{Users: users, Resolver: resolver, Logger: logger, Metrics: metrics, Concurrency: defaultWarmupConcurrency}
}

// Handle processes cache warmup tasks.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Users == nil || j.Resolver == nil {
		return errors.New("cache warmup: handler not configured")
	}
	var payload CacheWarmupPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run resolves permissions for the selected active users and returns how
// many were warmed.
func (j *CacheWarmupJob) Run(ctx context.Context, payload CacheWarmupPayload) (warmed int, resultErr error) {
	tracker := j.metrics().Track(TaskCacheWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	logger := j.logger()
	all, err := j.Users.ListUsers(ctx)
	if err != nil {
		logger.Error("list users", slog.Any("error", err))
		return 0, err
	}
	wanted := make(map[string]struct{}, len(payload.UserIDs))
	for _, id := range payload.UserIDs {
		wanted[id] = struct{}{}
	}

	var count atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency())
	for _, u := range all {
		if !u.IsActive {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[u.ID]; !ok {
				continue
			}
		}
		id := u.ID
		g.Go(func() error {
			if _, err := j.Resolver.EffectivePermissions(gctx, id); err != nil {
				logger.Error("warm user", slog.String("user_id", id), slog.Any("error", err))
				return err
			}
			count.Add(1)
			return nil
		})
	}
	err = g.Wait()
	warmed = int(count.Load())
	j.metrics().AddWarmed(warmed)
	if err != nil {
		return warmed, err
	}
	logger.Info("completed cache warmup", slog.Int("users", warmed), slog.Duration("duration", time.Since(start)))
	return warmed, nil
}

func (j *CacheWarmupJob) concurrency() int {
	if j.Concurrency > 0 {
		return j.Concurrency
	}
	return defaultWarmupConcurrency
}

func (j *CacheWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCacheWarmup))
	}
	return slog.Default().With(slog.String("job", TaskCacheWarmup))
}

func (j *CacheWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
