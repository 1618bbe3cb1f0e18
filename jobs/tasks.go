package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRoles re-validates every stored role.
	TaskAuditRoles = "rbac:audit_roles"
	// TaskCacheWarmup precomputes effective permissions for active users.
	TaskCacheWarmup = "rbac:cache_warmup"
)

// Default cron schedules, evaluated in UTC.
const (
	AuditRolesCron  = "0 * * * *"
	CacheWarmupCron = "*/15 * * * *"
)

// AuditRolesPayload narrows an audit to specific roles. Empty means all.
type AuditRolesPayload struct {
	RoleIDs []string `json:"roleIds,omitempty"`
}

// CacheWarmupPayload narrows a warmup to specific users. Empty means every active user.
type CacheWarmupPayload struct {
	UserIDs []string `json:"userIds,omitempty"`
}

// NewAuditRolesTask constructs an Asynq task.
func NewAuditRolesTask(payload AuditRolesPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRoles, data), nil
}

// NewCacheWarmupTask constructs an Asynq task.
func NewCacheWarmupTask(payload CacheWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarmup, data), nil
}

func decodePayload(t *asynq.Task, v any) error {
	if len(t.Payload()) == 0 {
		return nil
	}
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		return asynq.SkipRetry
	}
	return nil
}
