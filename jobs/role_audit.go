package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sentinel-cyber/portal/internal/jobs"
	"github.com/sentinel-cyber/portal/internal/rbac"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// RoleLister lists stored roles.
type RoleLister interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
}

// RoleFinding is one role that failed validation.
type RoleFinding struct {
	RoleID   string   `json:"roleId"`
	RoleName string   `json:"roleName"`
	Errors   []string `json:"errors"`
}

// RoleAuditReport summarises an audit run.
type RoleAuditReport struct {
	Checked  int           `json:"checked"`
	Invalid  []RoleFinding `json:"invalid"`
	Duration time.Duration `json:"duration"`
}

// RoleAuditJob re-validates stored roles so configuration drift surfaces in
// logs and metrics.
type RoleAuditJob struct {
	Roles   RoleLister
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewRoleAuditJob wires dependencies for the audit handler.
func NewRoleAuditJob(roles RoleLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *RoleAuditJob {
	return &RoleAuditJob{Roles: roles, Logger: logger, Metrics: metrics}
}

// Handle processes role audit tasks.
func (j *RoleAuditJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Roles == nil {
		return errors.New("role audit: handler not configured")
	}
	var payload AuditRolesPayload
	if err := decodePayload(t, &payload); err != nil {
		return err
	}
	_, err := j.Run(ctx, payload)
	return err
}

// Run audits roles and publishes the invalid count.
func (j *RoleAuditJob) Run(ctx context.Context, payload AuditRolesPayload) (report RoleAuditReport, resultErr error) {
	tracker := j.metrics().Track(TaskAuditRoles)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := time.Now()
	logger := j.logger()
	roles, err := j.Roles.ListRoles(ctx)
	if err != nil {
		logger.Error("list roles", slog.Any("error", err))
		return RoleAuditReport{}, err
	}

	wanted := make(map[string]struct{}, len(payload.RoleIDs))
	for _, id := range payload.RoleIDs {
		wanted[id] = struct{}{}
	}
	report.Invalid = []RoleFinding{}
	for _, role := range roles {
		if len(wanted) > 0 {
			if _, ok := wanted[role.ID]; !ok {
				continue
			}
		}
		report.Checked++
		problems := rbac.ValidateRoleConfiguration(role)
		if len(problems) == 0 {
			continue
		}
		logger.Warn("role configuration invalid",
			slog.String("role_id", role.ID),
			slog.String("role_name", role.Name),
			slog.Any("errors", problems))
		report.Invalid = append(report.Invalid, RoleFinding{RoleID: role.ID, RoleName: role.Name, Errors: problems})
	}
	report.Duration = time.Since(start)
	j.metrics().SetInvalidRoles(len(report.Invalid))
	logger.Info("completed role audit", slog.Int("checked", report.Checked), slog.Int("invalid", len(report.Invalid)))
	return report, nil
}

func (j *RoleAuditJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditRoles))
	}
	return slog.Default().With(slog.String("job", TaskAuditRoles))
}

func (j *RoleAuditJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
