package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/sentinel-cyber/portal/internal/platform/httpx"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = fmt.Errorf("rbac: %w", httpx.ErrNotFound)

// RoleSource looks roles up by id.
type RoleSource interface {
	GetRole(ctx context.Context, id string) (Role, error)
}

// PermissionCatalog lists every permission known to the system.
type PermissionCatalog interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
}

// SubjectSource loads the authorization view of a user.
type SubjectSource interface {
	Subject(ctx context.Context, userID string) (Subject, error)
}

// DecisionRecorder observes authorization outcomes.
type DecisionRecorder interface {
	RecordDecision(category Category, action Action, allowed bool)
}

// Service resolves what a user may do.
type Service struct {
	roles    RoleSource
	catalog  PermissionCatalog
	subjects SubjectSource
	cache    *Cache
	logger   *slog.Logger
	recorder DecisionRecorder
	group    singleflight.Group
}

// ServiceConfig wires Service dependencies.
type ServiceConfig struct {
	Roles    RoleSource
	Catalog  PermissionCatalog
	Subjects SubjectSource
	Cache    *Cache
	Logger   *slog.Logger
	Recorder DecisionRecorder
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Cache != nil {
		cfg.Cache.logger = logger
	}
	return &Service{
		roles:    cfg.Roles,
		catalog:  cfg.Catalog,
		subjects: cfg.Subjects,
		cache:    cfg.Cache,
		logger:   logger,
		recorder: cfg.Recorder,
	}
}

// SetSubjects replaces the subject source. The user service invalidates
// this resolver and is also its subject source, so one side is wired after
// construction.
func (s *Service) SetSubjects(subjects SubjectSource) {
	s.subjects = subjects
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.catalog.ListPermissions(ctx)
}

// RoleEffectivePermissions returns the effective permissions of a stored role.
func (s *Service) RoleEffectivePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return EffectivePermissions(role), nil
}

// EffectivePermissions resolves a user's permissions: the effective
// permissions of their role together with permissions granted to the user
// directly, merged per category/resource.
func (s *Service) EffectivePermissions(ctx context.Context, userID string) ([]Permission, error) {
	key, err := s.cache.BuildKey(ctx, "user", userID)
	if err != nil {
		s.logger.Warn("rbac cache key", slog.Any("error", err))
		return s.resolve(ctx, userID)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		perms, err := s.cache.FetchPermissions(ctx, key, func(ctx context.Context) ([]Permission, error) {
			return s.resolve(ctx, userID)
		})
		if errors.Is(err, ErrCacheUnavailable) {
			s.logger.Warn("rbac cache fetch", slog.String("user_id", userID), slog.Any("error", err))
			return s.resolve(ctx, userID)
		}
		return perms, err
	})
	if err != nil {
		return nil, err
	}
	perms := v.([]Permission)
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out, nil
}

// Can reports whether the user holds action over category/resource. A
// manage grant covers every action.
func (s *Service) Can(ctx context.Context, userID string, category Category, action Action, resource string) (bool, error) {
	perms, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	allowed := Grants(perms, category, action, resource)
	if s.recorder != nil {
		s.recorder.RecordDecision(category, action, allowed)
	}
	return allowed, nil
}

// Invalidate drops every cached permission set.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) resolve(ctx context.Context, userID string) ([]Permission, error) {
	subject, err := s.subjects.Subject(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Permission{}, nil
		}
		return nil, fmt.Errorf("rbac: load subject: %w", err)
	}
	if !subject.Active {
		return []Permission{}, nil
	}

	var granted []Permission
	if subject.RoleID != "" {
		role, err := s.roles.GetRole(ctx, subject.RoleID)
		switch {
		case err == nil:
			granted = append(granted, EffectivePermissions(role)...)
		case errors.Is(err, ErrNotFound):
			s.logger.Warn("rbac dangling role reference", slog.String("user_id", userID), slog.String("role_id", subject.RoleID))
		default:
			return nil, fmt.Errorf("rbac: load role: %w", err)
		}
	}

	if len(subject.PermissionIDs) > 0 {
		catalog, err := s.catalog.ListPermissions(ctx)
		if err != nil {
			return nil, fmt.Errorf("rbac: list permissions: %w", err)
		}
		byID := make(map[string]Permission, len(catalog))
		for _, p := range catalog {
			byID[p.ID] = p
		}
		for _, id := range subject.PermissionIDs {
			if p, ok := byID[id]; ok {
				granted = append(granted, p)
			}
		}
	}

	return MergePermissions(granted), nil
}

// Grants reports whether perms allow action over category/resource.
func Grants(perms []Permission, category Category, action Action, resource string) bool {
	for _, p := range perms {
		if p.Category != category || p.Resource != resource {
			continue
		}
		if p.Action == action || p.Action == ActionManage {
			return true
		}
	}
	return false
}
