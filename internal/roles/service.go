package roles

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sentinel-cyber/portal/internal/platform/httpx"
	"github.com/sentinel-cyber/portal/internal/rbac"
	"github.com/sentinel-cyber/portal/internal/shared"
)

// RepositoryPort defines data access methods for roles and the permission catalog.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]rbac.Role, error)
	GetRole(ctx context.Context, id string) (rbac.Role, error)
	CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error)
	UpdateRole(ctx context.Context, role rbac.Role) (rbac.Role, error)
	DeleteRole(ctx context.Context, id string) error
	ListPermissions(ctx context.Context) ([]rbac.Permission, error)
	GetPermissions(ctx context.Context, ids []string) ([]rbac.Permission, error)
	CreatePermission(ctx context.Context, p rbac.Permission) (rbac.Permission, error)
}

// Invalidator drops resolved permission sets after role changes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Auditor records administrative changes.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles role business logic.
type Service struct {
	repo        RepositoryPort
	invalidator Invalidator
	audit       Auditor
	logger      *slog.Logger
	validate    *validator.Validate
	now         func() time.Time
	newID       func() string
}

// NewService builds Service instance. invalidator and audit may be nil.
func NewService(repo RepositoryPort, invalidator Invalidator, audit Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		invalidator: invalidator,
		audit:       audit,
		logger:      logger,
		validate:    validator.New(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

// ListRoles returns roles matching the filters.
func (s *Service) ListRoles(ctx context.Context, filters RoleListFilters) ([]rbac.Role, error) {
	all, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]rbac.Role, 0, len(all))
	for _, role := range all {
		if filters.BaseRole != "" && role.BaseRole != filters.BaseRole {
			continue
		}
		out = append(out, role)
	}
	sortRoles(out, filters)
	return out, nil
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id string) (rbac.Role, error) {
	return s.repo.GetRole(ctx, id)
}

// ValidateRole builds the role described by in and reports its problems
// without saving anything.
func (s *Service) ValidateRole(ctx context.Context, in CreateRoleInput) ([]string, error) {
	role, problems, err := s.buildRole(ctx, in)
	if err != nil {
		return nil, err
	}
	return append(problems, rbac.ValidateRoleConfiguration(role)...), nil
}

// CreateRole validates and stores a new role.
func (s *Service) CreateRole(ctx context.Context, in CreateRoleInput) (rbac.Role, error) {
	role, problems, err := s.buildRole(ctx, in)
	if err != nil {
		return rbac.Role{}, err
	}
	if err := checkRole(role, problems); err != nil {
		return rbac.Role{}, err
	}
	now := s.now()
	role.ID = s.newID()
	role.CreatedAt = now
	role.UpdatedAt = now
	created, err := s.repo.CreateRole(ctx, role)
	if err != nil {
		return rbac.Role{}, err
	}
	s.afterChange(ctx, "role.create", created.ID, map[string]any{"name": created.Name, "baseRole": created.BaseRole})
	return created, nil
}

// UpdateRole validates and replaces an existing role.
func (s *Service) UpdateRole(ctx context.Context, id string, in UpdateRoleInput) (rbac.Role, error) {
	existing, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return rbac.Role{}, err
	}
	role, problems, err := s.buildRole(ctx, in)
	if err != nil {
		return rbac.Role{}, err
	}
	if err := checkRole(role, problems); err != nil {
		return rbac.Role{}, err
	}
	role.ID = existing.ID
	role.CreatedAt = existing.CreatedAt
	role.UpdatedAt = s.now()
	updated, err := s.repo.UpdateRole(ctx, role)
	if err != nil {
		return rbac.Role{}, err
	}
	s.afterChange(ctx, "role.update", updated.ID, map[string]any{"name": updated.Name, "baseRole": updated.BaseRole})
	return updated, nil
}

// DeleteRole removes a role. Users still referencing it keep a dangling roleId.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.afterChange(ctx, "role.delete", id, nil)
	return nil
}

// AssignPermissions adds catalog permissions to a role.
func (s *Service) AssignPermissions(ctx context.Context, roleID string, permissionIDs []string) (rbac.Role, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return rbac.Role{}, err
	}
	present := make(map[string]struct{}, len(role.Permissions))
	for _, p := range role.Permissions {
		present[p.ID] = struct{}{}
	}
	var missing []string
	for _, id := range permissionIDs {
		if _, ok := present[id]; ok {
			continue
		}
		present[id] = struct{}{}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return role, nil
	}
	added, err := s.repo.GetPermissions(ctx, missing)
	if err != nil {
		return rbac.Role{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	role.Permissions = append(role.Permissions, added...)
	return s.saveAssignments(ctx, role, "role.permissions.assign", missing)
}

// RevokePermissions removes permissions from a role.
func (s *Service) RevokePermissions(ctx context.Context, roleID string, permissionIDs []string) (rbac.Role, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return rbac.Role{}, err
	}
	drop := make(map[string]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		drop[id] = struct{}{}
	}
	kept := role.Permissions[:0:0]
	for _, p := range role.Permissions {
		if _, ok := drop[p.ID]; ok {
			continue
		}
		kept = append(kept, p)
	}
	if len(kept) == len(role.Permissions) {
		return role, nil
	}
	role.Permissions = kept
	return s.saveAssignments(ctx, role, "role.permissions.revoke", permissionIDs)
}

// EffectivePermissions returns the hierarchy-amplified permissions of a role.
func (s *Service) EffectivePermissions(ctx context.Context, roleID string) ([]rbac.Permission, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return rbac.EffectivePermissions(role), nil
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// CreatePermission adds a permission to the catalog.
func (s *Service) CreatePermission(ctx context.Context, in CreatePermissionInput) (rbac.Permission, error) {
	if err := httpx.ValidateStruct(s.validate, in); err != nil {
		return rbac.Permission{}, err
	}
	p := s.newPermission(PermissionInput{
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		Action:      in.Action,
		Resource:    in.Resource,
	})
	created, err := s.repo.CreatePermission(ctx, p)
	if err != nil {
		return rbac.Permission{}, err
	}
	s.afterChange(ctx, "permission.create", created.ID, map[string]any{"key": created.Key(), "action": created.Action})
	return created, nil
}

// ResolvePermissions loads catalog permissions in the order given.
func (s *Service) ResolvePermissions(ctx context.Context, ids []string) ([]rbac.Permission, error) {
	perms, err := s.repo.GetPermissions(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return perms, nil
}

func (s *Service) saveAssignments(ctx context.Context, role rbac.Role, action string, ids []string) (rbac.Role, error) {
	if problems := rbac.ValidateRoleConfiguration(role); len(problems) > 0 {
		return rbac.Role{}, httpx.NewValidationError(problems...)
	}
	role.UpdatedAt = s.now()
	updated, err := s.repo.UpdateRole(ctx, role)
	if err != nil {
		return rbac.Role{}, err
	}
	s.afterChange(ctx, action, role.ID, map[string]any{"permissionIds": ids})
	return updated, nil
}

// buildRole turns input into a role. Referenced permissions are loaded from
// the catalog. Inline ones reuse the catalog entry for the same grant and
// get fresh ids otherwise. Input-level problems are returned
// alongside so callers can report them with the role validator output.
func (s *Service) buildRole(ctx context.Context, in CreateRoleInput) (rbac.Role, []string, error) {
	var problems []string
	if err := httpx.ValidateStruct(s.validate, in); err != nil {
		lister, ok := err.(httpx.ProblemLister)
		if !ok {
			return rbac.Role{}, nil, err
		}
		problems = append(problems, lister.Problems()...)
	}

	role := rbac.Role{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		BaseRole:    rbac.BaseRole(strings.TrimSpace(in.BaseRole)),
	}

	var refs []string
	for i, pin := range in.Permissions {
		if pin.ID != "" {
			refs = append(refs, pin.ID)
			continue
		}
		if pin.Category == "" || pin.Action == "" || strings.TrimSpace(pin.Resource) == "" {
			problems = append(problems, fmt.Sprintf("permissions[%d]: category, action and resource are required for new permissions", i))
		}
	}
	var loaded map[string]rbac.Permission
	if len(refs) > 0 {
		found, err := s.repo.GetPermissions(ctx, refs)
		if err != nil {
			return rbac.Role{}, nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
		}
		loaded = make(map[string]rbac.Permission, len(found))
		for _, p := range found {
			loaded[p.ID] = p
		}
	}
	var catalog map[string]rbac.Permission
	for _, pin := range in.Permissions {
		if pin.ID != "" {
			role.Permissions = append(role.Permissions, loaded[pin.ID])
			continue
		}
		if catalog == nil {
			all, err := s.repo.ListPermissions(ctx)
			if err != nil {
				return rbac.Role{}, nil, err
			}
			catalog = make(map[string]rbac.Permission, len(all))
			for _, p := range all {
				catalog[grantOf(p)] = p
			}
		}
		p := s.newPermission(pin)
		if existing, ok := catalog[grantOf(p)]; ok {
			p = existing
		}
		catalog[grantOf(p)] = p
		role.Permissions = append(role.Permissions, p)
	}
	return role, problems, nil
}

func (s *Service) newPermission(in PermissionInput) rbac.Permission {
	p := rbac.Permission{
		ID:          s.newID(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Category:    rbac.Category(in.Category),
		Action:      rbac.Action(in.Action),
		Resource:    strings.TrimSpace(in.Resource),
	}
	if p.Name == "" {
		p.Name = cases.Title(language.English).String(fmt.Sprintf("%s %s", p.Action, strings.ReplaceAll(p.Resource, "_", " ")))
	}
	return p
}

func grantOf(p rbac.Permission) string {
	return string(p.Category) + ":" + string(p.Action) + ":" + p.Resource
}

func (s *Service) afterChange(ctx context.Context, action, entityID string, meta map[string]any) {
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate permission cache", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		entity := "role"
		if strings.HasPrefix(action, "permission.") {
			entity = "permission"
		}
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  shared.ActorFromContext(ctx),
			Action:   action,
			Entity:   entity,
			EntityID: entityID,
			Meta:     meta,
		}); err != nil {
			s.logger.Warn("record audit log", slog.String("action", action), slog.Any("error", err))
		}
	}
}

func checkRole(role rbac.Role, inputProblems []string) error {
	problems := append(inputProblems, rbac.ValidateRoleConfiguration(role)...)
	if len(problems) > 0 {
		return httpx.NewValidationError(problems...)
	}
	return nil
}

func sortRoles(roles []rbac.Role, filters RoleListFilters) {
	desc := strings.EqualFold(filters.SortDir, "desc")
	switch filters.SortBy {
	case "rank":
		sort.SliceStable(roles, func(i, j int) bool {
			if desc {
				return rbac.IsRoleHigherThan(roles[j].BaseRole, roles[i].BaseRole)
			}
			return rbac.IsRoleHigherThan(roles[i].BaseRole, roles[j].BaseRole)
		})
	case "name":
		sort.SliceStable(roles, func(i, j int) bool {
			if desc {
				return strings.ToLower(roles[i].Name) > strings.ToLower(roles[j].Name)
			}
			return strings.ToLower(roles[i].Name) < strings.ToLower(roles[j].Name)
		})
	}
}
