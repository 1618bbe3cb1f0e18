package users

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sentinel-cyber/portal/internal/platform/httpx"
	"github.com/sentinel-cyber/portal/internal/rbac"
	"github.com/sentinel-cyber/portal/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, u User) (User, error)
	UpdateUser(ctx context.Context, u User) (User, error)
}

// Catalog checks role and permission references.
type Catalog interface {
	GetRole(ctx context.Context, id string) (rbac.Role, error)
	GetPermissions(ctx context.Context, ids []string) ([]rbac.Permission, error)
}

// Invalidator drops resolved permission sets after assignment changes.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Auditor records administrative changes.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user business logic.
type Service struct {
	repo        RepositoryPort
	catalog     Catalog
	invalidator Invalidator
	audit       Auditor
	logger      *slog.Logger
	validate    *validator.Validate
	now         func() time.Time
	newID       func() string
	hashCost    int
}

// NewService builds Service instance. invalidator and audit may be nil.
func NewService(repo RepositoryPort, catalog Catalog, invalidator Invalidator, audit Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		catalog:     catalog,
		invalidator: invalidator,
		audit:       audit,
		logger:      logger,
		validate:    validator.New(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
		hashCost:    bcrypt.DefaultCost,
	}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser fetches a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// Subject returns the authorization view of a user.
func (s *Service) Subject(ctx context.Context, userID string) (rbac.Subject, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return rbac.Subject{}, err
	}
	return u.Subject(), nil
}

// CreateUser validates input, hashes the password and stores the user.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	if err := httpx.ValidateStruct(s.validate, in); err != nil {
		return User{}, err
	}
	if in.RoleID != "" {
		if err := s.checkRole(ctx, in.RoleID); err != nil {
			return User{}, err
		}
	}
	if err := s.checkPermissions(ctx, in.Permissions); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	u := User{
		ID:           s.newID(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		RoleID:       in.RoleID,
		Permissions:  dedupe(in.Permissions),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	created, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return User{}, err
	}
	s.afterChange(ctx, "user.create", created.ID, map[string]any{"email": created.Email, "roleId": created.RoleID})
	return created, nil
}

// AssignRole changes the role of a user.
func (s *Service) AssignRole(ctx context.Context, userID string, in AssignRoleInput) (User, error) {
	if err := httpx.ValidateStruct(s.validate, in); err != nil {
		return User{}, err
	}
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if err := s.checkRole(ctx, in.RoleID); err != nil {
		return User{}, err
	}
	previous := u.RoleID
	u.RoleID = in.RoleID
	u.UpdatedAt = s.now()
	updated, err := s.repo.UpdateUser(ctx, u)
	if err != nil {
		return User{}, err
	}
	s.afterChange(ctx, "user.role.assign", u.ID, map[string]any{"from": previous, "to": in.RoleID})
	return updated, nil
}

// SetPermissions replaces the permissions granted directly to a user.
func (s *Service) SetPermissions(ctx context.Context, userID string, in SetPermissionsInput) (User, error) {
	if err := httpx.ValidateStruct(s.validate, in); err != nil {
		return User{}, err
	}
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if err := s.checkPermissions(ctx, in.PermissionIDs); err != nil {
		return User{}, err
	}
	u.Permissions = dedupe(in.PermissionIDs)
	u.UpdatedAt = s.now()
	updated, err := s.repo.UpdateUser(ctx, u)
	if err != nil {
		return User{}, err
	}
	s.afterChange(ctx, "user.permissions.set", u.ID, map[string]any{"permissionIds": u.Permissions})
	return updated, nil
}

// SetActive enables or disables a user. Disabled users resolve to no permissions.
func (s *Service) SetActive(ctx context.Context, userID string, active bool) (User, error) {
	u, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if u.IsActive == active {
		return u, nil
	}
	u.IsActive = active
	u.UpdatedAt = s.now()
	updated, err := s.repo.UpdateUser(ctx, u)
	if err != nil {
		return User{}, err
	}
	s.afterChange(ctx, "user.active.set", u.ID, map[string]any{"active": active})
	return updated, nil
}

func (s *Service) checkRole(ctx context.Context, roleID string) error {
	if s.catalog == nil {
		return nil
	}
	if _, err := s.catalog.GetRole(ctx, roleID); err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return nil
}

func (s *Service) checkPermissions(ctx context.Context, ids []string) error {
	if s.catalog == nil || len(ids) == 0 {
		return nil
	}
	if _, err := s.catalog.GetPermissions(ctx, ids); err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return nil
}

func (s *Service) afterChange(ctx context.Context, action, userID string, meta map[string]any) {
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx); err != nil {
			s.logger.Warn("invalidate permission cache", slog.String("action", action), slog.Any("error", err))
		}
	}
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "user",
		EntityID: userID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("record audit log", slog.String("action", action), slog.Any("error", err))
	}
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
