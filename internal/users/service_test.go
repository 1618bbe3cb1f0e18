package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sentinel-cyber/portal/internal/platform/httpx"
	"github.com/sentinel-cyber/portal/internal/rbac"
	"github.com/sentinel-cyber/portal/internal/roles"
	"github.com/sentinel-cyber/portal/internal/shared"
)

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.calls++
	return nil
}

type recordingAuditor struct {
	logs []shared.AuditLog
}

func (r *recordingAuditor) Record(ctx context.Context, log shared.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

type fixture struct {
	svc         *Service
	repo        *MemoryRepository
	catalog     *roles.MemoryRepository
	invalidator *countingInvalidator
	audit       *recordingAuditor
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	catalog := roles.NewMemoryRepository()
	read := rbac.Permission{ID: "projects.read", Category: rbac.CategoryProjects, Action: rbac.ActionRead, Resource: "projects"}
	tickets := rbac.Permission{ID: "tickets.read", Category: rbac.CategorySupport, Action: rbac.ActionRead, Resource: "tickets"}
	for _, p := range []rbac.Permission{read, tickets} {
		_, err := catalog.CreatePermission(ctx, p)
		require.NoError(t, err)
	}
	_, err := catalog.CreateRole(ctx, rbac.Role{ID: "role-dev", Name: "Dev", BaseRole: rbac.BaseRoleDeveloper, Permissions: []rbac.Permission{read}})
	require.NoError(t, err)
	_, err = catalog.CreateRole(ctx, rbac.Role{ID: "role-support", Name: "Support", BaseRole: rbac.BaseRoleSupport, Permissions: []rbac.Permission{tickets}})
	require.NoError(t, err)

	repo := NewMemoryRepository()
	inv := &countingInvalidator{}
	audit := &recordingAuditor{}
	svc := NewService(repo, catalog, inv, audit, nil)
	svc.hashCost = bcrypt.MinCost
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return fixture{svc: svc, repo: repo, catalog: catalog, invalidator: inv, audit: audit}
}

func createDev(t *testing.T, f fixture) User {
	t.Helper()
	u, err := f.svc.CreateUser(context.Background(), CreateUserInput{
		Email:       " Dev@Sentinel.Local ",
		Name:        "Dana",
		Password:    "long-enough",
		RoleID:      "role-dev",
		Permissions: []string{"tickets.read", "tickets.read"},
	})
	require.NoError(t, err)
	return u
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)
	u := createDev(t, f)

	assert.Equal(t, "dev@sentinel.local", u.Email)
	assert.True(t, u.IsActive)
	assert.Equal(t, []string{"tickets.read"}, u.Permissions)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("long-enough")))
	assert.Equal(t, 1, f.invalidator.calls)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, "user", f.audit.logs[0].Entity)

	found, err := f.repo.FindByEmail(context.Background(), "DEV@sentinel.local")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateUser(ctx, CreateUserInput{Email: "nope", Name: "", Password: "short"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = f.svc.CreateUser(ctx, CreateUserInput{Email: "a@b.io", Name: "A", Password: "long-enough", RoleID: "role-ghost"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = f.svc.CreateUser(ctx, CreateUserInput{Email: "a@b.io", Name: "A", Password: "long-enough", Permissions: []string{"ghost"}})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	createDev(t, f)

	_, err := f.svc.CreateUser(context.Background(), CreateUserInput{Email: "dev@sentinel.local", Name: "Other", Password: "long-enough"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestAssignRoleAndSubject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := createDev(t, f)

	updated, err := f.svc.AssignRole(ctx, u.ID, AssignRoleInput{RoleID: "role-support"})
	require.NoError(t, err)
	assert.Equal(t, "role-support", updated.RoleID)

	subject, err := f.svc.Subject(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, rbac.Subject{UserID: u.ID, RoleID: "role-support", PermissionIDs: []string{"tickets.read"}, Active: true}, subject)

	_, err = f.svc.AssignRole(ctx, u.ID, AssignRoleInput{RoleID: "role-ghost"})
	require.ErrorIs(t, err, httpx.ErrValidation)
	_, err = f.svc.AssignRole(ctx, "ghost", AssignRoleInput{RoleID: "role-dev"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetPermissionsAndActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := createDev(t, f)

	updated, err := f.svc.SetPermissions(ctx, u.ID, SetPermissionsInput{PermissionIDs: []string{"projects.read"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"projects.read"}, updated.Permissions)

	updated, err = f.svc.SetActive(ctx, u.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	calls := f.invalidator.calls
	_, err = f.svc.SetActive(ctx, u.ID, false)
	require.NoError(t, err)
	assert.Equal(t, calls, f.invalidator.calls, "no-op toggles should not invalidate")
}

func TestSubjectUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Subject(context.Background(), "ghost")
	require.ErrorIs(t, err, rbac.ErrNotFound)
}
