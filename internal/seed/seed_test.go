package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sentinel-cyber/portal/internal/rbac"
	"github.com/sentinel-cyber/portal/internal/roles"
	"github.com/sentinel-cyber/portal/internal/users"
)

func TestCatalogCoversEveryCategoryAndAction(t *testing.T) {
	catalog := Catalog()
	seenIDs := make(map[string]struct{})
	categories := make(map[rbac.Category]int)
	for _, p := range catalog {
		_, dup := seenIDs[p.ID]
		require.False(t, dup, "duplicate id %s", p.ID)
		seenIDs[p.ID] = struct{}{}
		categories[p.Category]++
		assert.NotEmpty(t, p.Name)
	}
	for _, c := range rbac.Categories() {
		assert.Positive(t, categories[c], "category %s missing", c)
	}
	assert.Len(t, catalog, 10*len(rbac.Actions()))
	assert.Equal(t, PermissionID(rbac.CategoryUsers, "users", rbac.ActionCreate), catalog[0].ID)
}

func TestSeededRolesAreValid(t *testing.T) {
	roleList := Roles(time.Unix(0, 0))
	require.Len(t, roleList, len(rbac.BaseRoles()))
	tiers := make(map[rbac.BaseRole]bool)
	for _, role := range roleList {
		assert.Empty(t, rbac.ValidateRoleConfiguration(role), "role %s", role.ID)
		tiers[role.BaseRole] = true
		for _, p := range role.Permissions {
			require.NotEmpty(t, p.ID, "role %s references unknown permission", role.ID)
		}
	}
	for _, base := range rbac.BaseRoles() {
		assert.True(t, tiers[base], "no role for %s", base)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	catalog := roles.NewMemoryRepository()
	accounts := users.NewMemoryRepository()
	opts := Options{HashCost: bcrypt.MinCost}

	require.NoError(t, Apply(ctx, catalog, accounts, opts))
	require.NoError(t, Apply(ctx, catalog, accounts, opts))

	perms, err := catalog.ListPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, perms, len(Catalog()))

	roleList, err := catalog.ListRoles(ctx)
	require.NoError(t, err)
	assert.Len(t, roleList, 5)

	list, err := accounts.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)

	admin, err := accounts.FindByEmail(ctx, "admin@sentinel.local")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, admin.RoleID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(DemoPassword)))
}
