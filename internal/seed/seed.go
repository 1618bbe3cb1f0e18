// Package seed provides the demo permission catalog, one role per base tier
// and matching demo accounts.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sentinel-cyber/portal/internal/platform/httpx"
	"github.com/sentinel-cyber/portal/internal/rbac"
	"github.com/sentinel-cyber/portal/internal/users"
)

// DemoPassword is shared by every seeded account.
const DemoPassword = "sentinel-demo"

// Role ids created by the seed.
const (
	RoleAdmin     = "role-admin"
	RoleManager   = "role-manager"
	RoleDeveloper = "role-developer"
	RoleSupport   = "role-support"
	RoleClient    = "role-client"
)

var resourcesByCategory = []struct {
	category  rbac.Category
	resources []string
}{
	{rbac.CategoryUsers, []string{"users"}},
	{rbac.CategoryProjects, []string{"projects", "deployments"}},
	{rbac.CategorySecurity, []string{"access", "audit_logs"}},
	{rbac.CategorySupport, []string{"tickets"}},
	{rbac.CategoryBilling, []string{"invoices"}},
	{rbac.CategorySystem, []string{"roles", "permissions", "hierarchy", "settings"}},
}

// PermissionID is the catalog id of category/resource/action.
func PermissionID(category rbac.Category, resource string, action rbac.Action) string {
	return fmt.Sprintf("perm.%s.%s.%s", category, resource, action)
}

// Catalog returns every action on every seeded resource.
func Catalog() []rbac.Permission {
	title := cases.Title(language.English)
	var out []rbac.Permission
	for _, group := range resourcesByCategory {
		for _, resource := range group.resources {
			for _, action := range rbac.Actions() {
				label := title.String(fmt.Sprintf("%s %s", action, resource))
				out = append(out, rbac.Permission{
					ID:          PermissionID(group.category, resource, action),
					Name:        label,
					Description: fmt.Sprintf("%s access to %s", title.String(string(action)), resource),
					Category:    group.category,
					Action:      action,
					Resource:    resource,
				})
			}
		}
	}
	return out
}

type grant struct {
	category rbac.Category
	resource string
	action   rbac.Action
}

var roleGrants = []struct {
	id, name, description string
	base                  rbac.BaseRole
	grants                []grant
}{
	{RoleAdmin, "Administrator", "Full control of the portal", rbac.BaseRoleAdmin, []grant{
		{rbac.CategorySystem, "roles", rbac.ActionManage},
		{rbac.CategorySystem, "permissions", rbac.ActionManage},
		{rbac.CategorySystem, "hierarchy", rbac.ActionManage},
		{rbac.CategorySystem, "settings", rbac.ActionManage},
		{rbac.CategoryUsers, "users", rbac.ActionManage},
		{rbac.CategorySecurity, "access", rbac.ActionManage},
		{rbac.CategorySecurity, "audit_logs", rbac.ActionRead},
		{rbac.CategoryProjects, "projects", rbac.ActionManage},
		{rbac.CategoryBilling, "invoices", rbac.ActionManage},
		{rbac.CategorySupport, "tickets", rbac.ActionManage},
	}},
	{RoleManager, "Project Manager", "Runs client engagements", rbac.BaseRoleManager, []grant{
		{rbac.CategoryProjects, "projects", rbac.ActionRead},
		{rbac.CategoryProjects, "projects", rbac.ActionUpdate},
		{rbac.CategoryProjects, "deployments", rbac.ActionRead},
		{rbac.CategoryUsers, "users", rbac.ActionRead},
		{rbac.CategorySupport, "tickets", rbac.ActionUpdate},
		{rbac.CategoryBilling, "invoices", rbac.ActionRead},
		{rbac.CategorySystem, "roles", rbac.ActionRead},
		{rbac.CategorySystem, "hierarchy", rbac.ActionRead},
	}},
	{RoleDeveloper, "Developer", "Builds and ships client projects", rbac.BaseRoleDeveloper, []grant{
		{rbac.CategoryProjects, "projects", rbac.ActionRead},
		{rbac.CategoryProjects, "deployments", rbac.ActionCreate},
		{rbac.CategorySupport, "tickets", rbac.ActionRead},
		{rbac.CategorySystem, "hierarchy", rbac.ActionRead},
	}},
	{RoleSupport, "Support Agent", "Handles client tickets", rbac.BaseRoleSupport, []grant{
		{rbac.CategorySupport, "tickets", rbac.ActionUpdate},
		{rbac.CategoryUsers, "users", rbac.ActionRead},
	}},
	{RoleClient, "Client", "Customer portal access", rbac.BaseRoleClient, []grant{
		{rbac.CategoryProjects, "projects", rbac.ActionRead},
		{rbac.CategorySupport, "tickets", rbac.ActionCreate},
		{rbac.CategoryBilling, "invoices", rbac.ActionRead},
	}},
}

// Roles returns one valid role per base tier, built from the catalog.
func Roles(now time.Time) []rbac.Role {
	byID := make(map[string]rbac.Permission)
	for _, p := range Catalog() {
		byID[p.ID] = p
	}
	out := make([]rbac.Role, 0, len(roleGrants))
	for _, def := range roleGrants {
		role := rbac.Role{
			ID:          def.id,
			Name:        def.name,
			Description: def.description,
			BaseRole:    def.base,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		for _, g := range def.grants {
			role.Permissions = append(role.Permissions, byID[PermissionID(g.category, g.resource, g.action)])
		}
		out = append(out, role)
	}
	return out
}

// Users returns one active account per seeded role. cost is the bcrypt cost.
func Users(now time.Time, cost int) ([]users.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}
	accounts := []struct{ id, email, name, role string }{
		{"user-admin", "admin@sentinel.local", "Ada Admin", RoleAdmin},
		{"user-manager", "manager@sentinel.local", "Max Manager", RoleManager},
		{"user-developer", "dev@sentinel.local", "Dana Developer", RoleDeveloper},
		{"user-support", "support@sentinel.local", "Sam Support", RoleSupport},
		{"user-client", "client@sentinel.local", "Casey Client", RoleClient},
	}
	out := make([]users.User, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, users.User{
			ID:           a.id,
			Email:        a.email,
			Name:         a.name,
			PasswordHash: string(hash),
			RoleID:       a.role,
			Permissions:  []string{},
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return out, nil
}

// CatalogStore receives permissions and roles.
type CatalogStore interface {
	CreatePermission(ctx context.Context, p rbac.Permission) (rbac.Permission, error)
	CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error)
}

// UserStore receives accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u users.User) (users.User, error)
}

// Options tunes Apply.
type Options struct {
	Now      time.Time
	HashCost int
	Logger   *slog.Logger
}

// Apply writes the demo data. Records that already exist are left alone.
func Apply(ctx context.Context, catalog CatalogStore, accounts UserStore, opts Options) error {
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	created := 0
	for _, p := range Catalog() {
		ok, err := skipDuplicate(catalog.CreatePermission(ctx, p))
		if err != nil {
			return fmt.Errorf("seed permission %s: %w", p.ID, err)
		}
		if ok {
			created++
		}
	}
	for _, role := range Roles(opts.Now) {
		ok, err := skipDuplicate(catalog.CreateRole(ctx, role))
		if err != nil {
			return fmt.Errorf("seed role %s: %w", role.ID, err)
		}
		if ok {
			created++
		}
	}
	if accounts != nil {
		list, err := Users(opts.Now, opts.HashCost)
		if err != nil {
			return err
		}
		for _, u := range list {
			ok, err := skipDuplicate(accounts.CreateUser(ctx, u))
			if err != nil {
				return fmt.Errorf("seed user %s: %w", u.Email, err)
			}
			if ok {
				created++
			}
		}
	}
	logger.Info("seed applied", slog.Int("created", created))
	return nil
}

func skipDuplicate[T any](_ T, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, httpx.ErrDuplicate) {
		return false, nil
	}
	return false, err
}
