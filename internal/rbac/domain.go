package rbac

import "time"

// BaseRole is one of the fixed authority tiers a role is ranked by.
type BaseRole string

const (
	BaseRoleAdmin     BaseRole = "admin"
	BaseRoleManager   BaseRole = "manager"
	BaseRoleDeveloper BaseRole = "developer"
	BaseRoleSupport   BaseRole = "support"
	BaseRoleClient    BaseRole = "client"
)

// Category groups permissions by the area of the portal they govern.
type Category string

const (
	CategoryUsers    Category = "users"
	CategoryProjects Category = "projects"
	CategorySecurity Category = "security"
	CategorySupport  Category = "support"
	CategoryBilling  Category = "billing"
	CategorySystem   Category = "system"
)

// Action is the verb a permission grants over its resource.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// Categories lists every known permission category.
func Categories() []Category {
	return []Category{CategoryUsers, CategoryProjects, CategorySecurity, CategorySupport, CategoryBilling, CategorySystem}
}

// Actions lists every known permission action.
func Actions() []Action {
	return []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionManage}
}

// Permission represents an atomic grant of one action over one resource.
type Permission struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Action      Action   `json:"action"`
	Resource    string   `json:"resource"`
}

// Key identifies the thing a permission governs, independent of its action.
func (p Permission) Key() string {
	return string(p.Category) + ":" + p.Resource
}

// Role is a named bundle of permissions ranked by its base role.
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	BaseRole    BaseRole     `json:"baseRole"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Subject is the authorization view of a user: a role reference plus
// permission ids granted to the user directly.
type Subject struct {
	UserID        string
	RoleID        string
	PermissionIDs []string
	Active        bool
}
