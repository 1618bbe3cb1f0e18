package roles

import (
	"github.com/sentinel-cyber/portal/internal/rbac"
)

// ErrNotFound is returned when a role or permission does not exist.
var ErrNotFound = rbac.ErrNotFound

// RoleListFilters narrows and orders role listings.
type RoleListFilters struct {
	BaseRole rbac.BaseRole
	SortBy   string // name, rank
	SortDir  string // asc, desc
}

// PermissionInput references a catalog permission by ID or describes a new one.
type PermissionInput struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty" validate:"omitempty,oneof=users projects security support billing system"`
	Action      string `json:"action,omitempty" validate:"omitempty,oneof=create read update delete manage"`
	Resource    string `json:"resource,omitempty" validate:"max=128"`
}

// CreateRoleInput captures the payload for creating a role.
type CreateRoleInput struct {
	Name        string            `json:"name" validate:"max=120"`
	Description string            `json:"description" validate:"max=500"`
	BaseRole    string            `json:"baseRole" validate:"omitempty,oneof=admin manager developer support client"`
	Permissions []PermissionInput `json:"permissions" validate:"dive"`
}

// UpdateRoleInput replaces the editable fields of a role.
type UpdateRoleInput = CreateRoleInput

// CreatePermissionInput captures the payload for adding a catalog permission.
type CreatePermissionInput struct {
	Name        string `json:"name" validate:"max=120"`
	Description string `json:"description" validate:"max=500"`
	Category    string `json:"category" validate:"required,oneof=users projects security support billing system"`
	Action      string `json:"action" validate:"required,oneof=create read update delete manage"`
	Resource    string `json:"resource" validate:"required,max=128"`
}

// PermissionIDsInput lists catalog permission ids for assign/revoke calls.
type PermissionIDsInput struct {
	PermissionIDs []string `json:"permissionIds" validate:"required,min=1,dive,required"`
}
