package users

import (
	"time"

	"github.com/sentinel-cyber/portal/internal/rbac"
)

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = rbac.ErrNotFound

// User represents a portal account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	RoleID       string    `json:"roleId"`
	Permissions  []string  `json:"permissions"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Subject returns the authorization view of the user.
func (u User) Subject() rbac.Subject {
	ids := make([]string, len(u.Permissions))
	copy(ids, u.Permissions)
	return rbac.Subject{UserID: u.ID, RoleID: u.RoleID, PermissionIDs: ids, Active: u.IsActive}
}

// CreateUserInput captures the payload for creating a user.
type CreateUserInput struct {
	Email       string   `json:"email" validate:"required,email"`
	Name        string   `json:"name" validate:"required,max=120"`
	Password    string   `json:"password" validate:"required,min=8"`
	RoleID      string   `json:"roleId"`
	Permissions []string `json:"permissions" validate:"dive,required"`
}

// AssignRoleInput changes the role of a user.
type AssignRoleInput struct {
	RoleID string `json:"roleId" validate:"required"`
}

// SetPermissionsInput replaces the permissions granted directly to a user.
type SetPermissionsInput struct {
	PermissionIDs []string `json:"permissionIds" validate:"dive,required"`
}
