package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRoleConfigurationMissingFields(t *testing.T) {
	problems := ValidateRoleConfiguration(Role{})
	assert.GreaterOrEqual(t, len(problems), 3)
	assert.Contains(t, problems, MsgRoleNameRequired)
	assert.Contains(t, problems, MsgBaseRoleRequired)
	assert.Contains(t, problems, MsgPermissionRequired)
}

func TestValidateRoleConfigurationBlankName(t *testing.T) {
	problems := ValidateRoleConfiguration(Role{
		Name:        "   ",
		BaseRole:    BaseRoleSupport,
		Permissions: []Permission{perm("t", CategorySupport, ActionRead, "tickets")},
	})
	assert.Equal(t, []string{"Role name is required"}, problems)
}

func TestValidateRoleConfigurationClientManage(t *testing.T) {
	problems := ValidateRoleConfiguration(Role{
		Name:        "Customer",
		BaseRole:    BaseRoleClient,
		Permissions: []Permission{perm("i", CategoryBilling, ActionManage, "invoices")},
	})
	assert.Equal(t, []string{"Client roles cannot have manage permissions"}, problems)
}

func TestValidateRoleConfigurationManageAllowedAboveClient(t *testing.T) {
	problems := ValidateRoleConfiguration(Role{
		Name:        "Support lead",
		BaseRole:    BaseRoleSupport,
		Permissions: []Permission{perm("t", CategorySupport, ActionManage, "tickets")},
	})
	assert.Empty(t, problems)
}

func TestValidateRoleConfigurationDuplicateKey(t *testing.T) {
	problems := ValidateRoleConfiguration(Role{
		Name:     "Dev",
		BaseRole: BaseRoleDeveloper,
		Permissions: []Permission{
			perm("r", CategoryProjects, ActionRead, "projects"),
			perm("u", CategoryProjects, ActionUpdate, "projects"),
			perm("d", CategoryProjects, ActionDelete, "projects"),
		},
	})
	assert.Equal(t, []string{
		"Duplicate permission for projects:projects",
		"Duplicate permission for projects:projects",
	}, problems)
}

func TestValidateRoleConfigurationValidRole(t *testing.T) {
	problems := ValidateRoleConfiguration(Role{
		Name:        "Reader",
		BaseRole:    BaseRoleClient,
		Permissions: []Permission{perm("r", CategoryProjects, ActionRead, "projects")},
	})
	assert.Nil(t, problems)
}
