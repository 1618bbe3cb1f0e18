package rbac

import (
	"fmt"
	"strings"
)

// Validation messages returned by ValidateRoleConfiguration.
const (
	MsgRoleNameRequired       = "Role name is required"
	MsgBaseRoleRequired       = "Base role is required"
	MsgPermissionRequired     = "Role must have at least one permission"
	MsgClientManageForbidden  = "Client roles cannot have manage permissions"
	msgDuplicatePermissionFmt = "Duplicate permission for %s"
)

// ValidateRoleConfiguration checks a role definition before it is saved.
// An empty result means the role is valid; callers decide what to do with
// the problems.
func ValidateRoleConfiguration(role Role) []string {
	var problems []string

	if strings.TrimSpace(role.Name) == "" {
		problems = append(problems, MsgRoleNameRequired)
	}
	if role.BaseRole == "" {
		problems = append(problems, MsgBaseRoleRequired)
	}
	if len(role.Permissions) == 0 {
		problems = append(problems, MsgPermissionRequired)
	}

	seen := make(map[string]struct{}, len(role.Permissions))
	for _, p := range role.Permissions {
		key := p.Key()
		if _, dup := seen[key]; dup {
			problems = append(problems, fmt.Sprintf(msgDuplicatePermissionFmt, key))
			continue
		}
		seen[key] = struct{}{}
	}

	if role.BaseRole == BaseRoleClient {
		for _, p := range role.Permissions {
			if p.Action == ActionManage {
				problems = append(problems, MsgClientManageForbidden)
				break
			}
		}
	}

	return problems
}
