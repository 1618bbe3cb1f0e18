package rbac

// EffectivePermissions layers hierarchy-implied grants on top of the role's
// declared permissions. Tiers only re-affirm permissions the role already
// declares; nothing outside role.Permissions is ever returned.
func EffectivePermissions(role Role) []Permission {
	permissions := make([]Permission, len(role.Permissions))
	copy(permissions, role.Permissions)

	if IsRoleAtLeast(role.BaseRole, BaseRoleAdmin) {
		return permissions
	}

	if IsRoleAtLeast(role.BaseRole, BaseRoleManager) {
		permissions = appendMatching(permissions, func(p Permission) bool {
			return p.Category == CategoryProjects || p.Category == CategoryUsers
		})
	}
	if IsRoleAtLeast(role.BaseRole, BaseRoleDeveloper) {
		permissions = appendMatching(permissions, func(p Permission) bool {
			return p.Category == CategoryProjects && (p.Action == ActionRead || p.Action == ActionUpdate)
		})
	}
	if IsRoleAtLeast(role.BaseRole, BaseRoleSupport) {
		permissions = appendMatching(permissions, func(p Permission) bool {
			return p.Category == CategorySupport || (p.Category == CategoryProjects && p.Action == ActionRead)
		})
	}

	return dedupePermissions(permissions)
}

// appendMatching appends every entry of the current working list that
// matches. The scan covers only the entries present before appending.
func appendMatching(permissions []Permission, match func(Permission) bool) []Permission {
	n := len(permissions)
	for i := 0; i < n; i++ {
		if match(permissions[i]) {
			permissions = append(permissions, permissions[i])
		}
	}
	return permissions
}

// dedupePermissions keeps the first occurrence of each permission id.
// Permissions without an id fall back to comparing the whole value.
func dedupePermissions(permissions []Permission) []Permission {
	seenIDs := make(map[string]struct{}, len(permissions))
	seenValues := make(map[Permission]struct{})
	out := make([]Permission, 0, len(permissions))
	for _, p := range permissions {
		if p.ID != "" {
			if _, ok := seenIDs[p.ID]; ok {
				continue
			}
			seenIDs[p.ID] = struct{}{}
		} else {
			if _, ok := seenValues[p]; ok {
				continue
			}
			seenValues[p] = struct{}{}
		}
		out = append(out, p)
	}
	return out
}
