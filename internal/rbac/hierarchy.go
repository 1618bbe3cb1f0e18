package rbac

import "strings"

// roleHierarchy ranks base roles; only the relative order is meaningful.
var roleHierarchy = map[BaseRole]int{
	BaseRoleAdmin:     100,
	BaseRoleManager:   80,
	BaseRoleDeveloper: 60,
	BaseRoleSupport:   40,
	BaseRoleClient:    20,
}

// BaseRoles returns the tiers from highest to lowest authority.
func BaseRoles() []BaseRole {
	return []BaseRole{BaseRoleAdmin, BaseRoleManager, BaseRoleDeveloper, BaseRoleSupport, BaseRoleClient}
}

// Weight returns the hierarchy weight of a base role. Unknown tiers weigh 0.
func Weight(role BaseRole) int {
	return roleHierarchy[role]
}

// IsKnownBaseRole reports whether role is one of the fixed tiers.
func IsKnownBaseRole(role BaseRole) bool {
	_, ok := roleHierarchy[role]
	return ok
}

// ParseBaseRole normalises raw input into a known tier.
func ParseBaseRole(raw string) (BaseRole, bool) {
	role := BaseRole(strings.ToLower(strings.TrimSpace(raw)))
	return role, IsKnownBaseRole(role)
}

// IsRoleHigherThan reports whether a strictly outranks b.
func IsRoleHigherThan(a, b BaseRole) bool {
	return Weight(a) > Weight(b)
}

// IsRoleAtLeast reports whether a is at least as senior as b.
func IsRoleAtLeast(a, b BaseRole) bool {
	return Weight(a) >= Weight(b)
}
