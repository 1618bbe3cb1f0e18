package shared

// Resources guarded by the portal API. Permissions reference these in their
// resource field.
const (
	ResourceRoles       = "roles"
	ResourcePermissions = "permissions"
	ResourceUsers       = "users"
	ResourceHierarchy   = "hierarchy"
	ResourceAccess      = "access"
)

// CoreResources lists the resources owned by the access-control API.
func CoreResources() []string {
	return []string{
		ResourceRoles,
		ResourcePermissions,
		ResourceUsers,
		ResourceHierarchy,
		ResourceAccess,
	}
}
