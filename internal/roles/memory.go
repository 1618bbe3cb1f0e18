package roles

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sentinel-cyber/portal/internal/platform/httpx"
	"github.com/sentinel-cyber/portal/internal/rbac"
)

// MemoryRepository keeps roles and the permission catalog in process memory.
type MemoryRepository struct {
	mu          sync.RWMutex
	roles       map[string]storedRole
	permissions map[string]rbac.Permission
	order       []string
}

type storedRole struct {
	role          rbac.Role
	permissionIDs []string
}

// NewMemoryRepository builds an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		roles:       make(map[string]storedRole),
		permissions: make(map[string]rbac.Permission),
	}
}

// ListRoles returns all roles in creation order.
func (m *MemoryRepository) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rbac.Role, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.hydrate(m.roles[id]))
	}
	return out, nil
}

// GetRole fetches a role by ID.
func (m *MemoryRepository) GetRole(ctx context.Context, id string) (rbac.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.roles[id]
	if !ok {
		return rbac.Role{}, fmt.Errorf("role %s: %w", id, ErrNotFound)
	}
	return m.hydrate(stored), nil
}

// CreateRole stores a new role and any permissions it introduces.
func (m *MemoryRepository) CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.roles[role.ID]; exists {
		return rbac.Role{}, fmt.Errorf("role %s: %w", role.ID, httpx.ErrDuplicate)
	}
	if err := m.checkNameLocked(role.ID, role.Name); err != nil {
		return rbac.Role{}, err
	}
	stored := m.storeLocked(role)
	m.order = append(m.order, role.ID)
	return m.hydrate(stored), nil
}

// UpdateRole replaces a stored role including its permission set.
func (m *MemoryRepository) UpdateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.roles[role.ID]
	if !ok {
		return rbac.Role{}, fmt.Errorf("role %s: %w", role.ID, ErrNotFound)
	}
	if err := m.checkNameLocked(role.ID, role.Name); err != nil {
		return rbac.Role{}, err
	}
	role.CreatedAt = existing.role.CreatedAt
	return m.hydrate(m.storeLocked(role)), nil
}

// DeleteRole removes a role by ID.
func (m *MemoryRepository) DeleteRole(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return fmt.Errorf("role %s: %w", id, ErrNotFound)
	}
	delete(m.roles, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListPermissions returns the catalog ordered by category, resource and action.
func (m *MemoryRepository) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rbac.Permission, 0, len(m.permissions))
	for _, p := range m.permissions {
		out = append(out, p)
	}
	sortPermissions(out)
	return out, nil
}

// GetPermissions resolves ids against the catalog in the order given.
func (m *MemoryRepository) GetPermissions(ctx context.Context, ids []string) ([]rbac.Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]rbac.Permission, 0, len(ids))
	for _, id := range ids {
		p, ok := m.permissions[id]
		if !ok {
			return nil, fmt.Errorf("permission %s: %w", id, ErrNotFound)
		}
		out = append(out, p)
	}
	return out, nil
}

// CreatePermission adds a permission to the catalog.
func (m *MemoryRepository) CreatePermission(ctx context.Context, p rbac.Permission) (rbac.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.permissions[p.ID]; exists {
		return rbac.Permission{}, fmt.Errorf("permission %s: %w", p.ID, httpx.ErrDuplicate)
	}
	if _, found := m.grantLocked(p); found {
		return rbac.Permission{}, fmt.Errorf("permission %s:%s:%s: %w", p.Category, p.Action, p.Resource, httpx.ErrDuplicate)
	}
	m.permissions[p.ID] = p
	return p, nil
}

func (m *MemoryRepository) checkNameLocked(id, name string) error {
	for otherID, stored := range m.roles {
		if otherID != id && strings.EqualFold(stored.role.Name, name) {
			return fmt.Errorf("role name %q: %w", name, httpx.ErrDuplicate)
		}
	}
	return nil
}

// storeLocked saves role and registers permissions the catalog does not know
// yet. A permission whose grant is already catalogued under another id is
// linked to that entry instead.
func (m *MemoryRepository) storeLocked(role rbac.Role) storedRole {
	ids := make([]string, 0, len(role.Permissions))
	for _, p := range role.Permissions {
		if _, ok := m.permissions[p.ID]; !ok {
			if existing, found := m.grantLocked(p); found {
				p = existing
			} else {
				m.permissions[p.ID] = p
			}
		}
		ids = append(ids, p.ID)
	}
	role.Permissions = nil
	stored := storedRole{role: role, permissionIDs: ids}
	m.roles[role.ID] = stored
	return stored
}

func (m *MemoryRepository) grantLocked(p rbac.Permission) (rbac.Permission, bool) {
	for _, existing := range m.permissions {
		if existing.Category == p.Category && existing.Action == p.Action && existing.Resource == p.Resource {
			return existing, true
		}
	}
	return rbac.Permission{}, false
}

func (m *MemoryRepository) hydrate(stored storedRole) rbac.Role {
	role := stored.role
	role.Permissions = make([]rbac.Permission, 0, len(stored.permissionIDs))
	for _, id := range stored.permissionIDs {
		if p, ok := m.permissions[id]; ok {
			role.Permissions = append(role.Permissions, p)
		}
	}
	return role
}

func sortPermissions(perms []rbac.Permission) {
	sort.Slice(perms, func(i, j int) bool {
		if perms[i].Category != perms[j].Category {
			return perms[i].Category < perms[j].Category
		}
		if perms[i].Resource != perms[j].Resource {
			return perms[i].Resource < perms[j].Resource
		}
		return perms[i].Action < perms[j].Action
	})
}
