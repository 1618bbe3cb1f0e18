package users

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sentinel-cyber/portal/internal/platform/httpx"
)

// MemoryRepository keeps users in process memory.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]User
	order []string
}

// NewMemoryRepository builds an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]User)}
}

// ListUsers returns all users in creation order.
func (m *MemoryRepository) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]User, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, clone(m.users[id]))
	}
	return out, nil
}

// GetUser fetches a user by ID.
func (m *MemoryRepository) GetUser(ctx context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return clone(u), nil
}

// FindByEmail looks a user up by email, case-insensitively.
func (m *MemoryRepository) FindByEmail(ctx context.Context, email string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.order {
		if strings.EqualFold(m.users[id].Email, strings.TrimSpace(email)) {
			return clone(m.users[id]), nil
		}
	}
	return User{}, fmt.Errorf("user %s: %w", email, ErrNotFound)
}

// CreateUser stores a new user.
func (m *MemoryRepository) CreateUser(ctx context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[u.ID]; exists {
		return User{}, fmt.Errorf("user %s: %w", u.ID, httpx.ErrDuplicate)
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return User{}, fmt.Errorf("email %s: %w", u.Email, httpx.ErrDuplicate)
		}
	}
	m.users[u.ID] = clone(u)
	m.order = append(m.order, u.ID)
	return clone(u), nil
}

// UpdateUser replaces a stored user.
func (m *MemoryRepository) UpdateUser(ctx context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return User{}, fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
	}
	m.users[u.ID] = clone(u)
	return clone(u), nil
}

func clone(u User) User {
	if u.Permissions != nil {
		perms := make([]string, len(u.Permissions))
		copy(perms, u.Permissions)
		u.Permissions = perms
	}
	return u
}
