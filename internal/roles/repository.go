package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinel-cyber/portal/internal/platform/db"
	"github.com/sentinel-cyber/portal/internal/platform/httpx"
	"github.com/sentinel-cyber/portal/internal/rbac"
)

const uniqueViolation = "23505"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, name, description, base_role, created_at, updated_at`

// ListRoles returns all roles with their permissions.
func (r *Repository) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []rbac.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range roles {
		perms, err := r.rolePermissions(ctx, r.pool, roles[i].ID)
		if err != nil {
			return nil, err
		}
		roles[i].Permissions = perms
	}
	return roles, nil
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id string) (rbac.Role, error) {
	role, err := scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Role{}, fmt.Errorf("role %s: %w", id, ErrNotFound)
		}
		return rbac.Role{}, err
	}
	role.Permissions, err = r.rolePermissions(ctx, r.pool, id)
	if err != nil {
		return rbac.Role{}, err
	}
	return role, nil
}

// CreateRole inserts a role, any permissions it introduces and its assignments.
func (r *Repository) CreateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO roles (id, name, description, base_role, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			role.ID, role.Name, role.Description, string(role.BaseRole), role.CreatedAt, role.UpdatedAt)
		if err != nil {
			return translate(err)
		}
		return replacePermissions(ctx, tx, role)
	})
	if err != nil {
		return rbac.Role{}, err
	}
	return r.GetRole(ctx, role.ID)
}

// UpdateRole replaces the editable fields and permission set of a role.
func (r *Repository) UpdateRole(ctx context.Context, role rbac.Role) (rbac.Role, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE roles SET name = $2, description = $3, base_role = $4, updated_at = $5 WHERE id = $1`,
			role.ID, role.Name, role.Description, string(role.BaseRole), role.UpdatedAt)
		if err != nil {
			return translate(err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("role %s: %w", role.ID, ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, role.ID); err != nil {
			return err
		}
		return replacePermissions(ctx, tx, role)
	})
	if err != nil {
		return rbac.Role{}, err
	}
	return r.GetRole(ctx, role.ID)
}

// DeleteRole removes a role by ID. Returns ErrNotFound if nothing was deleted.
func (r *Repository) DeleteRole(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %s: %w", id, ErrNotFound)
	}
	return nil
}

const permissionColumns = `id, name, description, category, action, resource`

// ListPermissions returns the permission catalog.
func (r *Repository) ListPermissions(ctx context.Context) ([]rbac.Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY category, resource, action`)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

// GetPermissions resolves ids against the catalog in the order given.
func (r *Repository) GetPermissions(ctx context.Context, ids []string) ([]rbac.Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	found, err := collectPermissions(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]rbac.Permission, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]rbac.Permission, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("permission %s: %w", id, ErrNotFound)
		}
		out = append(out, p)
	}
	return out, nil
}

// CreatePermission adds a permission to the catalog.
func (r *Repository) CreatePermission(ctx context.Context, p rbac.Permission) (rbac.Permission, error) {
	_, err := r.pool.Exec(ctx, `INSERT INTO permissions (`+permissionColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Name, p.Description, string(p.Category), string(p.Action), p.Resource)
	if err != nil {
		return rbac.Permission{}, translate(err)
	}
	return p, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) rolePermissions(ctx context.Context, q querier, roleID string) ([]rbac.Permission, error) {
	rows, err := q.Query(ctx, `SELECT p.id, p.name, p.description, p.category, p.action, p.resource
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY rp.position`, roleID)
	if err != nil {
		return nil, err
	}
	return collectPermissions(rows)
}

func replacePermissions(ctx context.Context, tx pgx.Tx, role rbac.Role) error {
	for i, p := range role.Permissions {
		if _, err := tx.Exec(ctx, `INSERT INTO permissions (`+permissionColumns+`) VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT DO NOTHING`,
			p.ID, p.Name, p.Description, string(p.Category), string(p.Action), p.Resource); err != nil {
			return translate(err)
		}
		var id string
		if err := tx.QueryRow(ctx, `SELECT id FROM permissions WHERE category = $1 AND action = $2 AND resource = $3`,
			string(p.Category), string(p.Action), p.Resource).Scan(&id); err != nil {
			return translate(err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO role_permissions (role_id, permission_id, position) VALUES ($1, $2, $3)`, role.ID, id, i); err != nil {
			return translate(err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (rbac.Role, error) {
	var role rbac.Role
	var base string
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &base, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return rbac.Role{}, err
	}
	role.BaseRole = rbac.BaseRole(base)
	return role, nil
}

func collectPermissions(rows pgx.Rows) ([]rbac.Permission, error) {
	defer rows.Close()
	perms := []rbac.Permission{}
	for rows.Next() {
		var p rbac.Permission
		var category, action string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &category, &action, &p.Resource); err != nil {
			return nil, err
		}
		p.Category = rbac.Category(category)
		p.Action = rbac.Action(action)
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func translate(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, httpx.ErrDuplicate)
	}
	return err
}
