package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinel-cyber/portal/internal/shared"
	"github.com/sentinel-cyber/portal/internal/users"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	CreateSession(ctx context.Context, rec SessionRecord) error
	DeleteSession(ctx context.Context, id string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches credentials by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, email, password_hash, is_active FROM users WHERE lower(email) = lower($1)`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// CreateSession persists a login session for auditing.
func (r *PGRepository) CreateSession(ctx context.Context, rec SessionRecord) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO auth_sessions (id, user_id, created_at, expires_at, ip, user_agent)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))`,
		rec.ID, rec.UserID, rec.CreatedAt, rec.ExpiresAt, rec.IP, rec.UserAgent)
	return err
}

// DeleteSession removes a session record.
func (r *PGRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id)
	return err
}

// UserFinder looks accounts up by email.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (users.User, error)
}

// DirectoryRepository reads credentials from a user store and keeps
// session records in memory.
type DirectoryRepository struct {
	users    UserFinder
	mu       sync.Mutex
	sessions map[string]SessionRecord
}

// NewDirectoryRepository wraps a user store.
func NewDirectoryRepository(finder UserFinder) *DirectoryRepository {
	return &DirectoryRepository{users: finder, sessions: make(map[string]SessionRecord)}
}

// FindByEmail fetches credentials by email.
func (r *DirectoryRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, err := r.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", email, shared.ErrNotFound)
	}
	return &User{ID: u.ID, Email: u.Email, PasswordHash: u.PasswordHash, IsActive: u.IsActive}, nil
}

// CreateSession records a login session.
func (r *DirectoryRepository) CreateSession(ctx context.Context, rec SessionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[rec.ID] = rec
	r.pruneLocked(time.Now())
	return nil
}

// DeleteSession removes a session record.
func (r *DirectoryRepository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// Sessions returns the live session records of a user.
func (r *DirectoryRepository) Sessions(userID string) []SessionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []SessionRecord
	for _, rec := range r.sessions {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out
}

func (r *DirectoryRepository) pruneLocked(now time.Time) {
	for id, rec := range r.sessions {
		if now.After(rec.ExpiresAt) {
			delete(r.sessions, id)
		}
	}
}

var (
	_ Repository = (*PGRepository)(nil)
	_ Repository = (*DirectoryRepository)(nil)
)
