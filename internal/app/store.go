package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinel-cyber/portal/internal/auth"
	"github.com/sentinel-cyber/portal/internal/platform/db"
	"github.com/sentinel-cyber/portal/internal/roles"
	"github.com/sentinel-cyber/portal/internal/seed"
	"github.com/sentinel-cyber/portal/internal/shared"
	"github.com/sentinel-cyber/portal/internal/users"
)

// Stores bundles the repositories selected by STORE_DRIVER.
type Stores struct {
	Roles  roles.RepositoryPort
	Users  users.RepositoryPort
	Auth   auth.Repository
	Audit  *shared.AuditLogger
	Pool   *pgxpool.Pool
	Health map[string]HealthCheck
}

// Close releases the database pool when one is open.
func (s *Stores) Close() {
	if s != nil && s.Pool != nil {
		s.Pool.Close()
	}
}

// OpenStores builds the repositories for cfg. The postgres driver migrates
// the schema before returning.
func OpenStores(ctx context.Context, cfg *Config, logger *slog.Logger) (*Stores, error) {
	switch cfg.StoreDriver {
	case StorePostgres:
		if err := db.Migrate(cfg.PGDSN); err != nil {
			return nil, err
		}
		pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{ConnectTimeout: 5 * time.Second})
		if err != nil {
			return nil, err
		}
		return &Stores{
			Roles:  roles.NewRepository(pool),
			Users:  users.NewRepository(pool),
			Auth:   auth.NewRepository(pool),
			Audit:  shared.NewAuditLogger(pool, logger),
			Pool:   pool,
			Health: map[string]HealthCheck{"postgres": db.HealthCheck(pool)},
		}, nil
	case StoreMemory:
		accounts := users.NewMemoryRepository()
		return &Stores{
			Roles:  roles.NewMemoryRepository(),
			Users:  accounts,
			Auth:   auth.NewDirectoryRepository(accounts),
			Audit:  shared.NewAuditLogger(nil, logger),
			Health: map[string]HealthCheck{},
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// Seed writes the demo catalog, roles and accounts when enabled.
func (s *Stores) Seed(ctx context.Context, cfg *Config, logger *slog.Logger) error {
	if !cfg.SeedDemoData {
		return nil
	}
	return seed.Apply(ctx, s.Roles, s.Users, seed.Options{Logger: logger})
}
