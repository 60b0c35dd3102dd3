package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrator applies the embedded goose migrations over a pgx pool.
type Migrator struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewMigrator creates a Migrator. goose output is routed through logger.
func NewMigrator(pool *pgxpool.Pool, logger *slog.Logger) (*Migrator, error) {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return &Migrator{pool: pool, logger: logger.With("component", "migration.goose")}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(m.pool)
	defer db.Close()

	from, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		m.logger.Error("migration failed", "error", err)
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	to, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get final version: %w", err)
	}

	m.logger.Info("migration completed", "from_version", from, "to_version", to)
	return nil
}

// Down rolls back the given number of migrations.
func (m *Migrator) Down(ctx context.Context, steps int) error {
	db := stdlib.OpenDBFromPool(m.pool)
	defer db.Close()

	for i := 0; i < steps; i++ {
		if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("failed to run down migration: %w", err)
		}
	}
	m.logger.Info("down migration completed", "steps", steps)
	return nil
}

// Status prints the applied state of every migration through the goose logger.
func (m *Migrator) Status(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(m.pool)
	defer db.Close()

	if err := goose.StatusContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}
	return nil
}

// Version returns the latest applied migration version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	db := stdlib.OpenDBFromPool(m.pool)
	defer db.Close()

	return goose.GetDBVersionContext(ctx, db)
}
