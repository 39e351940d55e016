package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	"github.com/stemsi/provpass/internal/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// NewMigrator builds a migrate instance for the configured SQL store using the
// embedded migration files.
func NewMigrator(cfg *config.Config) (*migrate.Migrate, error) {
	var dir, dbURL string
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		dir, dbURL = "migrations/sqlite", "sqlite://"+cfg.SQLitePath
	case config.StorePostgres:
		dir, dbURL = "migrations/postgres", cfg.DatabaseURL
	default:
		return nil, fmt.Errorf("store driver %q has no migrations", cfg.StoreDriver)
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return m, nil
}

// Migrate applies all pending up migrations.
func Migrate(cfg *config.Config, log zerolog.Logger) error {
	m, err := NewMigrator(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration version: %w", err)
	}

	log.Info().
		Str("driver", string(cfg.StoreDriver)).
		Uint("version", version).
		Bool("dirty", dirty).
		Msg("Schema migrated")

	return nil
}
