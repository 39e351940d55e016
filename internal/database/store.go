package database

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stemsi/provpass/internal/config"
	"github.com/stemsi/provpass/internal/repository"
)

// NewSessionStore connects the backend selected by cfg.StoreDriver, applying
// migrations for the SQL backends.
func NewSessionStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (repository.SessionStore, error) {
	switch cfg.StoreDriver {
	case config.StoreSQLite:
		if err := Migrate(cfg, log); err != nil {
			return nil, err
		}
		db, err := OpenSQLite(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return repository.NewSQLiteSessionStore(db), nil

	case config.StorePostgres:
		if err := Migrate(cfg, log); err != nil {
			return nil, err
		}
		pool, err := OpenPostgres(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return repository.NewPostgresSessionStore(pool), nil

	case config.StoreRedis:
		rdb, err := OpenRedis(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return repository.NewRedisSessionStore(rdb), nil

	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.StoreDriver)
	}
}
