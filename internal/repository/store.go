package repository

import (
	"context"
	"fmt"

	"github.com/iconidentify/xreply/internal/config"
)

// Open returns the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return NewInMemoryStore(), nil
	case config.DriverSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		return NewPostgresStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
