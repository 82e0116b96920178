package storage

import (
	"context"
	"fmt"

	"dermassist/client/internal/cache"
	"dermassist/client/internal/config"
)

// Open returns the store selected by cfg.Storage.Driver.
func Open(ctx context.Context, cfg *config.AppConfig) (Store, error) {
	switch cfg.Storage.Driver {
	case "sqlite", "":
		return NewSQLiteStore(ctx, cfg.Storage.Path)
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, cfg.Redis.Prefix), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Storage.Driver)
	}
}
