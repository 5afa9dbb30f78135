package kv

import (
	"context"
	"fmt"
)

const (
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

var (
	_ Store = (*Redis)(nil)
	_ Store = (*SQLite)(nil)
)

// Config chooses and configures a backend.
type Config struct {
	Backend    string
	Redis      RedisConfig
	SQLitePath string
}

// Open returns the configured backend, connected and ready.
func Open(ctx context.Context, cfg Config, log Logger) (Store, error) {
	switch cfg.Backend {
	case BackendRedis:
		return NewRedis(ctx, cfg.Redis, log)
	case BackendSQLite:
		log.Infof("opening sqlite store: %s", cfg.SQLitePath)
		return NewSQLite(ctx, cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
