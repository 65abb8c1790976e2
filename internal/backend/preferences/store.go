package preferences

import (
	"context"
	"fmt"
	"log/slog"
)

// Store keeps simple string preferences such as the last used showcase.
// Get reports ok=false when the key is not set.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Type      string `yaml:"type"`      // "memory" or "redis"
	Address   string `yaml:"address"`   // redis host:port
	Password  string `yaml:"password"`  // optional redis password
	DB        int    `yaml:"db"`        // redis logical database
	KeyPrefix string `yaml:"keyPrefix"` // prepended to every redis key
}

func NewStore(ctx context.Context, config Config) (Store, error) {
	switch config.Type {
	case "", "memory":
		slog.Info("using in-memory preference store")
		return NewMemoryStore(), nil
	case "redis":
		store, err := NewRedisStore(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis preference store: %w", err)
		}
		slog.Info("using redis preference store", "address", config.Address, "db", config.DB)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported preference store type: %s", config.Type)
	}
}
