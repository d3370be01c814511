package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMinio    = "minio"
)

// Config selects and parameterizes a backend.
type Config struct {
	Backend          string
	SQLitePath       string
	RedisAddr        string
	RedisPassword    string
	RedisPrefix      string
	DatabaseURL      string
	MinioEndpoint    string
	MinioAccessKey   string
	MinioSecretKey   string
	MinioBucket      string
	MinioUseSSL      bool
	FallbackToMemory bool
}

// Open builds the configured backend. When the backend cannot be reached and
// FallbackToMemory is set, an in-memory store is returned instead so the
// reading list stays usable without persistence.
func Open(ctx context.Context, cfg Config) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendSQLite
	}
	s, err := open(ctx, backend, cfg)
	if err == nil {
		return s, nil
	}
	if !cfg.FallbackToMemory || backend == BackendMemory {
		return nil, err
	}
	slog.Warn("storage backend unavailable, using in-memory store", "backend", backend, "err", err)
	return NewMemoryStore(), nil
}

func open(ctx context.Context, backend string, cfg Config) (Store, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite:
		return NewSQLiteStore(cfg.SQLitePath)
	case BackendRedis:
		s, err := NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return s, nil
	case BackendPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("database URL required")
		}
		s, err := NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		return s, nil
	case BackendMinio:
		return NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
