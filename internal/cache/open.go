package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// Config selects and configures a backend.
type Config struct {
	Backend    string // memory, sqlite, redis
	TTL        time.Duration
	Capacity   int // memory only
	SQLitePath string
	Redis      RedisConfig

	ConnectAttempts uint
	ConnectDelay    time.Duration

	WriterQueue   int
	WriterWorkers int
}

// Open builds the configured store and waits until it answers a ping.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectAttempts == 0 {
		cfg.ConnectAttempts = 5
	}
	if cfg.ConnectDelay == 0 {
		cfg.ConnectDelay = time.Second
	}

	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case "", MemoryName:
		store = NewMemoryStore(cfg.Capacity)
	case SQLiteName:
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("cache.sqlite_path is required for the sqlite backend")
		}
		store, err = NewSQLiteStore(cfg.SQLitePath)
	case RedisName:
		store = NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown cache backend: %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	err = retry.Do(
		func() error { return store.Ping(ctx) },
		retry.Context(ctx),
		retry.Attempts(cfg.ConnectAttempts),
		retry.Delay(cfg.ConnectDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("cache backend not ready", "backend", store.Name(), "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("cache backend %s unreachable: %w", store.Name(), err)
	}

	logger.Info("cache backend ready", "backend", store.Name())
	return store, nil
}
