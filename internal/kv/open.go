package kv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/finedu/internal/platform/cache"
	"github.com/p-n-ai/finedu/internal/platform/database"
)

// Store drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Options selects and configures a store backend.
type Options struct {
	Driver      string
	SQLitePath  string
	DatabaseURL string
	MaxConns    int
	MinConns    int
	CacheURL    string
	Namespace   string
}

// Open connects the configured backend. The returned func releases its resources.
func Open(ctx context.Context, opts Options) (Store, func(), error) {
	switch opts.Driver {
	case DriverMemory:
		return NewMemoryStore(), func() {}, nil

	case DriverSQLite, "":
		s, err := NewSQLiteStore(opts.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				slog.Warn("closing sqlite store", "error", err)
			}
		}, nil

	case DriverPostgres:
		db, err := database.New(ctx, database.Config{
			URL:      opts.DatabaseURL,
			MaxConns: opts.MaxConns,
			MinConns: opts.MinConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connecting database: %w", err)
		}
		s, err := NewPostgresStore(ctx, db.Pool)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return s, db.Close, nil

	case DriverRedis:
		c, err := cache.New(ctx, opts.CacheURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting cache: %w", err)
		}
		ns := opts.Namespace
		if ns == "" {
			ns = DefaultRedisNamespace
		}
		s, err := NewRedisStore(c.Client, ns)
		if err != nil {
			c.Close()
			return nil, nil, err
		}
		return s, func() {
			if err := c.Close(); err != nil {
				slog.Warn("closing cache", "error", err)
			}
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", opts.Driver)
}
