package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates the kv_entries table if needed and returns a store over pool.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	if _, err := pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS kv_entries (
		   key        TEXT PRIMARY KEY,
		   value      TEXT NOT NULL,
		   updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		 )`,
	); err != nil {
		return nil, fmt.Errorf("create kv_entries: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_entries WHERE key = $1`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *PostgresStore) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_entries (key, value, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key,
		value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Keys(prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT key FROM kv_entries
		 WHERE starts_with(key, $1)
		 ORDER BY key COLLATE "C" ASC`,
		prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect keys: %w", err)
	}
	return keys, nil
}

// HealthCheck verifies the database connection is alive.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
