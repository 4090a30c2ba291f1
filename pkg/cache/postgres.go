package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS ogc_cache_entries (
	key     TEXT PRIMARY KEY,
	payload JSONB NOT NULL,
	expiry  BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ogc_cache_entries_expiry ON ogc_cache_entries(expiry);
`

// PostgresStore keeps entries in a PostgreSQL table, so several processes
// can share one cache.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// OpenPostgresStore connects to dsn and applies the schema.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cache: ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cache: apply postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*Entry, error) {
	var (
		payload []byte
		expiry  int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT payload, expiry FROM ogc_cache_entries WHERE key = $1`, key,
	).Scan(&payload, &expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache: postgres get: %w", err)
	}
	return &Entry{Key: key, Payload: payload, Expiry: time.UnixMilli(expiry)}, nil
}

func (s *PostgresStore) Set(ctx context.Context, e *Entry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ogc_cache_entries (key, payload, expiry)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			payload = EXCLUDED.payload,
			expiry  = EXCLUDED.expiry
	`, e.Key, []byte(e.Payload), e.Expiry.UnixMilli())
	if err != nil {
		return fmt.Errorf("cache: postgres set: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM ogc_cache_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("cache: postgres delete: %w", err)
	}
	return nil
}

func (s *PostgresStore) Purge(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ogc_cache_entries WHERE expiry <= $1`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cache: postgres purge: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM ogc_cache_entries`); err != nil {
		return fmt.Errorf("cache: postgres clear: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
