package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key     TEXT PRIMARY KEY,
	payload BLOB NOT NULL,
	expiry  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_expiry ON cache_entries(expiry);
`

// SQLiteStore keeps entries in a SQLite database.
type SQLiteStore struct {
	conn *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLiteStore opens (or creates) the database at path and applies the schema.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: ping sqlite: %w", err)
	}
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("cache: apply sqlite schema: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Entry, error) {
	var (
		payload []byte
		expiry  int64
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT payload, expiry FROM cache_entries WHERE key = ?`, key,
	).Scan(&payload, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("cache: sqlite get: %w", err)
	}
	return &Entry{Key: key, Payload: payload, Expiry: time.UnixMilli(expiry)}, nil
}

func (s *SQLiteStore) Set(ctx context.Context, e *Entry) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO cache_entries (key, payload, expiry)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			expiry  = excluded.expiry
	`, e.Key, []byte(e.Payload), e.Expiry.UnixMilli())
	if err != nil {
		return fmt.Errorf("cache: sqlite set: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("cache: sqlite delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Purge(ctx context.Context, now time.Time) (int, error) {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM cache_entries WHERE expiry <= ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cache: sqlite purge: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("cache: sqlite clear: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
