package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"islamai-relay/internal/models"
)

// SQLiteStore keeps settings in a key/value table.
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create settings dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite single-writer: cap pool
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{conn: conn}
	if err := s.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	return err
}

func (s *SQLiteStore) GetKey(ctx context.Context, p models.ProviderName) (string, error) {
	if err := checkProvider(p); err != nil {
		return "", err
	}
	return s.get(ctx, keyName(p), "")
}

func (s *SQLiteStore) SetKey(ctx context.Context, p models.ProviderName, value string) error {
	if err := checkProvider(p); err != nil {
		return err
	}
	return s.set(ctx, keyName(p), value)
}

func (s *SQLiteStore) ActiveModel(ctx context.Context) (string, error) {
	return s.get(ctx, activeModelKey, DefaultActiveModel)
}

func (s *SQLiteStore) SetActiveModel(ctx context.Context, alias string) error {
	return s.set(ctx, activeModelKey, alias)
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) get(ctx context.Context, key, fallback string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) set(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx, `INSERT OR REPLACE INTO settings (key, value, updated_at) VALUES (?, ?, datetime('now'))`,
		key, value)
	if err != nil {
		return fmt.Errorf("write setting %q: %w", key, err)
	}
	return nil
}
