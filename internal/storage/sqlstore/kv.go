// Package sqlstore is a key-value backend on sqlx, using sqlite for a
// single installation or postgres for a shared one.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const schema = `
	CREATE TABLE IF NOT EXISTS local_state (
		setting_key   TEXT PRIMARY KEY,
		setting_value TEXT NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	)`

// Open connects to the database. Sqlite files get their directory created,
// and sqlite is limited to one connection so ":memory:" databases are shared.
func Open(driver, dsn string) (*sqlx.DB, error) {
	if driver == DriverSQLite && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create state directory: %w", err)
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

type KV struct {
	db *sqlx.DB
}

// New prepares the schema and returns the store.
func New(ctx context.Context, db *sqlx.DB) (*KV, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &KV{db: db}, nil
}

func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	query := s.db.Rebind(`SELECT setting_value FROM local_state WHERE setting_key = ?`)

	err := sqlx.GetContext(ctx, s.executor(ctx), &value, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *KV) Set(ctx context.Context, key, value string) error {
	query := s.db.Rebind(`
		INSERT INTO local_state (setting_key, setting_value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (setting_key) DO UPDATE SET
			setting_value = EXCLUDED.setting_value,
			updated_at = EXCLUDED.updated_at`)

	_, err := s.executor(ctx).ExecContext(ctx, query, key, value, time.Now().UTC())
	return err
}

// SetMany writes all values in one transaction.
func (s *KV) SetMany(ctx context.Context, values map[string]string) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return s.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, k := range keys {
			if err := s.Set(txCtx, k, values[k]); err != nil {
				return fmt.Errorf("set %s: %w", k, err)
			}
		}
		return nil
	})
}

func (s *KV) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM local_state WHERE setting_key IN (?)`, keys)
	if err != nil {
		return err
	}
	_, err = s.executor(ctx).ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}
