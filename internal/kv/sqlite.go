package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite implements Store on an embedded database. Strings, hashes and sets
// live in their own tables; a key is expected to hold one type at a time.
type SQLite struct {
	db   *sql.DB
	path string
}

// NewSQLite opens (or creates) the database at path and applies migrations.
// ":memory:" gives a private in-memory store.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, ConnectError(fmt.Errorf("failed to open database: %w", err), path)
	}

	// Single writer. This also keeps ":memory:" on one connection so every
	// query sees the same database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLite{db: db, path: path}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, ConnectError(err, path)
	}

	return s, nil
}

// Increment is a single upsert so concurrent callers never see the same value.
func (s *SQLite) Increment(ctx context.Context, key string) (int64, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO kv_strings (key, value) VALUES (?, '1')
		ON CONFLICT(key) DO UPDATE SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT)
		RETURNING value
	`, key).Scan(&value)
	if err != nil {
		return 0, CommandError(err, "INCR", key)
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, CommandError(err, "INCR", key)
	}
	return n, nil
}

func (s *SQLite) GetFields(ctx context.Context, key string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT field, value FROM kv_hashes WHERE key = ?`, key)
	if err != nil {
		return nil, CommandError(err, "HGETALL", key)
	}
	defer rows.Close()

	fields := make(map[string]string)
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, CommandError(err, "HGETALL", key)
		}
		fields[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, CommandError(err, "HGETALL", key)
	}

	return fields, nil
}

func (s *SQLite) SetFields(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CommandError(err, "HSET", key)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO kv_hashes (key, field, value) VALUES (?, ?, ?)
		ON CONFLICT(key, field) DO UPDATE SET value = excluded.value
	`)
	if err != nil {
		return CommandError(err, "HSET", key)
	}
	defer stmt.Close()

	for field, value := range fields {
		if _, err := stmt.ExecContext(ctx, key, field, value); err != nil {
			return CommandError(err, "HSET", key)
		}
	}

	if err := tx.Commit(); err != nil {
		return CommandError(err, "HSET", key)
	}
	return nil
}

func (s *SQLite) SetField(ctx context.Context, key, field, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv_hashes (key, field, value) VALUES (?, ?, ?)
		ON CONFLICT(key, field) DO UPDATE SET value = excluded.value
	`, key, field, value)
	if err != nil {
		return CommandError(err, "HSET", key)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CommandError(err, "DEL", key)
	}
	defer tx.Rollback()

	for _, query := range []string{
		`DELETE FROM kv_strings WHERE key = ?`,
		`DELETE FROM kv_hashes WHERE key = ?`,
		`DELETE FROM kv_sets WHERE key = ?`,
	} {
		if _, err := tx.ExecContext(ctx, query, key); err != nil {
			return CommandError(err, "DEL", key)
		}
	}

	if err := tx.Commit(); err != nil {
		return CommandError(err, "DEL", key)
	}
	return nil
}

func (s *SQLite) AddMember(ctx context.Context, key, member string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO kv_sets (key, member) VALUES (?, ?)`, key, member)
	if err != nil {
		return CommandError(err, "SADD", key)
	}
	return nil
}

func (s *SQLite) RemoveMember(ctx context.Context, key, member string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_sets WHERE key = ? AND member = ?`, key, member)
	if err != nil {
		return CommandError(err, "SREM", key)
	}
	return nil
}

func (s *SQLite) Members(ctx context.Context, key string) ([]string, error) {
	members, err := s.queryStrings(ctx, `SELECT member FROM kv_sets WHERE key = ?`, key)
	if err != nil {
		return nil, CommandError(err, "SMEMBERS", key)
	}
	return members, nil
}

func (s *SQLite) GetString(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_strings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, CommandError(err, "GET", key)
	}
	return value, true, nil
}

func (s *SQLite) CompareAndSwap(ctx context.Context, key, old, next string) (bool, error) {
	return s.execOne(ctx, "CAS", key, `UPDATE kv_strings SET value = ? WHERE key = ? AND value = ?`, next, key, old)
}

func (s *SQLite) CompareAndDelete(ctx context.Context, key, old string) (bool, error) {
	return s.execOne(ctx, "CAD", key, `DELETE FROM kv_strings WHERE key = ? AND value = ?`, key, old)
}

// execOne runs a conditional write and reports whether it hit a row.
func (s *SQLite) execOne(ctx context.Context, op, key, query string, args ...any) (bool, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, CommandError(err, op, key)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, CommandError(err, op, key)
	}
	return n == 1, nil
}

func (s *SQLite) SetStringNX(ctx context.Context, key, value string) (bool, error) {
	return s.execOne(ctx, "SETNX", key, `INSERT OR IGNORE INTO kv_strings (key, value) VALUES (?, ?)`, key, value)
}

// Keys relies on GLOB, which shares the redis pattern syntax.
func (s *SQLite) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := s.queryStrings(ctx, `
		SELECT key FROM kv_strings WHERE key GLOB ?
		UNION SELECT key FROM kv_hashes WHERE key GLOB ?
		UNION SELECT key FROM kv_sets WHERE key GLOB ?
	`, pattern, pattern, pattern)
	if err != nil {
		return nil, CommandError(err, "SCAN", pattern)
	}
	return keys, nil
}

func (s *SQLite) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, rows.Err()
}

func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return CommandError(err, "PING", s.path)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if err := s.db.Close(); err != nil {
		return CloseError(err, s.path)
	}
	return nil
}
