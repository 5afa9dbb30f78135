package kv

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`

// migration is one embedded schema step named <version>_<name>.sql.
type migration struct {
	version int
	name    string
	file    string
}

// migrate applies every embedded migration not yet recorded in
// schema_migrations, in version order. Each one commits on its own.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return MigrationError(err, "schema_migrations")
	}

	pending, err := pendingMigrations(ctx, db)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := m.apply(ctx, db); err != nil {
			return MigrationError(err, m.file)
		}
	}
	return nil
}

func pendingMigrations(ctx context.Context, db *sql.DB) ([]migration, error) {
	all, err := embeddedMigrations()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, MigrationError(err, "schema_migrations")
	}
	defer rows.Close()

	applied := map[int]bool{}
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, MigrationError(err, "schema_migrations")
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, MigrationError(err, "schema_migrations")
	}

	return slices.DeleteFunc(all, func(m migration) bool {
		return applied[m.version]
	}), nil
}

// embeddedMigrations lists the migration files sorted by version. Two files
// sharing a version is an error.
func embeddedMigrations() ([]migration, error) {
	files, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, MigrationError(err, "migrations")
	}

	migrations := make([]migration, 0, len(files))
	for _, file := range files {
		version, name, err := parseMigrationName(path.Base(file))
		if err != nil {
			return nil, MigrationError(err, file)
		}
		migrations = append(migrations, migration{version: version, name: name, file: file})
	}

	slices.SortFunc(migrations, func(a, b migration) int { return a.version - b.version })
	for i := 1; i < len(migrations); i++ {
		if migrations[i].version == migrations[i-1].version {
			return nil, MigrationError(fmt.Errorf("duplicate version %d", migrations[i].version), migrations[i].file)
		}
	}
	return migrations, nil
}

// parseMigrationName splits "001_kv_tables.sql" into 1 and "kv_tables".
func parseMigrationName(base string) (int, string, error) {
	prefix, name, ok := strings.Cut(strings.TrimSuffix(base, ".sql"), "_")
	if !ok || name == "" {
		return 0, "", fmt.Errorf("expected <version>_<name>.sql, got %q", base)
	}
	version, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", fmt.Errorf("bad version in %q: %w", base, err)
	}
	return version, name, nil
}

func (m migration) apply(ctx context.Context, db *sql.DB) error {
	body, err := migrationFiles.ReadFile(m.file)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.version, m.name); err != nil {
		return err
	}
	return tx.Commit()
}
