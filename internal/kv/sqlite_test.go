package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(context.Background(), ":memory:")
	require.NoError(t, err, "failed to create test store")
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_Contract(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		return setupTestDB(t)
	})
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskapi.db")
	ctx := context.Background()

	s, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	_, err = s.Increment(ctx, "tags:counter")
	require.NoError(t, err)
	require.NoError(t, s.SetFields(ctx, "tag:1", map[string]string{"id": "1", "name": "Backend"}))
	require.NoError(t, s.Close())

	// migrations are idempotent
	s, err = NewSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Increment(ctx, "tags:counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	fields, err := s.GetFields(ctx, "tag:1")
	require.NoError(t, err)
	assert.Equal(t, "Backend", fields["name"])
}

func TestSQLite_ClosedStoreReturnsCommandError(t *testing.T) {
	s, err := NewSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.GetFields(context.Background(), "tag:1")
	require.ErrorIs(t, err, ErrCommand)
}

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		base        string
		wantVersion int
		wantName    string
		wantErr     bool
	}{
		{base: "001_kv_tables.sql", wantVersion: 1, wantName: "kv_tables"},
		{base: "12_add_index.sql", wantVersion: 12, wantName: "add_index"},
		{base: "kv_tables.sql", wantErr: true},
		{base: "nounderscore.sql", wantErr: true},
		{base: "002_.sql", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			version, name, err := parseMigrationName(tt.base)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
			assert.Equal(t, tt.wantName, name)
		})
	}
}

func TestEmbeddedMigrations_Ordered(t *testing.T) {
	migrations, err := embeddedMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].version, migrations[i].version)
	}
}

func TestMigrate_RecordsAndSkipsApplied(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	pending, err := pendingMigrations(ctx, s.db)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, migrate(ctx, s.db))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	all, err := embeddedMigrations()
	require.NoError(t, err)
	assert.Equal(t, len(all), count)
}

func TestMigrate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "taskapi.db"))
	require.ErrorIs(t, err, ErrConnect)
	require.ErrorIs(t, err, ErrMigration)
}
