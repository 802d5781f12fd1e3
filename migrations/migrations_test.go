package migrations_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/census-api/migrations"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqldb.Close() })
	return sqldb
}

func tableExists(t *testing.T, sqldb *sql.DB) bool {
	t.Helper()
	var n int
	err := sqldb.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'participants'`).Scan(&n)
	require.NoError(t, err)
	return n == 1
}

func TestUp_CreatesTableAndIsIdempotent(t *testing.T) {
	sqldb := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, migrations.Up(ctx, sqldb, "sqlite3", nil))
	require.NoError(t, migrations.Up(ctx, sqldb, "sqlite3", nil))
	assert.True(t, tableExists(t, sqldb))

	// The pool survives the migrator.
	require.NoError(t, sqldb.Ping())
}

func TestMigrator_VersionAndDown(t *testing.T) {
	sqldb := openSQLite(t)
	ctx := context.Background()

	mg, err := migrations.New(ctx, sqldb, "sqlite3", nil)
	require.NoError(t, err)
	defer mg.Close()

	_, _, ok, err := mg.Version()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mg.Up())
	v, dirty, ok, err := mg.Version()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, dirty)
	assert.EqualValues(t, 1, v)

	require.NoError(t, mg.Down(1))
	assert.False(t, tableExists(t, sqldb))
}

func TestNew_UnknownDriver(t *testing.T) {
	sqldb := openSQLite(t)
	_, err := migrations.New(context.Background(), sqldb, "oracle", nil)
	assert.Error(t, err)
}
