package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/census-api/config"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ADMIN_USER", "admin")
	t.Setenv("ADMIN_PASSWORD", "pw")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "admin", cfg.AdminUser)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, ":3000", cfg.Addr())
	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Equal(t, 10, cfg.DB.PoolSize)
	assert.Equal(t, 10*time.Second, cfg.DB.QueryTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.DB.SlowQuery)
	assert.True(t, cfg.DB.Migrate)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"-"}, cfg.DateSeparators())

	dsn, err := cfg.DB.DSN()
	require.NoError(t, err)
	assert.Equal(t, "root@tcp(localhost:3306)/census?clientFoundRows=true&parseTime=true", dsn)
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("ADMIN_USER", "")
	t.Setenv("ADMIN_PASSWORD", "")
	os.Unsetenv("ADMIN_USER")
	os.Unsetenv("ADMIN_PASSWORD")

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "8080")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "pg")
	t.Setenv("DB_USER", "census")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DOB_ALLOW_SLASH", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example;https://b.example")
	t.Setenv("DB_QUERY_TIMEOUT", "3s")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, []string{"-", "/"}, cfg.DateSeparators())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 3*time.Second, cfg.DB.QueryTimeout)

	dsn, err := cfg.DB.DSN()
	require.NoError(t, err)
	assert.Equal(t, "postgres://census:secret@pg:5432/census?sslmode=disable", dsn)
}

func TestLoad_DatabaseURLWins(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("DATABASE_URL", "file:test.db?cache=shared")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	dsn, err := cfg.DB.DSN()
	require.NoError(t, err)
	assert.Equal(t, "file:test.db?cache=shared", dsn)
}

func TestLoad_MySQLDatabaseURLKeepsSessionFlags(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("DATABASE_URL", "user:pw@tcp(db.internal)/census?charset=utf8mb4")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	dsn, err := cfg.DB.DSN()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, "user:pw@tcp(db.internal:3306)/census?"), dsn)
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	t.Setenv("DATABASE_URL", "user:pw@tcp(db.internal)census")
	cfg, err = config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	_, err = cfg.DB.DSN()
	assert.Error(t, err)
}

func TestLoad_DotEnvFile(t *testing.T) {
	os.Unsetenv("ADMIN_USER")
	os.Unsetenv("ADMIN_PASSWORD")
	t.Setenv("PORT", "4000") // already set, must win over the file

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ADMIN_USER=fromfile\nADMIN_PASSWORD=pw\nPORT=5000\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("ADMIN_USER")
		os.Unsetenv("ADMIN_PASSWORD")
	})

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fromfile", cfg.AdminUser)
	assert.Equal(t, 4000, cfg.Port)
}

func TestLoad_InvalidDriver(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "oracle")

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}
