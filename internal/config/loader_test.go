package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "./migrations", cfg.Database.Migrations)
	assert.Equal(t, QueryConfig{DefaultPageSize: 25, MaxPageSize: 50, CacheSize: 256}, cfg.Query)
	assert.Equal(t, LogConfig{Level: "info", Format: "console"}, cfg.Log)
	assert.Empty(t, cfg.Resources)
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := `
database:
  host: db.internal
  port: 6543
  dbname: people
query:
  max_page_size: 100
log:
  format: json
resources:
  people:
    schema:
      lastname:
        type: string
        unique: true
      role:
        allowed: [admin, user]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))
	t.Setenv("EVEQL_DATABASE_USER", "reader")
	t.Setenv("EVEQL_QUERY_DEFAULT_PAGE_SIZE", "10")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "people", cfg.Database.DBName)
	assert.Equal(t, "reader", cfg.Database.User)
	assert.Equal(t, 10, cfg.Query.DefaultPageSize)
	assert.Equal(t, 100, cfg.Query.MaxPageSize)
	assert.Equal(t, "json", cfg.Log.Format)

	require.Contains(t, cfg.Resources, "people")
	people := cfg.Resources["people"]
	assert.Equal(t, "string", people["lastname"]["type"])
	assert.Equal(t, true, people["lastname"]["unique"])
	assert.Equal(t, []any{"admin", "user"}, people["role"]["allowed"])
}

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eveql.yml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidPageSizes(t *testing.T) {
	dir := t.TempDir()
	content := "query:\n  default_page_size: 80\n  max_page_size: 50\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))

	_, err := Load(dir)
	assert.ErrorContains(t, err, "exceeds")
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("database: [unclosed"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoadDBConfig(t *testing.T) {
	t.Setenv("EVEQL_DATABASE_SSLMODE", "require")

	cfg, err := LoadDBConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "require", cfg.SSLMode)
}
