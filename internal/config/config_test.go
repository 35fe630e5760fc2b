package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crudkit/internal/config"
	"github.com/goliatone/go-crudkit/pkg/auth"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestDefaults(t *testing.T) {
	cfg, err := config.LoadWith("", env(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "/files", cfg.Uploads.BaseURL)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, []string{"en", "fr"}, cfg.Locales)
	assert.True(t, cfg.Auth.SignupAllowed())
	assert.False(t, cfg.Debug())
}

func TestLoadFile(t *testing.T) {
	cfg, err := config.LoadWith(filepath.Join("testdata", "crudkit.yaml"), env(nil))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr)
	assert.True(t, cfg.Debug())
	assert.Equal(t, 2*time.Second, cfg.ShutdownGrace)
	assert.Equal(t, config.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "file::memory:?cache=shared", cfg.Store.DSN)
	assert.Equal(t, "/tmp/crudkit-uploads", cfg.Uploads.Dir)
	assert.Equal(t, int64(32<<20), cfg.Uploads.MaxBytes)
	assert.Equal(t, time.Hour, cfg.Auth.SessionTTL)
	assert.False(t, cfg.Auth.SignupAllowed())
	assert.Equal(t, []string{"admin@example.com"}, cfg.Auth.Admins)
	assert.Len(t, cfg.Schemas, 2)
	assert.Equal(t, "lists/countries.txt", cfg.Options["countries"])
	assert.Equal(t, []string{"en"}, cfg.Locales)

	require.Len(t, cfg.Menu, 2)
	assert.Equal(t, []auth.Role{auth.RoleAdmin}, cfg.Menu[0].Roles)
	require.NotNil(t, cfg.Menu[0].Auth)
	assert.True(t, *cfg.Menu[0].Auth)
	require.Len(t, cfg.Menu[1].Children, 1)
	assert.Equal(t, "/docs", cfg.Menu[1].Children[0].To)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	cfg, err := config.LoadWith(filepath.Join("testdata", "crudkit.yaml"), env(map[string]string{
		config.EnvAddr:  "127.0.0.1:7000",
		config.EnvStore: "memory",
		config.EnvDSN:   "",
	}))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)
	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "file::memory:?cache=shared", cfg.Store.DSN, "empty variables do not override")
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"unknown driver": "store:\n  driver: redis\n",
		"mongo dsn":      "store:\n  driver: mongo\n",
		"base url":       "uploads:\n  baseUrl: files\n",
		"option name":    "options:\n  a/b: list.txt\n",
		"log level":      "logLevel: loud\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "crudkit.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := config.LoadWith(path, env(nil))
			assert.Error(t, err)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	_, err := config.LoadWith(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: [unclosed"), 0o644))
	_, err = config.LoadWith(path, env(nil))
	assert.Error(t, err)
}

func TestSQLiteDefaultDSN(t *testing.T) {
	cfg, err := config.LoadWith("", env(map[string]string{config.EnvStore: "sqlite"}))
	require.NoError(t, err)
	assert.Equal(t, "file:crudkit.db", cfg.Store.DSN)
}
