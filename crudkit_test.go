package crudkit

import (
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crudkit/internal/config"
)

const productsYAML = `
collections:
  - name: products
    fields:
      - key: name
        required: true
      - key: origin
        type: autocomplete
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestOpenWiresConfiguredSources(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Uploads.Dir = filepath.Join(dir, "uploads")
	cfg.Schemas = []string{writeFile(t, dir, "products.yaml", productsYAML)}
	cfg.Options = map[string]string{"countries": writeFile(t, dir, "countries.txt", "France\nSpain\n")}
	cfg.Translations = filepath.Join(dir, "locales")
	writeFile(t, dir, "locales/en.yaml", "dashboard: Home\n")

	srv, release, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, release()) })

	_, ok := srv.Collection("products")
	assert.True(t, ok)
	assert.DirExists(t, cfg.Uploads.Dir)

	get := func(target string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		return rec
	}

	res := get("/api/options/countries?q=fr")
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Contains(t, res.Body.String(), "France")
	assert.NotContains(t, res.Body.String(), "Spain")

	res = get("/api/i18n/en")
	require.Equal(t, http.StatusOK, res.Code)
	var messages map[string]string
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &messages))
	assert.Equal(t, "Home", messages["dashboard"])
	assert.Equal(t, "Log out", messages["logout"])
}

func TestOpenFailsOnMissingSchema(t *testing.T) {
	cfg := config.Default()
	cfg.Uploads.Dir = ""
	cfg.Schemas = []string{filepath.Join(t.TempDir(), "missing.yaml")}

	_, _, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestFilesPath(t *testing.T) {
	path, err := filesPath("/files")
	require.NoError(t, err)
	assert.Equal(t, "/files", path)

	path, err = filesPath("https://cdn.example.com/media")
	require.NoError(t, err)
	assert.Equal(t, "/media", path)

	_, err = filesPath("https://cdn.example.com")
	assert.Error(t, err)
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "warn"
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.False(t, logger.Desugar().Core().Enabled(-1))

	cfg.LogLevel = "debug"
	logger, err = NewLogger(cfg)
	require.NoError(t, err)
	assert.True(t, logger.Desugar().Core().Enabled(-1))
}

func TestEmbeddedTemplates(t *testing.T) {
	_, err := fs.Stat(EmbeddedTemplates(), "templates/page.tmpl")
	assert.NoError(t, err)
}
