package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crudkit/pkg/model"
)

func TestFindSchema(t *testing.T) {
	schemas := []model.Schema{{Name: "products"}, {Name: "orders"}}

	s, err := findSchema(schemas, "orders")
	require.NoError(t, err)
	assert.Equal(t, "orders", s.Name)

	_, err = findSchema(schemas, "users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orders, products")
}

func TestReadRecords(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(`[{"name":"A"},{"name":"B"}]`), 0o644))
	records, err := readRecords(good)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"name":"A"}`), 0o644))
	_, err = readRecords(bad)
	assert.Error(t, err)
}

func TestPostSendsRecord(t *testing.T) {
	var got model.Record
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/collections/products/items", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	defer srv.Close()

	err := post(context.Background(), srv.Client(), srv.URL+"/api/collections/products/items", "tok", model.Record{"name": "A"})
	require.NoError(t, err)
	assert.Equal(t, "A", got["name"])

	reject := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code":"invalid-argument"}`, http.StatusUnprocessableEntity)
	}))
	defer reject.Close()
	err = post(context.Background(), reject.Client(), reject.URL, "", model.Record{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid-argument")
}
