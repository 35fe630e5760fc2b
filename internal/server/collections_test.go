package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crudkit/pkg/model"
)

const itemsURL = "/api/collections/products/items"

func createProduct(t *testing.T, srv *Server, token string, rec model.Record) model.Record {
	t.Helper()
	res := request(t, srv, http.MethodPost, itemsURL, token, rec)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	return decode[model.Record](t, res)
}

func TestCollectionsRequireSession(t *testing.T) {
	srv := newTestServer(t)
	res := request(t, srv, http.MethodGet, "/api/collections", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "unauthenticated", decode[errorBody](t, res).Code)

	res = request(t, srv, http.MethodGet, itemsURL, "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestSchemasBindRemoteOptions(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")

	res := request(t, srv, http.MethodGet, "/api/collections", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	schemas := decode[[]model.Schema](t, res)
	require.Len(t, schemas, 1)
	assert.Equal(t, "products", schemas[0].Name)

	vendor, ok := schemas[0].Field("vendor")
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(vendor.OptionsURL, "/api/collections/products/options/vendor?"), vendor.OptionsURL)

	category, _ := schemas[0].Field("category")
	assert.Empty(t, category.OptionsURL)
}

func TestUnknownCollection(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	res := request(t, srv, http.MethodGet, "/api/collections/nope/items", token, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestItemLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")

	created := createProduct(t, srv, token, model.Record{"id": "ignored", "name": "Hammer", "price": 12, "category": "tools"})
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	assert.NotEqual(t, "ignored", id)
	assert.Equal(t, "Hammer", created["name"])

	res := request(t, srv, http.MethodGet, itemsURL+"/"+id, token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, float64(12), decode[model.Record](t, res)["price"])

	res = request(t, srv, http.MethodPatch, itemsURL+"/"+id, token, model.Record{"price": 15})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	patched := decode[model.Record](t, res)
	assert.Equal(t, float64(15), patched["price"])
	assert.Equal(t, "Hammer", patched["name"])

	res = request(t, srv, http.MethodPut, itemsURL+"/"+id, token, model.Record{"name": "Mallet"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	replaced := decode[model.Record](t, res)
	assert.Equal(t, "Mallet", replaced["name"])
	assert.NotContains(t, replaced, "price")

	res = request(t, srv, http.MethodDelete, itemsURL+"/"+id, token, nil)
	assert.Equal(t, http.StatusNoContent, res.Code)
	res = request(t, srv, http.MethodGet, itemsURL+"/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Equal(t, "not-found", decode[errorBody](t, res).Code)
}

func TestCreateValidates(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")

	res := request(t, srv, http.MethodPost, itemsURL, token, model.Record{"price": 3})
	require.Equal(t, http.StatusUnprocessableEntity, res.Code)
	body := decode[errorBody](t, res)
	assert.Contains(t, body.Fields, "name")

	res = request(t, srv, http.MethodPost, itemsURL, token, strings.NewReader("{"))
	assert.Equal(t, http.StatusBadRequest, res.Code)

	id := createProduct(t, srv, token, model.Record{"name": "Saw"})["id"].(string)
	res = request(t, srv, http.MethodPatch, itemsURL+"/"+id, token, model.Record{"name": ""})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
}

func TestListQueries(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	for i, name := range []string{"Hammer", "Saw", "Drill"} {
		createProduct(t, srv, token, model.Record{"name": name, "price": i + 1})
	}

	res := request(t, srv, http.MethodGet, itemsURL, token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	all := decode[listResponse](t, res)
	assert.Equal(t, 3, all.Total)

	res = request(t, srv, http.MethodGet, itemsURL+"?q=saw", token, nil)
	found := decode[listResponse](t, res)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Saw", found.Items[0]["name"])

	res = request(t, srv, http.MethodGet, itemsURL+"?sort=price&desc=true&perPage=2", token, nil)
	page := decode[listResponse](t, res)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Drill", page.Items[0]["name"])

	res = request(t, srv, http.MethodGet, itemsURL+"?filters=not-json", token, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestDuplicateItem(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	orig := createProduct(t, srv, token, model.Record{"name": "Hammer"})

	res := request(t, srv, http.MethodPost, fmt.Sprintf("%s/%s/duplicate", itemsURL, orig["id"]), token, nil)
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	dup := decode[model.Record](t, res)
	assert.Equal(t, "Hammer", dup["name"])
	assert.NotEqual(t, orig["id"], dup["id"])
}

func TestBulkActions(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	a := createProduct(t, srv, token, model.Record{"name": "A", "category": "tools"})
	b := createProduct(t, srv, token, model.Record{"name": "B", "category": "tools"})
	c := createProduct(t, srv, token, model.Record{"name": "C", "category": "tools"})

	res := request(t, srv, http.MethodPost, itemsURL+"/bulk", token, bulkRequest{
		Action: "update",
		IDs:    []string{a["id"].(string), b["id"].(string)},
		Patch:  model.Record{"category": "toys"},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, 2, decode[countResponse](t, res).Count)

	res = request(t, srv, http.MethodGet, itemsURL+"/"+a["id"].(string), token, nil)
	updated := decode[model.Record](t, res)
	assert.Equal(t, "toys", updated["category"])
	assert.Equal(t, "A", updated["name"])

	res = request(t, srv, http.MethodPost, itemsURL+"/bulk", token, bulkRequest{Action: "duplicate", IDs: []string{c["id"].(string)}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 1, decode[countResponse](t, res).Count)

	res = request(t, srv, http.MethodPost, itemsURL+"/bulk", token, bulkRequest{Action: "delete", IDs: []string{a["id"].(string), b["id"].(string)}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 2, decode[countResponse](t, res).Count)

	res = request(t, srv, http.MethodGet, itemsURL, token, nil)
	assert.Equal(t, 2, decode[listResponse](t, res).Total)

	res = request(t, srv, http.MethodPost, itemsURL+"/bulk", token, bulkRequest{Action: "explode", IDs: []string{"x"}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	res = request(t, srv, http.MethodPost, itemsURL+"/bulk", token, bulkRequest{Action: "delete"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestDeleteByField(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	createProduct(t, srv, token, model.Record{"name": "A", "price": 1})
	createProduct(t, srv, token, model.Record{"name": "B", "price": 1})
	createProduct(t, srv, token, model.Record{"name": "C", "price": 2})

	res := request(t, srv, http.MethodDelete, itemsURL+"?field=price&value=1", token, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, 2, decode[countResponse](t, res).Count)

	res = request(t, srv, http.MethodDelete, itemsURL, token, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestImportAndExport(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")

	res := request(t, srv, http.MethodPost, "/api/collections/products/import", token,
		strings.NewReader(`[{"name":"A","price":1},{"name":"B","price":2}]`))
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	assert.Equal(t, 2, decode[countResponse](t, res).Count)

	res = request(t, srv, http.MethodPost, "/api/collections/products/import", token, strings.NewReader(`[1, 2]`))
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = request(t, srv, http.MethodGet, "/api/collections/products/export?sort=price&desc=true", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	exported := decode[[]model.Record](t, res)
	require.Len(t, exported, 2)
	assert.Equal(t, "B", exported[0]["name"])

	res = request(t, srv, http.MethodGet, "/api/collections/products/export?ids="+exported[1]["id"].(string), token, nil)
	only := decode[[]model.Record](t, res)
	require.Len(t, only, 1)
	assert.Equal(t, "A", only[0]["name"])
}

func TestFieldOptionsFromRecords(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	createProduct(t, srv, token, model.Record{"name": "A", "vendor": "Acme"})
	createProduct(t, srv, token, model.Record{"name": "B", "vendor": "Bolt"})
	createProduct(t, srv, token, model.Record{"name": "C", "vendor": "Acme"})

	res := request(t, srv, http.MethodGet, "/api/collections/products/options/vendor", token, nil)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	body := decode[struct {
		Data []model.Option `json:"data"`
	}](t, res)
	var values []any
	for _, o := range body.Data {
		values = append(values, o.Value)
	}
	assert.ElementsMatch(t, []any{"Acme", "Bolt"}, values)

	res = request(t, srv, http.MethodGet, "/api/collections/products/options/name", token, nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}
