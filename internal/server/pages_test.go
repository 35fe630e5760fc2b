package server

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crudkit/pkg/model"
)

const productsPage = "/collections/products"

func listProducts(t *testing.T, srv *Server, token string) []model.Record {
	t.Helper()
	res := request(t, srv, http.MethodGet, itemsURL, token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	return decode[listResponse](t, res).Items
}

func TestTablePage(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	createProduct(t, srv, token, model.Record{"name": "Hammer", "price": 12})

	res := getPage(t, srv, productsPage, token)
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Hammer")
	assert.Contains(t, body, `href="/collections/products"`)

	res = getPage(t, srv, productsPage+"?filters=%7Bbroken", token)
	assert.Equal(t, http.StatusOK, res.Code)

	res = getPage(t, srv, "/collections/unknown", token)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestCreateThroughForm(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")

	res := getPage(t, srv, productsPage+"/new", token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `name="name"`)

	res = postForm(t, srv, productsPage+"/new", token, url.Values{"name": {"Widget"}, "price": {"3.5"}, "category": {"toys"}})
	require.Equal(t, http.StatusSeeOther, res.Code, res.Body.String())
	assert.Equal(t, productsPage, res.Header().Get("Location"))

	items := listProducts(t, srv, token)
	require.Len(t, items, 1)
	assert.Equal(t, "Widget", items[0]["name"])
	assert.Equal(t, 3.5, items[0]["price"])
	assert.Equal(t, "toys", items[0]["category"])

	res = postForm(t, srv, productsPage+"/new", token, url.Values{"price": {"1"}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = postForm(t, srv, productsPage+"/new", token, url.Values{"name": {"x"}, "price": {"lots"}})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Len(t, listProducts(t, srv, token), 1)
}

func TestEditThroughForm(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	id := createProduct(t, srv, token, model.Record{"name": "Hammer", "price": 12})["id"].(string)

	res := getPage(t, srv, productsPage+"/"+id+"/edit", token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `value="Hammer"`)

	res = postForm(t, srv, productsPage+"/"+id, token, url.Values{"_method": {"PUT"}, "name": {"Mallet"}})
	require.Equal(t, http.StatusSeeOther, res.Code, res.Body.String())

	items := listProducts(t, srv, token)
	require.Len(t, items, 1)
	assert.Equal(t, "Mallet", items[0]["name"])
	assert.Equal(t, float64(12), items[0]["price"])

	res = postForm(t, srv, productsPage+"/"+id+"/duplicate", token, nil)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Len(t, listProducts(t, srv, token), 2)

	res = postForm(t, srv, productsPage+"/"+id+"/delete", token, nil)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Len(t, listProducts(t, srv, token), 1)
}

func TestBulkThroughForm(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	a := createProduct(t, srv, token, model.Record{"name": "A", "category": "tools"})["id"].(string)
	b := createProduct(t, srv, token, model.Record{"name": "B", "category": "tools"})["id"].(string)
	c := createProduct(t, srv, token, model.Record{"name": "C", "category": "tools"})["id"].(string)

	res := postForm(t, srv, productsPage+"/bulk", token, url.Values{"_action": {"edit"}, "selection": {a, b}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `value="update"`)

	res = postForm(t, srv, productsPage+"/bulk", token, url.Values{
		"_action":  {"update"},
		"ids":      {a + "," + b},
		"category": {"toys"},
	})
	require.Equal(t, http.StatusSeeOther, res.Code, res.Body.String())

	byName := map[string]model.Record{}
	for _, rec := range listProducts(t, srv, token) {
		byName[rec["name"].(string)] = rec
	}
	assert.Equal(t, "toys", byName["A"]["category"])
	assert.Equal(t, "toys", byName["B"]["category"])
	assert.Equal(t, "tools", byName["C"]["category"])

	res = postForm(t, srv, productsPage+"/bulk", token, url.Values{"_action": {"delete"}, "selection": {a, c}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	items := listProducts(t, srv, token)
	require.Len(t, items, 1)
	assert.Equal(t, "B", items[0]["name"])

	res = postForm(t, srv, productsPage+"/bulk", token, url.Values{"_action": {"delete"}, "all": {"true"}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Empty(t, listProducts(t, srv, token))
}

func TestFlashSurvivesRedirect(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")

	res := postForm(t, srv, productsPage+"/new", token, url.Values{"name": {"Widget"}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	var flash *http.Cookie
	for _, c := range res.Result().Cookies() {
		if c.Name == flashCookie {
			flash = c
		}
	}
	require.NotNil(t, flash)

	req, _ := http.NewRequest(http.MethodGet, productsPage, nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: token})
	req.AddCookie(flash)
	notes := srv.takeFlash(discardWriter{}, req)
	require.Len(t, notes, 1)
	assert.Equal(t, "Save", notes[0].Message)
}

func TestImportThroughForm(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")

	res := getPage(t, srv, productsPage+"/import", token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `name="payload"`)

	res = postForm(t, srv, productsPage+"/import", token, url.Values{"payload": {`[{"name":"A"},{"name":"B"}]`}})
	require.Equal(t, http.StatusSeeOther, res.Code, res.Body.String())
	assert.Len(t, listProducts(t, srv, token), 2)

	res = postForm(t, srv, productsPage+"/import", token, url.Values{"payload": {`not json`}})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	id := listProducts(t, srv, token)[0]["id"].(string)
	res = postForm(t, srv, productsPage+"/"+id+"/import", token, url.Values{"payload": {`{"id":"other","price":7}`}})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Contains(t, res.Body.String(), `value="7"`)
	assert.Nil(t, listProducts(t, srv, token)[0]["price"], "import into a record is not saved until the form is submitted")
}

func TestExportPage(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	createProduct(t, srv, token, model.Record{"name": "A"})

	res := getPage(t, srv, productsPage+"/export", token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, strings.HasPrefix(res.Header().Get("Content-Disposition"), "attachment;"))
	assert.Len(t, decode[[]model.Record](t, res), 1)
}

// discardWriter accepts headers and drops the body.
type discardWriter struct{}

func (discardWriter) Header() http.Header         { return http.Header{} }
func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
func (discardWriter) WriteHeader(int)             {}
