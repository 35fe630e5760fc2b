package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crudkit/pkg/model"
)

const testPassword = "Sup3r-secret!"

func productSchema() model.Schema {
	return model.Schema{
		Name:  "Products",
		Label: "Products",
		Fields: []model.Field{
			{Key: "name", Label: "Name", Required: true},
			{Key: "price", Label: "Price", Type: model.FieldTypeNumber},
			{Key: "category", Label: "Category", Type: model.FieldTypeSelect, Options: []any{"tools", "toys"}},
			{Key: "vendor", Label: "Vendor", Type: model.FieldTypeAutocomplete},
		},
	}
}

func newTestServer(t *testing.T, mutate ...func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		Schemas:     []model.Schema{productSchema()},
		AllowSignup: true,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	srv, err := New(cfg)
	require.NoError(t, err)
	return srv
}

// request runs one request against srv. body is JSON encoded unless it is
// already a reader.
func request(t *testing.T, srv *Server, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		if _, isReader := body.(io.Reader); !isReader {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

// postForm submits a browser form with the session cookie.
func postForm(t *testing.T, srv *Server, target, token string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func getPage(t *testing.T, srv *Server, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: token})
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func signUp(t *testing.T, srv *Server, email string) string {
	t.Helper()
	rec := request(t, srv, http.MethodPost, "/api/auth/signup", "", credentials{Email: email, Password: testPassword})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[sessionResponse](t, rec).Token
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := request(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}

func TestNewRejectsReservedAndDuplicateCollections(t *testing.T) {
	_, err := New(Config{Schemas: []model.Schema{{Name: "users"}}})
	assert.Error(t, err)

	_, err = New(Config{Schemas: []model.Schema{{Name: "notes"}, {Name: "Notes"}}})
	assert.Error(t, err)

	_, err = New(Config{Schemas: []model.Schema{{Name: "bad", Fields: []model.Field{{Key: "x", Type: "nope"}}}}})
	assert.Error(t, err)
}

func TestOpenAPIDocument(t *testing.T) {
	srv := newTestServer(t)
	rec := request(t, srv, http.MethodGet, "/openapi.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[map[string]any](t, rec)
	assert.Contains(t, doc, "paths")

	empty := newTestServer(t, func(c *Config) { c.Schemas = nil })
	assert.Equal(t, http.StatusNotFound, request(t, empty, http.MethodGet, "/openapi.json", "", nil).Code)
}

func TestMenuFollowsViewer(t *testing.T) {
	srv := newTestServer(t)

	rec := request(t, srv, http.MethodGet, "/api/menu?path=/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	anon := decode[struct {
		Links []struct {
			Label  string `json:"label"`
			To     string `json:"to"`
			Active bool   `json:"active"`
		} `json:"links"`
	}](t, rec)
	require.Len(t, anon.Links, 1)
	assert.Equal(t, "Dashboard", anon.Links[0].Label)
	assert.True(t, anon.Links[0].Active)

	token := signUp(t, srv, "ada@example.com")
	rec = request(t, srv, http.MethodGet, "/api/menu", token, nil)
	signed := decode[struct {
		Links []struct {
			To string `json:"to"`
		} `json:"links"`
	}](t, rec)
	var targets []string
	for _, l := range signed.Links {
		targets = append(targets, l.To)
	}
	assert.Equal(t, []string{"/", "/uploads", "/collections/products"}, targets)
}

func TestMessagesAndLocaleSwitch(t *testing.T) {
	srv := newTestServer(t)

	rec := request(t, srv, http.MethodGet, "/api/i18n/fr", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[map[string]any](t, rec))

	assert.Equal(t, http.StatusNotFound, request(t, srv, http.MethodGet, "/api/i18n/xx", "", nil).Code)

	rec = postForm(t, srv, "/locale", "", url.Values{"locale": {"fr"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == localeCookie {
			found = true
			assert.Equal(t, "fr", c.Value)
		}
	}
	assert.True(t, found)

	rec = postForm(t, srv, "/locale", "", url.Values{"locale": {"xx"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecovererAnswersJSON(t *testing.T) {
	srv := newTestServer(t)
	srv.router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := request(t, srv, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "unknown", decode[errorBody](t, rec).Code)
}
