package server

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crudkit/pkg/media"
)

type testFile struct {
	name, contentType, body string
}

func multipartBody(t *testing.T, fields map[string]string, files ...testFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, filesField, f.name))
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, srv *Server, token string, fields map[string]string, files ...testFile) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields, files...)
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func uploadItems(t *testing.T, rec *httptest.ResponseRecorder) []media.Upload {
	t.Helper()
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[struct {
		Items []media.Upload `json:"items"`
	}](t, rec).Items
}

func TestUploadListAndServe(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")

	items := uploadItems(t, upload(t, srv, token, nil,
		testFile{"notes.txt", "text/plain", "hello"},
		testFile{"logo.png", "image/png", "\x89PNG"},
	))
	require.Len(t, items, 2)
	assert.Equal(t, "notes.txt", items[0].Name)
	assert.Regexp(t, `^/files/uploads/.+/notes\.txt$`, items[0].URL)

	res := request(t, srv, http.MethodGet, "/api/uploads", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	listed := decode[uploadsResponse](t, res)
	assert.Equal(t, 2, listed.Total)
	assert.Contains(t, listed.Types, "image/png")
	assert.Contains(t, listed.Types, "text/plain")

	res = request(t, srv, http.MethodGet, "/api/uploads?type=image/png", token, nil)
	filtered := decode[uploadsResponse](t, res)
	require.Equal(t, 1, filtered.Total)
	assert.Equal(t, "logo.png", filtered.Items[0].Name)
	assert.Equal(t, []string{"image/png"}, filtered.Active)

	res = request(t, srv, http.MethodGet, items[0].URL, "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "hello", res.Body.String())
	assert.Contains(t, res.Header().Get("Content-Type"), "text/plain")

	res = request(t, srv, http.MethodGet, "/files/uploads/missing.txt", "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = upload(t, srv, token, nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestUploadsArePrivateToTheirOwner(t *testing.T) {
	srv := newTestServer(t)
	ada := signUp(t, srv, "ada@example.com")
	bob := signUp(t, srv, "bob@example.com")

	private := uploadItems(t, upload(t, srv, ada, nil, testFile{"secret.txt", "text/plain", "x"}))[0]
	uploadItems(t, upload(t, srv, ada, map[string]string{"isPublic": "true"}, testFile{"shared.txt", "text/plain", "y"}))

	res := request(t, srv, http.MethodGet, "/api/uploads", bob, nil)
	listed := decode[uploadsResponse](t, res)
	require.Equal(t, 1, listed.Total)
	assert.Equal(t, "shared.txt", listed.Items[0].Name)

	res = request(t, srv, http.MethodDelete, "/api/uploads/"+private.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = request(t, srv, http.MethodDelete, "/api/uploads/"+private.ID, ada, nil)
	assert.Equal(t, http.StatusNoContent, res.Code)
	res = request(t, srv, http.MethodGet, private.URL, "", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestEditUpload(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	up := uploadItems(t, upload(t, srv, token, nil, testFile{"a.txt", "text/plain", "a"}))[0]

	name := "renamed.txt"
	public := true
	res := request(t, srv, http.MethodPatch, "/api/uploads/"+up.ID, token, media.Edit{Name: &name, IsPublic: &public})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	edited := decode[media.Upload](t, res)
	assert.Equal(t, "renamed.txt", edited.Name)
	assert.True(t, edited.IsPublic)
	assert.Equal(t, up.URL, edited.URL)
}

func TestReplaceUpload(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	first := uploadItems(t, upload(t, srv, token, nil, testFile{"avatar.png", "image/png", "one"}))[0]

	res := upload(t, srv, token, map[string]string{"replace": first.URL}, testFile{"avatar2.png", "image/png", "two"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	value := decode[map[string]any](t, res)["value"]
	url, ok := value.(string)
	require.True(t, ok, "value %v", value)
	assert.NotEqual(t, first.URL, url)

	assert.Equal(t, http.StatusNotFound, request(t, srv, http.MethodGet, first.URL, "", nil).Code)
	assert.Equal(t, http.StatusOK, request(t, srv, http.MethodGet, url, "", nil).Code)

	res = request(t, srv, http.MethodGet, "/api/uploads", token, nil)
	assert.Equal(t, 1, decode[uploadsResponse](t, res).Total)
}

func TestReplaceRefusesOtherUsersFiles(t *testing.T) {
	srv := newTestServer(t)
	bob := signUp(t, srv, "bob@example.com")
	eve := signUp(t, srv, "eve@example.com")

	secret := uploadItems(t, upload(t, srv, bob, nil, testFile{"secret.pdf", "application/pdf", "s"}))[0]
	shared := uploadItems(t, upload(t, srv, bob, map[string]string{"isPublic": "true"}, testFile{"shared.pdf", "application/pdf", "p"}))[0]

	for _, target := range []media.Upload{secret, shared} {
		res := upload(t, srv, eve, map[string]string{"replace": target.URL}, testFile{"x.pdf", "application/pdf", "e"})
		assert.Equal(t, http.StatusForbidden, res.Code, res.Body.String())
		assert.Equal(t, http.StatusOK, request(t, srv, http.MethodGet, target.URL, "", nil).Code)
	}

	res := request(t, srv, http.MethodGet, "/api/uploads", bob, nil)
	assert.Equal(t, 2, decode[uploadsResponse](t, res).Total)
	res = request(t, srv, http.MethodGet, "/api/uploads", eve, nil)
	assert.Equal(t, 1, decode[uploadsResponse](t, res).Total, "eve sees only bob's public file")
}

func TestSelectionBindsValue(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	items := uploadItems(t, upload(t, srv, token, nil,
		testFile{"a.txt", "text/plain", "a"},
		testFile{"b.txt", "text/plain", "b"},
		testFile{"c.txt", "text/plain", "c"},
	))

	res := request(t, srv, http.MethodPost, "/api/uploads/selection", token, selectionRequest{
		Selection: []string{items[1].ID, items[0].ID},
	})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	got := decode[map[string]any](t, res)
	assert.Equal(t, []any{items[1].URL, items[0].URL}, got["value"])

	one := 1
	res = request(t, srv, http.MethodPost, "/api/uploads/selection", token, selectionRequest{
		Selection: []string{items[0].ID, items[2].ID},
		Max:       &one,
		Prop:      "name",
	})
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "c.txt", decode[map[string]any](t, res)["value"])

	two := 2
	res = request(t, srv, http.MethodPost, "/api/uploads/selection", token, selectionRequest{
		Selection: []string{items[0].ID, items[1].ID, items[2].ID},
		Max:       &two,
	})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = request(t, srv, http.MethodPost, "/api/uploads/selection", token, selectionRequest{Selection: []string{"nope"}})
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestUploadsPage(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")
	up := uploadItems(t, upload(t, srv, token, nil, testFile{"photo.png", "image/png", "p"}))[0]

	res := getPage(t, srv, "/uploads", token)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "photo.png")
	assert.Contains(t, res.Body.String(), `action="/uploads/`+up.ID+`/delete"`)

	res = postForm(t, srv, "/uploads/"+up.ID+"/delete", token, nil)
	assert.Equal(t, http.StatusSeeOther, res.Code)
	res = request(t, srv, http.MethodGet, "/api/uploads", token, nil)
	assert.Equal(t, 0, decode[uploadsResponse](t, res).Total)
}
