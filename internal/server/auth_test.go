package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-crudkit/pkg/auth"
	"github.com/goliatone/go-crudkit/pkg/store"
)

func TestSignUpLoginLogout(t *testing.T) {
	srv := newTestServer(t)

	res := request(t, srv, http.MethodPost, "/api/auth/signup", "", credentials{Email: "ada@example.com", Password: testPassword})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	session := decode[sessionResponse](t, res)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, "ada@example.com", session.User.Email)
	assert.Equal(t, auth.RoleMember, session.Role)

	var cookie *http.Cookie
	for _, c := range res.Result().Cookies() {
		if c.Name == DefaultCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, session.Token, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	res = request(t, srv, http.MethodPost, "/api/auth/signup", "", credentials{Email: "ada@example.com", Password: testPassword})
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "email-already-in-use", decode[errorBody](t, res).Code)

	res = request(t, srv, http.MethodPost, "/api/auth/login", "", credentials{Email: "ada@example.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = request(t, srv, http.MethodPost, "/api/auth/login", "", credentials{Email: "ada@example.com", Password: testPassword})
	require.Equal(t, http.StatusOK, res.Code)
	token := decode[sessionResponse](t, res).Token

	res = request(t, srv, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, res.Code)
	res = request(t, srv, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestSignUpRejectsWeakPassword(t *testing.T) {
	srv := newTestServer(t)
	res := request(t, srv, http.MethodPost, "/api/auth/signup", "", credentials{Email: "ada@example.com", Password: "abc"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	body := decode[errorBody](t, res)
	assert.Equal(t, "weak-password", body.Code)
	assert.Contains(t, body.Fields, "password")
}

func TestSignUpDisabled(t *testing.T) {
	srv := newTestServer(t, func(c *Config) { c.AllowSignup = false })
	res := request(t, srv, http.MethodPost, "/api/auth/signup", "", credentials{Email: "ada@example.com", Password: testPassword})
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestAdminsArePromoted(t *testing.T) {
	srv := newTestServer(t, func(c *Config) { c.Admins = []string{" Root@Example.com "} })

	res := request(t, srv, http.MethodPost, "/api/auth/signup", "", credentials{Email: "root@example.com", Password: testPassword})
	require.Equal(t, http.StatusCreated, res.Code, res.Body.String())
	token := decode[sessionResponse](t, res).Token

	res = request(t, srv, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, auth.RoleAdmin, decode[meResponse](t, res).Meta.Role)

	other := signUp(t, srv, "ada@example.com")
	res = request(t, srv, http.MethodGet, "/api/auth/me", other, nil)
	assert.Equal(t, auth.RoleMember, decode[meResponse](t, res).Meta.Role)
}

func TestUpdateProfile(t *testing.T) {
	srv := newTestServer(t)
	token := signUp(t, srv, "ada@example.com")

	name := "Ada Lovelace"
	res := request(t, srv, http.MethodPatch, "/api/auth/me", token, auth.Profile{DisplayName: &name})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, name, decode[auth.User](t, res).DisplayName)

	res = request(t, srv, http.MethodGet, "/api/auth/me", token, nil)
	assert.Equal(t, name, decode[meResponse](t, res).User.DisplayName)
}

func TestFederatedLogin(t *testing.T) {
	docs := store.NewMemory()
	verifier := auth.VerifierFunc(func(_ context.Context, credential string) (auth.Identity, error) {
		if credential != "good" {
			return auth.Identity{}, errors.New("bad credential")
		}
		return auth.Identity{Provider: "google.com", Subject: "g-1", Email: "fed@example.com"}, nil
	})
	srv := newTestServer(t, func(c *Config) {
		c.Store = docs
		c.Auth = auth.NewLocal(docs, auth.WithVerifier(verifier))
	})

	res := request(t, srv, http.MethodPost, "/api/auth/federated", "", federatedRequest{Credential: "good"})
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())
	assert.Equal(t, "fed@example.com", decode[sessionResponse](t, res).User.Email)

	res = request(t, srv, http.MethodPost, "/api/auth/federated", "", federatedRequest{Credential: "bad"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestPasswordHelpers(t *testing.T) {
	srv := newTestServer(t)

	res := request(t, srv, http.MethodPost, "/api/auth/password/check", "", credentials{Password: "abc"})
	require.Equal(t, http.StatusOK, res.Code)
	weak := decode[passwordCheck](t, res)
	assert.False(t, weak.Strong)
	assert.NotEmpty(t, weak.Requirements)
	assert.Equal(t, "Includes a number", weak.Requirements[0].Label)

	res = request(t, srv, http.MethodPost, "/api/auth/password/check", "", credentials{Password: testPassword})
	assert.True(t, decode[passwordCheck](t, res).Strong)

	res = request(t, srv, http.MethodGet, "/api/auth/password/generate?length=24", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	generated := decode[map[string]string](t, res)["password"]
	assert.Len(t, generated, 24)
	assert.True(t, auth.Strong(generated))

	res = request(t, srv, http.MethodGet, "/api/auth/password/generate?length=x", "", nil)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLoginPage(t *testing.T) {
	srv := newTestServer(t)
	signUp(t, srv, "ada@example.com")

	res := getPage(t, srv, "/collections/products", "")
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login?next="+url.QueryEscape("/collections/products"), res.Header().Get("Location"))

	res = getPage(t, srv, "/login?next=/collections/products", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `name="email"`)
	assert.Contains(t, res.Body.String(), `value="/collections/products"`)

	res = postForm(t, srv, "/login", "", url.Values{"email": {"ada@example.com"}, "password": {"wrong"}, "next": {"/"}})
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Contains(t, res.Body.String(), "ada@example.com")

	res = postForm(t, srv, "/login", "", url.Values{
		"email":    {"ada@example.com"},
		"password": {testPassword},
		"next":     {"//evil.example.com"},
	})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
	var token string
	for _, c := range res.Result().Cookies() {
		if c.Name == DefaultCookieName {
			token = c.Value
		}
	}
	require.NotEmpty(t, token)

	res = getPage(t, srv, "/login", token)
	assert.Equal(t, http.StatusSeeOther, res.Code)

	res = postForm(t, srv, "/auth/logout", token, nil)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/login", res.Header().Get("Location"))
	assert.True(t, strings.HasPrefix(getPage(t, srv, "/", token).Header().Get("Location"), "/login"))
}
