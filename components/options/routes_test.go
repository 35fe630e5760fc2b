package options

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-crudkit/pkg/model"
)

func TestMountPath_JoinsBasePath(t *testing.T) {
	if got := MountPath("/admin"); got != "/admin/api/options" {
		t.Fatalf("unexpected mount path: %q", got)
	}
	if got := MountPath("admin"); got != "/admin/api/options" {
		t.Fatalf("unexpected mount path: %q", got)
	}
	if got := MountPath("/admin/", WithRoutePath("api/countries")); got != "/admin/api/countries" {
		t.Fatalf("unexpected mount path: %q", got)
	}
}

func TestRegisterRoutes_RegistersHandler(t *testing.T) {
	mux := http.NewServeMux()
	pattern, err := RegisterRoutes(mux, "/admin", WithSource(Strings("UTC")))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pattern != "/admin/api/options" {
		t.Fatalf("unexpected registered pattern: %q", pattern)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, pattern+"?q=utc&limit=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	if _, err := RegisterRoutes(nil, "/"); err == nil {
		t.Fatal("expected an error for a nil mux")
	}
}

func TestComponentBind(t *testing.T) {
	c := New(WithRoutePath("/api/countries"), WithLimits(15, 50))
	field := c.Bind(model.Field{Key: "country"}, "/admin")

	if field.OptionsURL != "/admin/api/countries?limit=15" {
		t.Fatalf("unexpected options url: %q", field.OptionsURL)
	}
	if field.Widget != "autocomplete" {
		t.Fatalf("expected the autocomplete widget, got %q", field.Widget)
	}

	kept := c.Bind(model.Field{Key: "country", Widget: "select"}, "")
	if kept.Widget != "select" || kept.OptionsURL != "/api/countries?limit=15" {
		t.Fatalf("unexpected binding: %#v", kept)
	}
}
