package menu_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-crudkit/pkg/auth"
	"github.com/goliatone/go-crudkit/pkg/menu"
)

func labels(links []menu.Link) []string {
	var out []string
	for _, l := range links {
		out = append(out, l.Label)
		for _, c := range l.Children {
			out = append(out, l.Label+"/"+c.Label)
		}
	}
	return out
}

func fixture() []menu.Link {
	return []menu.Link{
		{Label: "dashboard", To: "/"},
		{Label: "login", To: "/login", Auth: menu.Bool(false)},
		{Label: "uploads", To: "/uploads", Auth: menu.Bool(true)},
		{Label: "admin", Roles: []auth.Role{auth.RoleAdmin}, Children: []menu.Link{
			{Label: "users", To: "/admin/users"},
		}},
		{Label: "settings", Children: []menu.Link{
			{Label: "profile", To: "/profile", Auth: menu.Bool(true)},
			{Label: "audit", To: "/audit", Roles: []auth.Role{auth.RoleAdmin}},
		}},
	}
}

func TestFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		viewer menu.Viewer
		want   []string
	}{
		{"anonymous", menu.Anonymous, []string{"dashboard", "login", "settings"}},
		{"member", menu.Viewer{SignedIn: true, Role: auth.RoleMember}, []string{"dashboard", "uploads", "settings", "settings/profile"}},
		{"admin", menu.Viewer{SignedIn: true, Role: auth.RoleAdmin}, []string{"dashboard", "uploads", "admin", "admin/users", "settings", "settings/profile", "settings/audit"}},
		{"no meta", menu.Viewer{SignedIn: true}, []string{"dashboard", "uploads", "settings", "settings/profile"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := labels(menu.Filter(fixture(), tt.viewer))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("visible links mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterLeavesInputUntouched(t *testing.T) {
	t.Parallel()
	links := fixture()
	menu.Filter(links, menu.Anonymous)
	if len(links[4].Children) != 2 {
		t.Fatalf("expected source children intact, got %d", len(links[4].Children))
	}
}

func TestBuildMarksActiveAndTranslates(t *testing.T) {
	t.Parallel()
	links := []menu.Link{
		{Label: "dashboard", To: "/", Icon: `<svg viewBox="0 0 24 24" onload="x()"><script>alert(1)</script><path d="M0 0"></path></svg>`},
		{Label: "uploads", To: "/uploads"},
	}
	got := menu.Build(links, menu.Anonymous, "/uploads", strings.ToUpper)

	if got[0].Active || !got[1].Active {
		t.Fatalf("expected only uploads active, got %+v", got)
	}
	if got[0].Label != "DASHBOARD" {
		t.Fatalf("expected translated label, got %q", got[0].Label)
	}
	icon := got[0].Icon
	if strings.Contains(icon, "script") || strings.Contains(icon, "onload") {
		t.Fatalf("expected unsafe markup stripped, got %q", icon)
	}
	if !strings.Contains(icon, "<svg") || !strings.Contains(icon, "<path") {
		t.Fatalf("expected svg markup kept, got %q", icon)
	}
}

func TestDefaultLinks(t *testing.T) {
	t.Parallel()
	got := labels(menu.Filter(menu.DefaultLinks(), menu.Anonymous))
	if diff := cmp.Diff([]string{"dashboard"}, got); diff != "" {
		t.Fatalf("anonymous default menu mismatch (-want +got):\n%s", diff)
	}
}

func TestLocales(t *testing.T) {
	t.Parallel()
	locales, err := menu.NewLocales()
	if err != nil {
		t.Fatalf("NewLocales: %v", err)
	}

	if got := locales.Match("fr-CA,fr;q=0.9,en;q=0.5"); got != "fr" {
		t.Fatalf("expected fr, got %q", got)
	}
	if got := locales.Match(""); got != "en" {
		t.Fatalf("expected default en, got %q", got)
	}
	if got := locales.Resolve("s1", "fr"); got != "fr" {
		t.Fatalf("expected negotiated fr, got %q", got)
	}
	if err := locales.Switch("s1", "en"); err != nil {
		t.Fatalf("Switch: %v", err)
	}
	if got := locales.Resolve("s1", "fr"); got != "en" {
		t.Fatalf("expected explicit en to win, got %q", got)
	}
	locales.Forget("s1")
	if got := locales.Resolve("s1", "fr"); got != "fr" {
		t.Fatalf("expected negotiation after forget, got %q", got)
	}
	if err := locales.Switch("s1", "de"); !errors.Is(err, menu.ErrUnsupportedLocale) {
		t.Fatalf("expected ErrUnsupportedLocale, got %v", err)
	}

	want := []menu.LocaleOption{
		{Code: "en", Label: "english"},
		{Code: "fr", Label: "french", Active: true},
	}
	if diff := cmp.Diff(want, locales.Options("fr")); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}

	if _, err := menu.NewLocales("not a tag!"); err == nil {
		t.Fatal("expected invalid tag error")
	}
}
