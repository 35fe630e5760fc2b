package render_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/menu"
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/render"
	"github.com/goliatone/go-crudkit/pkg/table"
)

type stubTranslator map[string]string

func (t stubTranslator) Translate(_ string, key string, _ ...any) (string, error) {
	if msg, ok := t[key]; ok {
		return msg, nil
	}
	return "", errors.New("missing translation")
}

func TestCatalogFallbackChain(t *testing.T) {
	t.Parallel()
	catalog := render.NewCatalog("en")
	if err := catalog.Load("en", []byte("greeting: Hello %s\ntable:\n  search: Search\nonly_en: yes\n")); err != nil {
		t.Fatalf("load en: %v", err)
	}
	if err := catalog.Load("fr", []byte("greeting: Bonjour %s\ntable:\n  search: Rechercher\n")); err != nil {
		t.Fatalf("load fr: %v", err)
	}

	tests := []struct {
		locale, key string
		args        []any
		want        string
	}{
		{"fr", "table.search", nil, "Rechercher"},
		{"fr-CA", "table.search", nil, "Rechercher"},
		{"fr", "greeting", []any{"Ada"}, "Bonjour Ada"},
		{"fr", "only_en", nil, "yes"},
		{"de", "table.search", nil, "Search"},
	}
	for _, tt := range tests {
		got, err := catalog.Translate(tt.locale, tt.key, tt.args...)
		if err != nil {
			t.Fatalf("translate %s/%s: %v", tt.locale, tt.key, err)
		}
		if got != tt.want {
			t.Fatalf("translate %s/%s: want %q, got %q", tt.locale, tt.key, tt.want, got)
		}
	}

	if _, err := catalog.Translate("fr", "nope"); !errors.Is(err, render.ErrMissingTranslation) {
		t.Fatalf("expected ErrMissingTranslation, got %v", err)
	}
	if err := catalog.Load("en", []byte("- not a map")); err == nil {
		t.Fatal("expected parse error for a list document")
	}

	messages := catalog.Messages("fr")
	if messages["only_en"] != "yes" || messages["table.search"] != "Rechercher" {
		t.Fatalf("unexpected merged messages %v", messages)
	}
	if diff := cmp.Diff([]string{"en", "fr"}, catalog.Locales()); diff != "" {
		t.Fatalf("locales mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()
	catalog := render.DefaultCatalog()
	got, err := catalog.Translate("fr", "table.page", 2, 5)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if got != "Page 2 sur 5" {
		t.Fatalf("unexpected message %q", got)
	}
	if got, _ := catalog.Translate("en", "errors.weak-password"); got != "The password is too weak." {
		t.Fatalf("unexpected error message %q", got)
	}
}

func TestLocalizeDocument(t *testing.T) {
	t.Parallel()
	doc := render.Document{
		Kind:  render.KindForm,
		Title: "products",
		Menu: []menu.Link{{Label: "dashboard", Children: []menu.Link{{Label: "uploads"}}}},
		Table: &render.TableView{View: table.View{Headers: []table.Header{{Key: "name", Label: "Name"}}}},
		Form: &render.FormView{
			Submit: "form.submit",
			Inputs: []form.Input{{
				Path: "variants", Label: "Variants",
				Items: []form.ItemPanel{{Inputs: []form.Input{{Path: "variants.0.size", Label: "Size", Options: []model.Option{{Value: "s", Label: "Small"}}}}}},
			}},
		},
	}

	render.LocalizeDocument(&doc, render.RenderOptions{
		Locale: "fr",
		Translator: stubTranslator{
			"products": "Produits", "dashboard": "Tableau", "uploads": "Fichiers",
			"Name": "Nom", "form.submit": "Enregistrer", "Size": "Taille", "Small": "Petit",
		},
	})

	if doc.Title != "Produits" || doc.Menu[0].Label != "Tableau" || doc.Menu[0].Children[0].Label != "Fichiers" {
		t.Fatalf("chrome not localized: %+v", doc)
	}
	if doc.Table.Headers[0].Label != "Nom" {
		t.Fatalf("header not localized: %q", doc.Table.Headers[0].Label)
	}
	if doc.Form.Submit != "Enregistrer" {
		t.Fatalf("submit not localized: %q", doc.Form.Submit)
	}
	if doc.Form.Inputs[0].Label != "Variants" {
		t.Fatalf("missing key should keep the label, got %q", doc.Form.Inputs[0].Label)
	}
	nested := doc.Form.Inputs[0].Items[0].Inputs[0]
	if nested.Label != "Taille" || nested.Options[0].Label != "Petit" {
		t.Fatalf("nested input not localized: %+v", nested)
	}
}

func TestLocalizeDocumentCustomMissingHandler(t *testing.T) {
	t.Parallel()
	doc := render.Document{Title: "products"}
	render.LocalizeDocument(&doc, render.RenderOptions{
		OnMissing: func(locale, key string, _ []any, err error) string {
			if !errors.Is(err, render.ErrMissingTranslator) {
				t.Errorf("expected ErrMissingTranslator, got %v", err)
			}
			return "[" + key + "]"
		},
	})
	if doc.Title != "[products]" {
		t.Fatalf("unexpected title %q", doc.Title)
	}
}

func TestTemplateI18nFuncs(t *testing.T) {
	t.Parallel()
	catalog := render.NewCatalog("en")
	if err := catalog.Load("fr", []byte("hello: Bonjour %s")); err != nil {
		t.Fatalf("load: %v", err)
	}
	funcs := render.TemplateI18nFuncs(catalog, render.TemplateI18nConfig{})

	translate := funcs["translate"].(func(any, string, ...any) string)
	current := funcs["current_locale"].(func(any) string)

	if got := translate(map[string]any{"locale": "fr"}, "hello", "Ada"); got != "Bonjour Ada" {
		t.Fatalf("unexpected translation %q", got)
	}
	if got := translate("fr", "missing.key"); got != "missing.key" {
		t.Fatalf("expected key fallback, got %q", got)
	}
	data := struct{ Locale string }{Locale: "fr-CA"}
	if got := current(&data); got != "fr-CA" {
		t.Fatalf("unexpected locale %q", got)
	}
}

func TestOptionsT(t *testing.T) {
	t.Parallel()
	opts := render.RenderOptions{Locale: "en", Translator: stubTranslator{"table.next": "Next"}}
	tr := opts.T()
	if got := tr("table.next"); got != "Next" {
		t.Fatalf("unexpected %q", got)
	}
	if got := tr("table.unknown"); got != "table.unknown" {
		t.Fatalf("expected key, got %q", got)
	}
}
