package form_test

import (
	"errors"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/widgets"
)

func TestApplyValuesNestedForms(t *testing.T) {
	t.Parallel()

	initial := model.Record{
		"name":     "Shirt",
		"body":     "<p>kept</p>",
		"variants": []any{map[string]any{"sku": "A", "stock": float64(1)}},
		"extras":   map[string]any{"warranty": map[string]any{"note": "old"}},
	}
	f := form.New(productFields(), initial)

	posted := url.Values{
		"name":             {"Shirt 2"},
		"price":            {"12.5"},
		"variants.0.sku":   {"B"},
		"variants.0.stock": {"3"},
		"extras":           {"gift"},
		"extras.gift.note": {"wrap it"},
	}
	if err := f.ApplyValues(posted); err != nil {
		t.Fatalf("apply: %v", err)
	}

	want := model.Record{
		"name":     "Shirt 2",
		"price":    12.5,
		"body":     "<p>kept</p>",
		"variants": []any{map[string]any{"sku": "B", "stock": float64(3)}},
		"extras":   map[string]any{"gift": map[string]any{"note": "wrap it"}},
	}
	if diff := cmp.Diff(want, f.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyValuesTypedControls(t *testing.T) {
	t.Parallel()

	fields := []model.Field{
		{Key: "tags", Type: model.FieldTypeMultiSelect, Options: []any{"a", "b", "c"}},
		{Key: "rating", Type: model.FieldTypeSelect, Options: []any{float64(1), float64(2)}},
		{Key: "active", Type: model.FieldTypeSwitch},
		{Key: "secret", Widget: widgets.WidgetPassword},
		{Key: "meta", Widget: widgets.WidgetJSON},
	}
	f := form.New(fields, model.Record{"tags": []any{"c"}, "secret": "old", "active": false})

	posted := url.Values{
		"tags":   {"a", "b"},
		"rating": {"2"},
		"active": {"false", "true"},
		"secret": {""},
		"meta":   {`{"depth": 2}`},
	}
	if err := f.ApplyValues(posted); err != nil {
		t.Fatalf("apply: %v", err)
	}

	want := model.Record{
		"tags":   []any{"a", "b"},
		"rating": float64(2),
		"active": true,
		"secret": "old",
		"meta":   map[string]any{"depth": float64(2)},
	}
	if diff := cmp.Diff(want, f.Values()); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	if err := f.ApplyValues(url.Values{"active": {"false"}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := f.Get("tags"); len(got.([]any)) != 0 {
		t.Fatalf("an unposted multi-select should be cleared, got %v", got)
	}
	if f.Get("active") != false {
		t.Fatalf("hidden false should switch the toggle off")
	}
}

func TestApplyValuesReportsUndecodable(t *testing.T) {
	t.Parallel()

	fields := []model.Field{
		{Key: "price", Type: model.FieldTypeNumber},
		{Key: "meta", Widget: widgets.WidgetJSON},
	}
	f := form.New(fields, model.Record{"price": float64(3)})

	err := f.ApplyValues(url.Values{"price": {"abc"}, "meta": {"{"}})
	var verr *form.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	want := map[string]string{"price": "Must be a number", "meta": "Invalid JSON"}
	if diff := cmp.Diff(want, verr.Fields); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if f.Get("price") != float64(3) {
		t.Fatalf("undecodable value should not overwrite the current one")
	}
	if diff := cmp.Diff(want, f.Errors()); diff != "" {
		t.Fatalf("form errors mismatch (-want +got):\n%s", diff)
	}
}

func TestParseItemAction(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want form.ItemAction
		ok   bool
	}{
		{raw: "add:variants", want: form.ItemAction{Path: "variants"}, ok: true},
		{raw: "remove:variants.1", want: form.ItemAction{Remove: true, Path: "variants", Index: 1}, ok: true},
		{raw: "remove:extras.gift.lines.0", want: form.ItemAction{Remove: true, Path: "extras.gift.lines"}, ok: true},
		{raw: "remove:variants"},
		{raw: "remove:variants.x"},
		{raw: "grow:variants"},
		{raw: "add:"},
		{raw: ""},
	}
	for _, tc := range cases {
		got, ok := form.ParseItemAction(tc.raw)
		if ok != tc.ok {
			t.Errorf("ParseItemAction(%q) ok = %v, want %v", tc.raw, ok, tc.ok)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("ParseItemAction(%q) mismatch (-want +got):\n%s", tc.raw, diff)
		}
	}
}

func TestApplyItemAction(t *testing.T) {
	t.Parallel()

	f := form.New(productFields(), nil, form.WithIDGenerator(sequentialIDs()))
	for _, raw := range []string{"add:variants", "add:variants", "remove:variants.0"} {
		action, _ := form.ParseItemAction(raw)
		if err := f.ApplyItemAction(action); err != nil {
			t.Fatalf("%s: %v", raw, err)
		}
	}
	want := []any{map[string]any{"stock": float64(0), "uid": "uid-2"}}
	if diff := cmp.Diff(want, f.Get("variants")); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
}
