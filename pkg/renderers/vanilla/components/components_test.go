package components_test

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/renderers/vanilla/components"
)

func noop(*bytes.Buffer, form.Input, components.ComponentData) error { return nil }

func TestRegistryRegisterCloneAndAssets(t *testing.T) {
	t.Parallel()
	registry := components.New()
	if err := registry.Register(" ", components.Descriptor{Renderer: noop}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := registry.Register("map", components.Descriptor{}); err == nil {
		t.Fatal("expected error for nil renderer")
	}

	shared := components.Script{Src: "/js/shared.js", Attrs: map[string]string{"nonce": "n"}}
	registry.MustRegister("Map", components.Descriptor{
		Renderer:    noop,
		Stylesheets: []string{"/css/map.css", "/css/shared.css"},
		Scripts:     []components.Script{shared},
	})
	registry.MustRegister("chart", components.Descriptor{
		Renderer:    noop,
		Stylesheets: []string{"/css/shared.css"},
		Scripts:     []components.Script{shared, {Inline: "draw()"}},
	})

	styles, scripts := registry.Assets([]string{"map", "CHART", "missing"})
	if diff := cmp.Diff([]string{"/css/map.css", "/css/shared.css"}, styles); diff != "" {
		t.Fatalf("stylesheets mismatch (-want +got):\n%s", diff)
	}
	if len(scripts) != 2 || scripts[0].Src != "/js/shared.js" || scripts[1].Inline != "draw()" {
		t.Fatalf("unexpected scripts %+v", scripts)
	}

	clone := registry.Clone()
	clone.MustRegister("extra", components.Descriptor{Renderer: noop})
	d, _ := clone.Descriptor("map")
	d.Scripts[0].Attrs["nonce"] = "changed"

	original, ok := registry.Descriptor("MAP")
	if !ok || original.Name != "map" || original.Scripts[0].Attrs["nonce"] != "n" {
		t.Fatalf("clone leaked into the original: %+v", original)
	}
	if diff := cmp.Diff([]string{"chart", "map"}, registry.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultRegistryCoversEveryWidget(t *testing.T) {
	t.Parallel()
	registry := components.NewDefaultRegistry()
	for _, name := range []string{
		components.NameText, components.NameEmail, components.NamePassword, components.NameTextarea,
		components.NameRich, components.NameNumber, components.NameSlider, components.NameToggle,
		components.NameCheckbox, components.NameSegmented, components.NameSelect, components.NameMultiSelect,
		components.NameAutocomplete, components.NameChips, components.NameDate, components.NameItems,
		components.NameCheckGroup, components.NameJSON,
	} {
		if _, ok := registry.Descriptor(name); !ok {
			t.Errorf("component %q is not registered", name)
		}
	}
}

func TestNewControl(t *testing.T) {
	t.Parallel()
	lo, hi := 0.0, 10.0
	c := components.NewControl(form.Input{
		Path:   "rating",
		Label:  "Rating",
		Widget: components.NameSlider,
		Value:  float64(4),
		Number: &model.NumberConfig{Min: &lo, Max: &hi, Step: 0.5, Unit: "pts"},
	})
	if c.ID != "ck-rating" || c.Type != "range" || c.Value != "4" || c.Min != "0" || c.Max != "10" || c.Step != "0.5" || c.Unit != "pts" {
		t.Fatalf("unexpected slider control %+v", c)
	}

	multi := components.NewControl(form.Input{
		Path:    "tags",
		Widget:  components.NameMultiSelect,
		Value:   []any{"b", float64(3)},
		Options: []model.Option{{Value: "a", Label: "A"}, {Value: "b", Label: "B"}, {Value: float64(3), Label: "Three"}},
	})
	var selected []string
	for _, opt := range multi.Options {
		if opt.Selected {
			selected = append(selected, opt.Value)
		}
	}
	if !multi.Multiple || !cmp.Equal([]string{"b", "3"}, selected) {
		t.Fatalf("unexpected selection %v (multiple=%v)", selected, multi.Multiple)
	}

	date := components.NewControl(form.Input{Path: "due", Widget: components.NameDate, Value: "2024-05-01T10:00:00Z", Error: "bad"})
	if date.Value != "2024-05-01" || !date.Invalid || date.Type != "date" {
		t.Fatalf("unexpected date control %+v", date)
	}

	toggle := components.NewControl(form.Input{Path: "on", Widget: components.NameToggle, Value: "true"})
	if !toggle.Checked || toggle.Value != "true" {
		t.Fatalf("unexpected toggle control %+v", toggle)
	}
}

func TestJSONEditorValue(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in    any
		want  string
		valid bool
	}{
		{nil, "{}", true},
		{"  ", "{}", true},
		{`{"b":1,"a":[true]}`, "{\n  \"a\": [\n    true\n  ],\n  \"b\": 1\n}", true},
		{"{oops", "{oops", false},
		{map[string]any{"z": "x", "k": 1}, "{\n  \"k\": 1,\n  \"z\": \"x\"\n}", true},
	}
	for _, tc := range cases {
		got, valid := components.JSONEditorValue(tc.in)
		if got != tc.want || valid != tc.valid {
			t.Errorf("JSONEditorValue(%v) = %q, %v; want %q, %v", tc.in, got, valid, tc.want, tc.valid)
		}
	}
}

func TestControlIDs(t *testing.T) {
	t.Parallel()
	if got := components.ControlID("variants.0.size"); got != "ck-variants-0-size" {
		t.Fatalf("unexpected id %q", got)
	}
	if components.ControlID(" ") != "" || components.LabelID("") != "" {
		t.Fatal("blank paths have no ids")
	}
	if got := components.LabelID("name"); got != "ck-name-label" {
		t.Fatalf("unexpected label id %q", got)
	}
}
