package form_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/widgets"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("uid-%d", n)
	}
}

func productFields() []model.Field {
	min := 0.0
	return []model.Field{
		{Key: "name", Required: true},
		{Key: "price", Type: model.FieldTypeNumber, Number: &model.NumberConfig{Min: &min}},
		{Key: "body", Type: model.FieldTypeRich},
		{
			Key:  "variants",
			Type: model.FieldTypeItemsForm,
			Items: &model.ItemsConfig{
				Layout:   model.LayoutAccordion,
				Defaults: map[string]any{"stock": float64(0)},
				LabelKey: "sku",
			},
			Nested: []model.Field{
				{Key: "sku", Required: true},
				{Key: "stock", Type: model.FieldTypeNumber},
			},
		},
		{
			Key:   "extras",
			Type:  model.FieldTypeCheckForm,
			Check: &model.CheckConfig{Options: []string{"gift", "warranty"}},
			Nested: []model.Field{
				{Key: "note"},
			},
		},
		{Label: "Computed", Value: func(r model.Record) any { return "display only" }},
	}
}

func TestAddItemToEmptyArray(t *testing.T) {
	t.Parallel()

	f := form.New(productFields(), model.Record{"name": "Shirt"}, form.WithIDGenerator(sequentialIDs()))
	entry, err := f.AddItem("variants")
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	want := []any{map[string]any{"stock": float64(0), "uid": "uid-1"}}
	if diff := cmp.Diff(want, f.Get("variants")); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	if entry["uid"] != "uid-1" {
		t.Fatalf("returned entry missing uid: %+v", entry)
	}
}

func TestAddItemGeneratesUniqueIDs(t *testing.T) {
	t.Parallel()

	f := form.New(productFields(), nil)
	first, _ := f.AddItem("variants")
	second, _ := f.AddItem("variants")
	if first["uid"] == "" || first["uid"] == second["uid"] {
		t.Fatalf("expected distinct generated uids, got %v and %v", first["uid"], second["uid"])
	}
}

func TestRemoveItemKeepsRemainder(t *testing.T) {
	t.Parallel()

	initial := model.Record{"variants": []any{
		map[string]any{"sku": "A", "stock": float64(1)},
		map[string]any{"sku": "B", "stock": float64(2)},
	}}
	f := form.New(productFields(), initial)
	before := f.Get("variants").([]any)

	if err := f.RemoveItem("variants", 0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	after := f.Get("variants").([]any)
	if diff := cmp.Diff([]any{before[1]}, after); diff != "" {
		t.Fatalf("remaining item changed (-want +got):\n%s", diff)
	}
	if err := f.RemoveItem("variants", 5); !errors.Is(err, form.ErrPath) {
		t.Fatalf("expected ErrPath for out of range, got %v", err)
	}
	if err := f.RemoveItem("name", 0); !errors.Is(err, form.ErrPath) {
		t.Fatalf("expected ErrPath for non itemsform, got %v", err)
	}
}

func TestInitialValuesMergeDefaultsWithoutMutatingInput(t *testing.T) {
	t.Parallel()

	initial := model.Record{"variants": []any{map[string]any{"sku": "A"}, map[string]any{"sku": "B", "stock": float64(9)}}}
	f := form.New(productFields(), initial)

	want := []any{
		map[string]any{"sku": "A", "stock": float64(0)},
		map[string]any{"sku": "B", "stock": float64(9)},
	}
	if diff := cmp.Diff(want, f.Get("variants")); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}
	if _, ok := initial["variants"].([]any)[0].(map[string]any)["stock"]; ok {
		t.Fatalf("initial record was mutated")
	}
}

func TestToggleCheck(t *testing.T) {
	t.Parallel()

	f := form.New(productFields(), nil)
	if err := f.ToggleCheck("extras", "gift", true); err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := f.Set("extras.gift.note", "wrap it"); err != nil {
		t.Fatalf("set nested: %v", err)
	}
	if err := f.ToggleCheck("extras", "gift", true); err != nil {
		t.Fatalf("recheck: %v", err)
	}
	if got := f.Get("extras.gift.note"); got != "wrap it" {
		t.Fatalf("re-checking should keep existing sub-object, got %v", got)
	}
	if err := f.ToggleCheck("extras", "warranty", true); err != nil {
		t.Fatalf("check warranty: %v", err)
	}
	if diff := cmp.Diff(map[string]any{}, f.Get("extras.warranty")); diff != "" {
		t.Fatalf("checking should initialise an empty object (-want +got):\n%s", diff)
	}

	if err := f.ToggleCheck("extras", "gift", false); err != nil {
		t.Fatalf("uncheck: %v", err)
	}
	extras := f.Get("extras").(map[string]any)
	if _, ok := extras["gift"]; ok {
		t.Fatalf("unchecking should delete the key, got %+v", extras)
	}
	if diff := cmp.Diff(map[string]bool{"gift": false, "warranty": true}, f.Checked("extras")); diff != "" {
		t.Fatalf("checked mismatch (-want +got):\n%s", diff)
	}
	if err := f.ToggleCheck("extras", "nope", true); !errors.Is(err, form.ErrPath) {
		t.Fatalf("expected ErrPath for unknown option, got %v", err)
	}
}

func TestCommitValidation(t *testing.T) {
	t.Parallel()

	var submitted model.Record
	submit := func(_ context.Context, values model.Record) error {
		submitted = values
		return nil
	}

	f := form.New(productFields(), model.Record{
		"price":    float64(-1),
		"variants": []any{map[string]any{"sku": ""}},
	}, form.WithSubmit(submit))

	err := f.Commit(context.Background())
	var verr *form.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := map[string]string{
		"name":           "required",
		"price":          "must be at least 0",
		"variants.0.sku": "required",
	}
	if diff := cmp.Diff(want, verr.Fields); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
	if submitted != nil {
		t.Fatalf("submit should be blocked")
	}

	_ = f.Set("name", "Shirt")
	_ = f.Set("price", float64(10))
	_ = f.Set("variants.0.sku", "S-1")
	_ = f.Set("body", `<p onclick="x()">Hi<script>alert(1)</script></p>`)
	if err := f.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if body := submitted["body"].(string); strings.Contains(body, "script") || strings.Contains(body, "onclick") {
		t.Fatalf("rich text not sanitised: %q", body)
	}
	if len(f.Errors()) != 0 {
		t.Fatalf("errors should clear after a valid commit: %+v", f.Errors())
	}
}

func TestCommitWithoutValidationPassesRawValues(t *testing.T) {
	t.Parallel()

	var submitted model.Record
	f := form.New(productFields(), model.Record{"body": "<script>x</script>"},
		form.WithNoValidation(),
		form.WithSubmit(func(_ context.Context, values model.Record) error {
			submitted = values
			return nil
		}),
	)
	if err := f.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if submitted["body"] != "<script>x</script>" {
		t.Fatalf("expected raw values, got %+v", submitted)
	}

	if err := form.New(nil, nil).Commit(context.Background()); !errors.Is(err, form.ErrNoSubmit) {
		t.Fatalf("expected ErrNoSubmit, got %v", err)
	}
}

func TestRecordValidator(t *testing.T) {
	t.Parallel()

	f := form.New([]model.Field{{Key: "start"}, {Key: "end"}}, model.Record{"start": "b", "end": "a"},
		form.WithValidator(func(values model.Record) map[string]string {
			if model.Stringify(values["end"]) < model.Stringify(values["start"]) {
				return map[string]string{"end": "must follow start"}
			}
			return nil
		}),
		form.WithSubmit(func(context.Context, model.Record) error { return nil }),
	)
	err := f.Commit(context.Background())
	var verr *form.ValidationError
	if !errors.As(err, &verr) || verr.Fields["end"] != "must follow start" {
		t.Fatalf("expected record validator error, got %v", err)
	}
}

func TestValidateValueRules(t *testing.T) {
	t.Parallel()

	rule := func(kind string, params map[string]string) []model.ValidationRule {
		return []model.ValidationRule{{Kind: kind, Params: params}}
	}
	cases := []struct {
		name  string
		field model.Field
		value any
		want  string
	}{
		{"min length", model.Field{Validations: rule(model.ValidationRuleMinLength, map[string]string{"value": "3"})}, "ab", "must have at least 3 characters"},
		{"max length ok", model.Field{Validations: rule(model.ValidationRuleMaxLength, map[string]string{"value": "3"})}, "abc", ""},
		{"pattern", model.Field{Validations: rule(model.ValidationRulePattern, map[string]string{"pattern": `^\d+$`})}, "12a", "has an invalid format"},
		{"email", model.Field{Validations: rule(model.ValidationRuleEmail, nil)}, "nope", "must be a valid email"},
		{"email ok", model.Field{Validations: rule(model.ValidationRuleEmail, nil)}, "ann@example.com", ""},
		{"url", model.Field{Validations: rule(model.ValidationRuleURL, nil)}, "example", "must be a valid URL"},
		{"custom message", model.Field{Validations: rule(model.ValidationRuleMax, map[string]string{"value": "5", "message": "too big"})}, float64(6), "too big"},
		{"empty skips rules", model.Field{Validations: rule(model.ValidationRuleMinLength, map[string]string{"value": "3"})}, "", ""},
		{"required rule", model.Field{Validations: rule(model.ValidationRuleRequired, nil)}, []any{}, "required"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := form.ValidateValue(tc.field, tc.value); got != tc.want {
				t.Fatalf("ValidateValue = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDeleteGate(t *testing.T) {
	t.Parallel()

	calls := 0
	gate := form.NewDeleteGate(func(context.Context) error {
		calls++
		return nil
	})
	ctx := context.Background()

	if err := gate.Confirm(ctx); !errors.Is(err, form.ErrNotArmed) {
		t.Fatalf("confirm without request should fail, got %v", err)
	}
	gate.Request()
	gate.Cancel()
	if err := gate.Confirm(ctx); !errors.Is(err, form.ErrNotArmed) {
		t.Fatalf("cancelled request should not delete")
	}
	gate.Request()
	if !gate.Armed() {
		t.Fatalf("gate should be armed")
	}
	if err := gate.Confirm(ctx); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := gate.Bypass(ctx); err != nil {
		t.Fatalf("bypass: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 deletes, got %d", calls)
	}
}

func TestInputsTree(t *testing.T) {
	t.Parallel()

	fields := append(productFields(),
		model.Field{Key: "color", Type: "color"},
		model.Field{Key: "status", Type: model.FieldTypeSelect, Options: []any{"draft", "live"}},
	)
	f := form.New(fields, model.Record{
		"color":    float64(7),
		"variants": []any{map[string]any{"uid": "v1", "sku": "S-1"}, map[string]any{"sku": "S-2"}},
		"extras":   map[string]any{"gift": map[string]any{"note": "hi"}},
	})
	inputs := f.Inputs()

	byKey := map[string]form.Input{}
	for _, in := range inputs {
		byKey[in.Key] = in
	}
	if len(inputs) != 7 {
		t.Fatalf("expected display-only field skipped, got %d inputs", len(inputs))
	}

	color := byKey["color"]
	if color.Widget != widgets.WidgetText || color.Value != "7" || color.Type != model.FieldTypeText {
		t.Fatalf("unknown kind should coerce to text: %+v", color)
	}

	variants := byKey["variants"]
	if variants.Layout != model.LayoutAccordion || len(variants.Items) != 2 {
		t.Fatalf("unexpected variants input: %+v", variants)
	}
	if variants.Items[0].Key != "v1" || variants.Items[1].Key != "S-2" || variants.Items[1].Label != "S-2" {
		t.Fatalf("unexpected item keys: %+v", variants.Items)
	}
	if variants.Items[1].Inputs[0].Path != "variants.1.sku" {
		t.Fatalf("unexpected nested path %q", variants.Items[1].Inputs[0].Path)
	}

	extras := byKey["extras"]
	if len(extras.Checks) != 2 || !extras.Checks[0].Checked || extras.Checks[1].Checked {
		t.Fatalf("unexpected checks: %+v", extras.Checks)
	}
	if extras.Checks[0].Inputs[0].Value != "hi" {
		t.Fatalf("checked option should carry nested inputs: %+v", extras.Checks[0])
	}

	if got := len(byKey["status"].Options); got != 2 {
		t.Fatalf("expected options on select, got %d", got)
	}
}
