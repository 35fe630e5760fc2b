package tui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/model"
)

type stubDriver struct {
	inputs    []string
	passwords []string
	confirm   []bool
	selectIdx []int
	multiIdx  [][]int
	textAreas []string
	info      []string
	selects   []SelectConfig
}

func pop[T any](queue *[]T, kind string) (T, error) {
	var zero T
	if len(*queue) == 0 {
		return zero, errors.New("no " + kind + " scripted")
	}
	v := (*queue)[0]
	*queue = (*queue)[1:]
	return v, nil
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	v, err := pop(&s.inputs, "input")
	if err == nil && cfg.Validator != nil {
		if verr := cfg.Validator(v); verr != nil {
			return "", verr
		}
	}
	return v, err
}

func (s *stubDriver) Password(context.Context, InputConfig) (string, error) {
	return pop(&s.passwords, "password")
}

func (s *stubDriver) Confirm(context.Context, ConfirmConfig) (bool, error) {
	return pop(&s.confirm, "confirm")
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	s.selects = append(s.selects, cfg)
	return pop(&s.selectIdx, "select")
}

func (s *stubDriver) MultiSelect(_ context.Context, cfg SelectConfig) ([]int, error) {
	s.selects = append(s.selects, cfg)
	return pop(&s.multiIdx, "multiselect")
}

func (s *stubDriver) TextArea(context.Context, TextAreaConfig) (string, error) {
	return pop(&s.textAreas, "textarea")
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.info = append(s.info, msg)
	return nil
}

func ignoreUID() cmp.Option {
	return cmpopts.IgnoreMapEntries(func(k string, _ any) bool { return k == form.ItemUIDKey })
}

func TestFillScalarKinds(t *testing.T) {
	fields := []model.Field{
		{Key: "name", Required: true},
		{Key: "price", Type: model.FieldTypeNumber},
		{Key: "active", Type: model.FieldTypeSwitch},
		{Key: "category", Type: model.FieldTypeSelect, Options: []any{"tools", "toys"}},
		{Key: "tags", Type: model.FieldTypeChips, Options: []any{"a", "b", "c"}},
		{Key: "notes", Type: model.FieldTypeTextarea},
		{Key: "password"},
	}
	driver := &stubDriver{
		inputs:    []string{"Hammer", "12.5"},
		confirm:   []bool{true},
		selectIdx: []int{2},
		multiIdx:  [][]int{{0, 2}},
		textAreas: []string{"heavy"},
		passwords: []string{"s3cret"},
	}

	got, err := New(WithPromptDriver(driver)).Fill(context.Background(), form.New(fields, nil))
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	want := model.Record{
		"name":     "Hammer",
		"price":    12.5,
		"active":   true,
		"category": "toys",
		"tags":     []any{"a", "c"},
		"notes":    "heavy",
		"password": "s3cret",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
	if first := driver.selects[0].Options[0]; first != noneLabel {
		t.Fatalf("optional select should offer %q first, got %q", noneLabel, first)
	}
}

func TestFillItemsAndChecks(t *testing.T) {
	fields := []model.Field{
		{
			Key:    "lines",
			Type:   model.FieldTypeItemsForm,
			Nested: []model.Field{{Key: "sku"}},
		},
		{
			Key:    "shipping",
			Type:   model.FieldTypeCheckForm,
			Check:  &model.CheckConfig{Options: []string{"express", "gift"}},
			Nested: []model.Field{{Key: "note"}},
		},
	}
	driver := &stubDriver{
		// item 1, item 2, then the gift note
		inputs:   []string{"A-1", "B-2", "ribbon"},
		confirm:  []bool{true, true, false},
		multiIdx: [][]int{{1}},
	}

	got, err := New(WithPromptDriver(driver)).Fill(context.Background(), form.New(fields, nil))
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	want := model.Record{
		"lines":    []any{map[string]any{"sku": "A-1"}, map[string]any{"sku": "B-2"}},
		"shipping": map[string]any{"gift": map[string]any{"note": "ribbon"}},
	}
	if diff := cmp.Diff(want, got, ignoreUID()); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestFillRetriesInvalidFields(t *testing.T) {
	fields := []model.Field{
		{Key: "email", Validations: []model.ValidationRule{{Kind: model.ValidationRuleEmail}}},
		{Key: "name"},
	}
	driver := &stubDriver{inputs: []string{"nope", "Ada", "ada@example.com"}}

	got, err := New(WithPromptDriver(driver)).Fill(context.Background(), form.New(fields, nil))
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if got["email"] != "ada@example.com" || got["name"] != "Ada" {
		t.Fatalf("unexpected record %v", got)
	}
	if len(driver.info) != 1 || !strings.HasPrefix(driver.info[0], "email:") {
		t.Fatalf("expected one error line for email, got %q", driver.info)
	}
}

func TestFillGivesUpAfterRetries(t *testing.T) {
	fields := []model.Field{{Key: "email", Validations: []model.ValidationRule{{Kind: model.ValidationRuleEmail}}}}
	driver := &stubDriver{inputs: []string{"x", "y"}}

	_, err := New(WithPromptDriver(driver), WithRetries(1)).Fill(context.Background(), form.New(fields, nil))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestFillFetchesRemoteOptions(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if r.URL.Path != "/api/collections/products/options/vendor" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []model.Option{{Value: "acme", Label: "Acme"}, {Value: "bolt", Label: "Bolt"}},
		})
	}))
	defer srv.Close()

	fields := []model.Field{{
		Key:        "vendor",
		Type:       model.FieldTypeAutocomplete,
		Required:   true,
		OptionsURL: "/api/collections/products/options/vendor?q=",
	}}
	driver := &stubDriver{selectIdx: []int{1}}
	p := New(WithPromptDriver(driver), WithRemoteOptions(srv.Client(), srv.URL, "tok"))

	got, err := p.Fill(context.Background(), form.New(fields, nil))
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if got["vendor"] != "bolt" {
		t.Fatalf("vendor = %v, want bolt", got["vendor"])
	}
	if auth != "Bearer tok" {
		t.Fatalf("authorization = %q", auth)
	}
}

func TestFillAborts(t *testing.T) {
	fields := []model.Field{{Key: "name"}}
	_, err := New(WithPromptDriver(&stubDriver{})).Fill(context.Background(), form.New(fields, nil))
	if err == nil {
		t.Fatal("expected the unscripted prompt to fail")
	}
}

func TestEncode(t *testing.T) {
	rec := model.Record{"name": "Hammer", "tags": []any{"a", "b"}, "dims": map[string]any{"w": 2.0}}

	pretty, err := New(WithPromptDriver(&stubDriver{}), WithOutputFormat(OutputFormatPrettyText)).Encode(rec)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("dims.w=2\nname=Hammer\ntags[0]=a\ntags[1]=b\n", string(pretty)); diff != "" {
		t.Fatalf("pretty mismatch (-want +got):\n%s", diff)
	}

	p := New(WithPromptDriver(&stubDriver{}), WithOutputFormat(OutputFormatFormURLEncoded))
	encoded, err := p.Encode(rec)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("dims.w=2&name=Hammer&tags=a&tags=b", string(encoded)); diff != "" {
		t.Fatalf("form mismatch (-want +got):\n%s", diff)
	}
	if p.ContentType() != "application/x-www-form-urlencoded" {
		t.Fatalf("content type %q", p.ContentType())
	}
}
