// Package tui fills collection forms from the terminal. It walks the same
// input tree the admin pages render and writes each answer back into the
// form, so validation and value decoding stay identical to the web forms.
package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/widgets"
)

const noneLabel = "(none)"

// Prompter asks for the values of a form.
type Prompter struct {
	driver  PromptDriver
	format  OutputFormat
	client  *http.Client
	base    string
	token   string
	retries int
	out     io.Writer
}

// New builds a Prompter on the survey driver unless another is given.
func New(opts ...Option) *Prompter {
	p := &Prompter{
		format:  OutputFormatJSON,
		retries: DefaultRetries,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.driver == nil {
		p.driver = NewSurveyDriver(p.out)
	}
	return p
}

// Fill asks every editable input of f and returns the values once they
// validate. Fields that fail are asked again up to the retry limit.
func (p *Prompter) Fill(ctx context.Context, f *form.Form) (model.Record, error) {
	cache := map[string][]model.Option{}
	if err := p.walk(ctx, f, f.Inputs(), cache); err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		errs := f.Validate()
		if len(errs) == 0 {
			return f.Values(), nil
		}
		paths := make([]string, 0, len(errs))
		for path := range errs {
			paths = append(paths, path)
		}
		sort.Strings(paths)
		if attempt >= p.retries {
			return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(paths, ", "))
		}
		for _, path := range paths {
			if err := p.driver.Info(ctx, fmt.Sprintf("%s: %s", path, errs[path])); err != nil {
				return nil, err
			}
		}

		var retry []form.Input
		for _, in := range f.Inputs() {
			if failing(paths, in.Path) {
				retry = append(retry, in)
			}
		}
		if err := p.walk(ctx, f, retry, cache); err != nil {
			return nil, err
		}
	}
}

func failing(paths []string, prefix string) bool {
	for _, path := range paths {
		if path == prefix || strings.HasPrefix(path, prefix+".") {
			return true
		}
	}
	return false
}

func (p *Prompter) walk(ctx context.Context, f *form.Form, inputs []form.Input, cache map[string][]model.Option) error {
	for _, in := range inputs {
		if err := p.ask(ctx, f, in, cache); err != nil {
			return err
		}
	}
	return nil
}

func (p *Prompter) ask(ctx context.Context, f *form.Form, in form.Input, cache map[string][]model.Option) error {
	switch in.Type {
	case model.FieldTypeSwitch, model.FieldTypeCheckbox:
		current, _ := in.Value.(bool)
		ok, err := p.driver.Confirm(ctx, ConfirmConfig{Message: in.Label, Default: current, Help: in.Description})
		if err != nil {
			return err
		}
		return f.Set(in.Path, ok)

	case model.FieldTypeNumber, model.FieldTypeSlider:
		raw, err := p.driver.Input(ctx, InputConfig{
			Message:   in.Label,
			Default:   model.Stringify(in.Value),
			Help:      in.Description,
			Validator: numberValidator(in),
		})
		if err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return f.Set(in.Path, nil)
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("tui: %s: %w", in.Path, err)
		}
		return f.Set(in.Path, n)

	case model.FieldTypeTextarea, model.FieldTypeRich:
		text, err := p.driver.TextArea(ctx, TextAreaConfig{Message: in.Label, Default: model.Stringify(in.Value), Help: in.Description})
		if err != nil {
			return err
		}
		return f.Set(in.Path, text)

	case model.FieldTypeSelect, model.FieldTypeSegmented, model.FieldTypeAutocomplete:
		opts := p.options(ctx, in, cache)
		if len(opts) == 0 {
			return p.askText(ctx, f, in)
		}
		labels := optionLabels(opts)
		if !in.Required {
			labels = append([]string{noneLabel}, labels...)
		}
		idx, err := p.driver.Select(ctx, SelectConfig{
			Message:      in.Label,
			Options:      labels,
			DefaultIndex: defaultIndex(opts, in.Value, !in.Required),
			Help:         in.Description,
		})
		if err != nil {
			return err
		}
		if !in.Required {
			idx--
		}
		if idx < 0 || idx >= len(opts) {
			return f.Set(in.Path, nil)
		}
		return f.Set(in.Path, opts[idx].Value)

	case model.FieldTypeMultiSelect, model.FieldTypeChips:
		opts := p.options(ctx, in, cache)
		if len(opts) == 0 {
			return p.askList(ctx, f, in)
		}
		picked, err := p.driver.MultiSelect(ctx, SelectConfig{
			Message:  in.Label,
			Options:  optionLabels(opts),
			Defaults: defaultIndices(opts, in.Value),
			Help:     in.Description,
		})
		if err != nil {
			return err
		}
		values := make([]any, 0, len(picked))
		for _, i := range picked {
			values = append(values, opts[i].Value)
		}
		return f.Set(in.Path, values)

	case model.FieldTypeItemsForm:
		for _, item := range in.Items {
			if err := p.driver.Info(ctx, item.Label); err != nil {
				return err
			}
			if err := p.walk(ctx, f, item.Inputs, cache); err != nil {
				return err
			}
		}
		for {
			more, err := p.driver.Confirm(ctx, ConfirmConfig{Message: fmt.Sprintf("Add an item to %s?", in.Label)})
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
			if _, err := f.AddItem(in.Path); err != nil {
				return err
			}
			current, ok := findInput(f.Inputs(), in.Path)
			if !ok || len(current.Items) == 0 {
				return fmt.Errorf("tui: %s: item was not added", in.Path)
			}
			if err := p.walk(ctx, f, current.Items[len(current.Items)-1].Inputs, cache); err != nil {
				return err
			}
		}

	case model.FieldTypeCheckForm:
		options := make([]string, len(in.Checks))
		var defaults []int
		for i, check := range in.Checks {
			options[i] = check.Option
			if check.Checked {
				defaults = append(defaults, i)
			}
		}
		picked, err := p.driver.MultiSelect(ctx, SelectConfig{Message: in.Label, Options: options, Defaults: defaults, Help: in.Description})
		if err != nil {
			return err
		}
		for i, option := range options {
			if err := f.ToggleCheck(in.Path, option, slices.Contains(picked, i)); err != nil {
				return err
			}
		}
		current, _ := findInput(f.Inputs(), in.Path)
		for _, check := range current.Checks {
			if !check.Checked {
				continue
			}
			if err := p.walk(ctx, f, check.Inputs, cache); err != nil {
				return err
			}
		}
		return nil
	}
	return p.askText(ctx, f, in)
}

func (p *Prompter) askText(ctx context.Context, f *form.Form, in form.Input) error {
	cfg := InputConfig{
		Message:   in.Label,
		Default:   model.Stringify(in.Value),
		Help:      helpFor(in),
		Validator: textValidator(in),
	}
	var (
		text string
		err  error
	)
	if in.Widget == widgets.WidgetPassword {
		cfg.Default = ""
		text, err = p.driver.Password(ctx, cfg)
		if err == nil && text == "" {
			return nil
		}
	} else {
		text, err = p.driver.Input(ctx, cfg)
	}
	if err != nil {
		return err
	}
	return f.Set(in.Path, text)
}

// askList reads comma separated values for list kinds without options.
func (p *Prompter) askList(ctx context.Context, f *form.Form, in form.Input) error {
	current, _ := in.Value.([]any)
	parts := make([]string, 0, len(current))
	for _, v := range current {
		parts = append(parts, model.Stringify(v))
	}
	raw, err := p.driver.Input(ctx, InputConfig{
		Message: in.Label,
		Default: strings.Join(parts, ", "),
		Help:    "Comma separated",
	})
	if err != nil {
		return err
	}
	values := []any{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return f.Set(in.Path, values)
}

// options returns the static options, or the remote ones when the input
// carries an options URL and remote lookups are enabled.
func (p *Prompter) options(ctx context.Context, in form.Input, cache map[string][]model.Option) []model.Option {
	if len(in.Options) > 0 || in.OptionsURL == "" || p.client == nil {
		return in.Options
	}
	if opts, ok := cache[in.OptionsURL]; ok {
		return opts
	}
	opts, err := p.fetchOptions(ctx, in.OptionsURL)
	if err != nil {
		_ = p.driver.Info(ctx, fmt.Sprintf("%s: options unavailable: %v", in.Label, err))
	}
	cache[in.OptionsURL] = opts
	return opts
}

func (p *Prompter) fetchOptions(ctx context.Context, ref string) ([]model.Option, error) {
	target, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if !target.IsAbs() {
		base, err := url.Parse(p.base + "/")
		if err != nil {
			return nil, fmt.Errorf("parse base: %w", err)
		}
		target = base.ResolveReference(target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Data []model.Option `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return payload.Data, nil
}

func findInput(inputs []form.Input, path string) (form.Input, bool) {
	for _, in := range inputs {
		if in.Path == path {
			return in, true
		}
		if !strings.HasPrefix(path, in.Path+".") {
			continue
		}
		for _, item := range in.Items {
			if found, ok := findInput(item.Inputs, path); ok {
				return found, true
			}
		}
		for _, check := range in.Checks {
			if found, ok := findInput(check.Inputs, path); ok {
				return found, true
			}
		}
	}
	return form.Input{}, false
}

func helpFor(in form.Input) string {
	if in.Description != "" {
		return in.Description
	}
	return in.Placeholder
}

func textValidator(in form.Input) func(string) error {
	field := model.Field{Key: in.Key, Type: in.Type, Required: in.Required}
	return func(raw string) error {
		if msg := form.ValidateValue(field, raw); msg != "" {
			return errors.New(msg)
		}
		return nil
	}
}

func numberValidator(in form.Input) func(string) error {
	field := model.Field{Key: in.Key, Type: model.FieldTypeNumber, Required: in.Required, Number: in.Number}
	return func(raw string) error {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			if in.Required {
				return errors.New("required")
			}
			return nil
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return errors.New("must be a number")
		}
		if msg := form.ValidateValue(field, n); msg != "" {
			return errors.New(msg)
		}
		return nil
	}
}

func optionLabels(opts []model.Option) []string {
	out := make([]string, len(opts))
	for i, opt := range opts {
		out[i] = opt.Label
		if opt.Group != "" {
			out[i] = opt.Group + " / " + opt.Label
		}
	}
	return out
}

func defaultIndex(opts []model.Option, value any, offset bool) int {
	want := model.Stringify(value)
	for i, opt := range opts {
		if value != nil && model.Stringify(opt.Value) == want {
			if offset {
				return i + 1
			}
			return i
		}
	}
	return 0
}

func defaultIndices(opts []model.Option, value any) []int {
	current, _ := value.([]any)
	var out []int
	for i, opt := range opts {
		for _, v := range current {
			if model.Stringify(opt.Value) == model.Stringify(v) {
				out = append(out, i)
				break
			}
		}
	}
	return out
}
