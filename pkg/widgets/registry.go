package widgets

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// Widget identifiers resolved by the built-in matchers.
const (
	WidgetText         = "text"
	WidgetEmail        = "email"
	WidgetPassword     = "password"
	WidgetTextarea     = "textarea"
	WidgetRich         = "rich"
	WidgetNumber       = "number"
	WidgetSlider       = "slider"
	WidgetToggle       = "toggle"
	WidgetCheckbox     = "checkbox"
	WidgetSegmented    = "segmented"
	WidgetSelect       = "select"
	WidgetMultiSelect  = "multiselect"
	WidgetAutocomplete = "autocomplete"
	WidgetChips        = "chips"
	WidgetDate         = "date"
	WidgetItems        = "items"
	WidgetCheckGroup   = "check-group"
	// WidgetJSON is never resolved by a matcher; descriptors opt in with
	// an explicit widget for free-form objects.
	WidgetJSON = "json"
)

// AutocompleteThreshold is the option count above which selects become
// autocompletes.
const AutocompleteThreshold = 12

// Matcher decides whether a widget should handle the supplied field.
type Matcher func(field model.Field) bool

type rule struct {
	name     string
	priority int
	match    Matcher
	order    int
}

// Registry picks a widget per descriptor. An explicit Field.Widget wins;
// otherwise the highest priority matching rule is used, ties broken by
// registration order. Fields nothing matches fall back to WidgetText.
type Registry struct {
	mu    sync.RWMutex
	rules []rule
}

// NewRegistry constructs a registry with the built-in matchers registered.
func NewRegistry() *Registry {
	reg := &Registry{}
	reg.registerBuiltins()
	return reg
}

// Register adds a matcher. Higher priority values take precedence; equal
// priorities resolve in registration order.
func (r *Registry) Register(name string, priority int, matcher Matcher) {
	if r == nil || matcher == nil {
		return
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = append(r.rules, rule{
		name:     trimmed,
		priority: priority,
		match:    matcher,
		order:    len(r.rules),
	})
}

// Resolve returns the widget for field.
func (r *Registry) Resolve(field model.Field) string {
	if explicit := strings.TrimSpace(field.Widget); explicit != "" {
		return explicit
	}
	if r == nil {
		return WidgetText
	}
	r.mu.RLock()
	rules := append([]rule(nil), r.rules...)
	r.mu.RUnlock()

	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].priority == rules[j].priority {
			return rules[i].order < rules[j].order
		}
		return rules[i].priority > rules[j].priority
	})
	for _, entry := range rules {
		if entry.match(field) {
			return entry.name
		}
	}
	return WidgetText
}

// Names lists the distinct registered widget names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.rules))
	var out []string
	for _, entry := range r.rules {
		if _, ok := seen[entry.name]; ok {
			continue
		}
		seen[entry.name] = struct{}{}
		out = append(out, entry.name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) registerBuiltins() {
	kinds := map[model.FieldType]string{
		model.FieldTypeTextarea:     WidgetTextarea,
		model.FieldTypeRich:         WidgetRich,
		model.FieldTypeNumber:       WidgetNumber,
		model.FieldTypeSlider:       WidgetSlider,
		model.FieldTypeSwitch:       WidgetToggle,
		model.FieldTypeCheckbox:     WidgetCheckbox,
		model.FieldTypeSegmented:    WidgetSegmented,
		model.FieldTypeSelect:       WidgetSelect,
		model.FieldTypeMultiSelect:  WidgetMultiSelect,
		model.FieldTypeAutocomplete: WidgetAutocomplete,
		model.FieldTypeChips:        WidgetChips,
		model.FieldTypeDate:         WidgetDate,
		model.FieldTypeItemsForm:    WidgetItems,
		model.FieldTypeCheckForm:    WidgetCheckGroup,
	}
	for kind, name := range kinds {
		kind := kind
		r.Register(name, 10, func(field model.Field) bool { return field.Type == kind })
	}

	r.Register(WidgetAutocomplete, 50, func(field model.Field) bool {
		return field.Type == model.FieldTypeSelect && len(field.Options) > AutocompleteThreshold
	})

	r.Register(WidgetPassword, 40, func(field model.Field) bool {
		return isText(field) && strings.Contains(strings.ToLower(field.Key), "password")
	})

	r.Register(WidgetEmail, 30, func(field model.Field) bool {
		if !isText(field) {
			return false
		}
		if strings.Contains(strings.ToLower(field.Key), "email") {
			return true
		}
		for _, v := range field.Validations {
			if v.Kind == model.ValidationRuleEmail {
				return true
			}
		}
		return false
	})
}

func isText(field model.Field) bool {
	return field.Type == "" || field.Type == model.FieldTypeText
}
