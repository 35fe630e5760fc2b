package model

// FieldType is the closed set of input kinds a descriptor can carry.
type FieldType string

const (
	FieldTypeText         FieldType = "text"
	FieldTypeSelect       FieldType = "select"
	FieldTypeMultiSelect  FieldType = "multiselect"
	FieldTypeAutocomplete FieldType = "autocomplete"
	FieldTypeNumber       FieldType = "number"
	FieldTypeSwitch       FieldType = "switch"
	FieldTypeCheckbox     FieldType = "checkbox"
	FieldTypeSegmented    FieldType = "segmented"
	FieldTypeTextarea     FieldType = "textarea"
	FieldTypeSlider       FieldType = "slider"
	FieldTypeRich         FieldType = "rich"
	FieldTypeChips        FieldType = "chips"
	FieldTypeDate         FieldType = "date"
	FieldTypeItemsForm    FieldType = "itemsform"
	FieldTypeCheckForm    FieldType = "checkform"
)

var knownTypes = map[FieldType]struct{}{
	FieldTypeText: {}, FieldTypeSelect: {}, FieldTypeMultiSelect: {}, FieldTypeAutocomplete: {},
	FieldTypeNumber: {}, FieldTypeSwitch: {}, FieldTypeCheckbox: {}, FieldTypeSegmented: {},
	FieldTypeTextarea: {}, FieldTypeSlider: {}, FieldTypeRich: {}, FieldTypeChips: {},
	FieldTypeDate: {}, FieldTypeItemsForm: {}, FieldTypeCheckForm: {},
}

// Known reports whether t belongs to the closed set. The empty type is not
// known; renderers treat it as text.
func (t FieldType) Known() bool {
	_, ok := knownTypes[t]
	return ok
}

// Optioned reports whether the kind picks from an option list.
func (t FieldType) Optioned() bool {
	switch t {
	case FieldTypeSelect, FieldTypeMultiSelect, FieldTypeAutocomplete, FieldTypeSegmented, FieldTypeChips:
		return true
	}
	return false
}

// Multiple reports whether the kind binds a list of values.
func (t FieldType) Multiple() bool {
	return t == FieldTypeMultiSelect || t == FieldTypeChips
}

const (
	ValidationRuleRequired  = "required"
	ValidationRuleMin       = "min"
	ValidationRuleMax       = "max"
	ValidationRuleMinLength = "minLength"
	ValidationRuleMaxLength = "maxLength"
	ValidationRulePattern   = "pattern"
	ValidationRuleEmail     = "email"
	ValidationRuleURL       = "url"
)

// ValidationRule represents a single constraint applied to a field. Numeric
// bounds and length limits encode their threshold in Params["value"] while
// pattern rules keep the expression in Params["pattern"]. Params["message"]
// overrides the default error text.
type ValidationRule struct {
	Kind   string            `json:"kind" yaml:"kind"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// Layout selects how itemsform entries are arranged.
type Layout string

const (
	LayoutCards     Layout = "cards"
	LayoutTabs      Layout = "tabs"
	LayoutAccordion Layout = "accordion"
)

// NumberConfig carries bounds for number and slider inputs.
type NumberConfig struct {
	Min  *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max  *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Step float64  `json:"step,omitempty" yaml:"step,omitempty"`
	Unit string   `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// ItemsConfig configures an itemsform (list of sub-records).
type ItemsConfig struct {
	Layout   Layout         `json:"layout,omitempty" yaml:"layout,omitempty"`
	Defaults map[string]any `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	// LabelKey names the sub-record key whose value titles each panel.
	LabelKey string `json:"labelKey,omitempty" yaml:"labelKey,omitempty"`
	// Label overrides LabelKey with a computed panel title.
	Label func(Record) string `json:"-" yaml:"-"`
}

// CheckConfig configures a checkform: every option is a named optional
// sub-object whose presence means "on".
type CheckConfig struct {
	Options []string `json:"options" yaml:"options"`
}

// DateConfig configures date inputs.
type DateConfig struct {
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Field is a descriptor. The kind-specific pointers form a tagged union keyed
// by Type; Validate rejects payloads that do not belong to the kind.
type Field struct {
	Key         string           `json:"key,omitempty" yaml:"key,omitempty"`
	Label       string           `json:"label,omitempty" yaml:"label,omitempty"`
	Type        FieldType        `json:"type,omitempty" yaml:"type,omitempty"`
	Placeholder string           `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool             `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any              `json:"default,omitempty" yaml:"default,omitempty"`
	Options     []any            `json:"options,omitempty" yaml:"options,omitempty"`
	OptionValue string           `json:"optionValue,omitempty" yaml:"optionValue,omitempty"`
	OptionLabel string           `json:"optionLabel,omitempty" yaml:"optionLabel,omitempty"`
	OptionGroup string           `json:"optionGroup,omitempty" yaml:"optionGroup,omitempty"`
	OptionsURL  string           `json:"optionsUrl,omitempty" yaml:"optionsUrl,omitempty"`
	Validations []ValidationRule `json:"validations,omitempty" yaml:"validations,omitempty"`
	Nested      []Field          `json:"nested,omitempty" yaml:"nested,omitempty"`
	Widget      string           `json:"widget,omitempty" yaml:"widget,omitempty"`
	Hidden      bool             `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	NoFilter    bool             `json:"noFilter,omitempty" yaml:"noFilter,omitempty"`
	NoSort      bool             `json:"noSort,omitempty" yaml:"noSort,omitempty"`
	Width       string           `json:"width,omitempty" yaml:"width,omitempty"`

	Number *NumberConfig `json:"number,omitempty" yaml:"number,omitempty"`
	Slider *NumberConfig `json:"slider,omitempty" yaml:"slider,omitempty"`
	Items  *ItemsConfig  `json:"items,omitempty" yaml:"items,omitempty"`
	Check  *CheckConfig  `json:"check,omitempty" yaml:"check,omitempty"`
	Date   *DateConfig   `json:"date,omitempty" yaml:"date,omitempty"`

	// Value computes the display value. It wins over AsString and Key.
	Value func(Record) any `json:"-" yaml:"-"`
	// AsString serialises the field for display, search and sort.
	AsString func(Record) string `json:"-" yaml:"-"`
	// AsStrings yields the filterable strings of multi-valued fields.
	AsStrings func(Record) []string `json:"-" yaml:"-"`
	// GetOptions builds the option list from the static options and the
	// current records.
	GetOptions func(options []any, values []Record) []any `json:"-" yaml:"-"`
	// Accessor replaces the descriptor-derived accessor entirely.
	Accessor Accessor `json:"-" yaml:"-"`
}

// Actionable reports whether the field can be edited through a form.
func (f Field) Actionable() bool {
	return f.Key != ""
}

// Title returns the label, deriving one from the key when missing.
func (f Field) Title() string {
	if f.Label != "" {
		return f.Label
	}
	return DefaultLabeler(f.Key)
}

// Record is an opaque application-defined item.
type Record = map[string]any

// DefaultItemID is the record key used as identifier when a schema does not
// name one.
const DefaultItemID = "id"

// Schema groups the descriptors of one collection.
type Schema struct {
	Name    string  `json:"name" yaml:"name"`
	Label   string  `json:"label,omitempty" yaml:"label,omitempty"`
	ItemID  string  `json:"itemId,omitempty" yaml:"itemId,omitempty"`
	PerPage int     `json:"perPage,omitempty" yaml:"perPage,omitempty"`
	Fields  []Field `json:"fields" yaml:"fields"`
}

// IDKey returns the configured identifier key.
func (s Schema) IDKey() string {
	if s.ItemID == "" {
		return DefaultItemID
	}
	return s.ItemID
}

// Field looks up a descriptor by key.
func (s Schema) Field(key string) (Field, bool) {
	return FindField(s.Fields, key)
}

// FindField returns the first descriptor with the given key.
func FindField(fields []Field, key string) (Field, bool) {
	for _, field := range fields {
		if field.Key == key {
			return field, true
		}
	}
	return Field{}, false
}
