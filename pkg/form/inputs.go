package form

import (
	"strconv"

	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/widgets"
)

// Input is one generated input with its resolved widget and current state.
type Input struct {
	Path        string              `json:"path"`
	Key         string              `json:"key"`
	Label       string              `json:"label"`
	Type        model.FieldType     `json:"type"`
	Widget      string              `json:"widget"`
	Value       any                 `json:"value,omitempty"`
	Error       string              `json:"error,omitempty"`
	Required    bool                `json:"required,omitempty"`
	Placeholder string              `json:"placeholder,omitempty"`
	Description string              `json:"description,omitempty"`
	Options     []model.Option      `json:"options,omitempty"`
	OptionsURL  string              `json:"optionsUrl,omitempty"`
	Number      *model.NumberConfig `json:"number,omitempty"`

	// itemsform
	Layout model.Layout `json:"layout,omitempty"`
	Items  []ItemPanel  `json:"items,omitempty"`

	// checkform
	Checks []CheckPanel `json:"checks,omitempty"`
}

// ItemPanel is one itemsform entry rendered as card, tab or accordion panel.
type ItemPanel struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Index  int     `json:"index"`
	Path   string  `json:"path"`
	Inputs []Input `json:"inputs"`
}

// CheckPanel is one checkform option; Inputs is empty while unchecked.
type CheckPanel struct {
	Option  string  `json:"option"`
	Checked bool    `json:"checked"`
	Path    string  `json:"path"`
	Inputs  []Input `json:"inputs,omitempty"`
}

// Inputs projects descriptors and values into the input tree. Display-only
// and hidden descriptors are skipped. Unknown kinds render as text inputs
// with the value coerced to string.
func (f *Form) Inputs() []Input {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return buildInputs(f.fields, f.values, "", f.errors, f.cfg.widgets, f.cfg.records)
}

func buildInputs(fields []model.Field, values map[string]any, prefix string, errs map[string]string, reg *widgets.Registry, records []model.Record) []Input {
	out := make([]Input, 0, len(fields))
	for _, field := range fields {
		if !field.Actionable() || field.Hidden {
			continue
		}
		path := field.Key
		if prefix != "" {
			path = prefix + "." + field.Key
		}
		value := model.CloneValue(values[field.Key])
		if value == nil && field.Default != nil {
			value = model.CloneValue(field.Default)
		}

		input := Input{
			Path:        path,
			Key:         field.Key,
			Label:       field.Title(),
			Type:        field.Type,
			Widget:      reg.Resolve(field),
			Value:       value,
			Error:       errs[path],
			Required:    field.Required,
			Placeholder: field.Placeholder,
			Description: field.Description,
			OptionsURL:  field.OptionsURL,
		}
		if !field.Type.Known() {
			input.Type = model.FieldTypeText
			input.Value = model.Stringify(value)
		}
		if field.Type.Optioned() {
			input.Options = model.BuildOptions(field, records)
		}
		switch field.Type {
		case model.FieldTypeNumber:
			input.Number = field.Number
		case model.FieldTypeSlider:
			input.Number = field.Slider
		case model.FieldTypeItemsForm:
			input.Value = nil
			input.Layout = LayoutOf(field)
			for i, raw := range asItems(values[field.Key]) {
				entry, _ := raw.(map[string]any)
				if entry == nil {
					entry = map[string]any{}
				}
				itemPath := path + "." + strconv.Itoa(i)
				input.Items = append(input.Items, ItemPanel{
					Key:    ItemKey(field, entry),
					Label:  ItemLabel(field, entry, i),
					Index:  i,
					Path:   itemPath,
					Inputs: buildInputs(field.Nested, entry, itemPath, errs, reg, records),
				})
			}
		case model.FieldTypeCheckForm:
			input.Value = nil
			current, _ := values[field.Key].(map[string]any)
			for _, state := range orderedChecks(field, current) {
				panel := CheckPanel{Option: state.option, Checked: state.checked, Path: path + "." + state.option}
				if state.checked {
					entry, _ := current[state.option].(map[string]any)
					panel.Inputs = buildInputs(field.Nested, entry, panel.Path, errs, reg, records)
				}
				input.Checks = append(input.Checks, panel)
			}
		}
		out = append(out, input)
	}
	return out
}

type checkState struct {
	option  string
	checked bool
}

func orderedChecks(field model.Field, current map[string]any) []checkState {
	checked := checkedOptions(field, current)
	out := make([]checkState, 0, len(checked))
	if field.Check == nil {
		return out
	}
	for _, option := range field.Check.Options {
		out = append(out, checkState{option: option, checked: checked[option]})
	}
	return out
}
