package form

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/widgets"
)

// ItemActionField is the submit button name carrying itemsform add/remove
// requests, e.g. "add:variants" or "remove:variants.1".
const ItemActionField = "_items"

// ItemAction is an add or remove request posted by an itemsform button.
type ItemAction struct {
	Remove bool
	Path   string
	Index  int
}

// ParseItemAction decodes an ItemActionField value.
func ParseItemAction(raw string) (ItemAction, bool) {
	verb, path, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || path == "" {
		return ItemAction{}, false
	}
	switch verb {
	case "add":
		return ItemAction{Path: path}, true
	case "remove":
		dot := strings.LastIndex(path, ".")
		if dot <= 0 {
			return ItemAction{}, false
		}
		index, err := strconv.Atoi(path[dot+1:])
		if err != nil {
			return ItemAction{}, false
		}
		return ItemAction{Remove: true, Path: path[:dot], Index: index}, true
	}
	return ItemAction{}, false
}

// ApplyItemAction runs a.
func (f *Form) ApplyItemAction(a ItemAction) error {
	if a.Remove {
		return f.RemoveItem(a.Path, a.Index)
	}
	_, err := f.AddItem(a.Path)
	return err
}

// ApplyValues copies a browser submission onto the form. Every rendered
// input reads the values posted under its path:
//   - boolean controls post a hidden "false" before the checkbox "true", so
//     the last value wins;
//   - multi-valued kinds read every value, and none posted means empty;
//   - checkform groups post their checked options under the group path;
//   - empty password inputs keep the current value.
//
// Option values are mapped back to the typed option value. Values that
// cannot be decoded are reported as a *ValidationError and left unset.
func (f *Form) ApplyValues(values url.Values) error {
	errs := map[string]string{}
	// The second pass reaches the sub-forms of options checked in the first.
	for pass := 0; pass < 2; pass++ {
		clear(errs)
		if err := f.applyInputs(f.Inputs(), values, errs); err != nil {
			return err
		}
	}
	if len(errs) == 0 {
		return nil
	}
	f.mu.Lock()
	if f.errors == nil {
		f.errors = map[string]string{}
	}
	for path, msg := range errs {
		f.errors[path] = msg
	}
	f.mu.Unlock()
	return &ValidationError{Fields: copyErrors(errs)}
}

func (f *Form) applyInputs(inputs []Input, values url.Values, errs map[string]string) error {
	for _, in := range inputs {
		switch in.Type {
		case model.FieldTypeItemsForm:
			for _, item := range in.Items {
				if err := f.applyInputs(item.Inputs, values, errs); err != nil {
					return err
				}
			}
		case model.FieldTypeCheckForm:
			on := make(map[string]struct{}, len(values[in.Path]))
			for _, v := range values[in.Path] {
				on[v] = struct{}{}
			}
			for _, check := range in.Checks {
				_, checked := on[check.Option]
				if checked != check.Checked {
					if err := f.ToggleCheck(in.Path, check.Option, checked); err != nil {
						return err
					}
				}
				if checked {
					if err := f.applyInputs(check.Inputs, values, errs); err != nil {
						return err
					}
				}
			}
		default:
			value, ok, msg := decodeInput(in, values)
			if msg != "" {
				errs[in.Path] = msg
				continue
			}
			if !ok {
				continue
			}
			if err := f.Set(in.Path, value); err != nil {
				return fmt.Errorf("form: apply %q: %w", in.Path, err)
			}
		}
	}
	return nil
}

func decodeInput(in Input, values url.Values) (any, bool, string) {
	raw, present := values[in.Path]
	last := ""
	if len(raw) > 0 {
		last = raw[len(raw)-1]
	}

	switch {
	case in.Widget == widgets.WidgetJSON:
		if !present {
			return nil, false, ""
		}
		if strings.TrimSpace(last) == "" {
			return nil, true, ""
		}
		var v any
		if err := json.Unmarshal([]byte(last), &v); err != nil {
			return nil, false, "Invalid JSON"
		}
		return v, true, ""
	case in.Type.Multiple():
		out := make([]any, 0, len(raw))
		for _, v := range raw {
			if v == "" {
				continue
			}
			out = append(out, optionValue(in.Options, v))
		}
		return out, true, ""
	case !present:
		return nil, false, ""
	case in.Type == model.FieldTypeSwitch || in.Type == model.FieldTypeCheckbox:
		on, _ := strconv.ParseBool(last)
		return on, true, ""
	case in.Type == model.FieldTypeNumber || in.Type == model.FieldTypeSlider:
		text := strings.TrimSpace(last)
		if text == "" {
			return nil, true, ""
		}
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, false, "Must be a number"
		}
		return n, true, ""
	case in.Widget == widgets.WidgetPassword && last == "":
		return nil, false, ""
	case in.Type.Optioned():
		if last == "" {
			return nil, true, ""
		}
		return optionValue(in.Options, last), true, ""
	}
	return last, true, ""
}

// optionValue returns the typed value of the option whose string form is
// raw, or raw itself.
func optionValue(options []model.Option, raw string) any {
	for _, opt := range options {
		if model.Stringify(opt.Value) == raw {
			return opt.Value
		}
	}
	return raw
}
