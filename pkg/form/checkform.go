package form

import (
	"fmt"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// ToggleCheck turns a checkform option on or off. Checking initialises an
// empty sub-object at the option key unless one exists; unchecking deletes
// the key entirely.
func (f *Form) ToggleCheck(path, option string, checked bool) error {
	field, ok := fieldAt(f.fields, path)
	if !ok || field.Type != model.FieldTypeCheckForm {
		return fmt.Errorf("%w: %q is not a checkform", ErrPath, path)
	}
	if field.Check == nil || !contains(field.Check.Options, option) {
		return fmt.Errorf("%w: %q has no option %q", ErrPath, path, option)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	current, _ := model.Lookup(f.values, path).(map[string]any)
	next := make(map[string]any, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	if checked {
		if _, exists := next[option]; !exists {
			next[option] = map[string]any{}
		}
	} else {
		delete(next, option)
		f.dropErrorsUnder(path + "." + option)
	}
	return setPath(f.values, path, next)
}

// Checked reports which options of the checkform at path are on.
func (f *Form) Checked(path string) map[string]bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	field, _ := fieldAt(f.fields, path)
	return checkedOptions(field, model.Lookup(f.values, path))
}

func checkedOptions(field model.Field, value any) map[string]bool {
	out := map[string]bool{}
	if field.Check == nil {
		return out
	}
	current, _ := value.(map[string]any)
	for _, option := range field.Check.Options {
		_, on := current[option]
		out[option] = on
	}
	return out
}
