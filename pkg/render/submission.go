package render

import (
	"fmt"
	"sort"
	"strings"
)

// MethodField is the hidden input carrying verbs browsers cannot submit.
const MethodField = "_method"

// HiddenField is a hidden form input emitted next to the generated inputs.
type HiddenField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Hidden returns a HiddenField with value formatted by fmt.Sprint.
func Hidden(name string, value any) HiddenField {
	return HiddenField{Name: strings.TrimSpace(name), Value: fmt.Sprint(value)}
}

// CSRFToken carries an anti-forgery token under name.
func CSRFToken(name, token string) HiddenField {
	return Hidden(name, token)
}

// FormMethod maps method onto what a browser form can submit: GET and POST
// pass through, other verbs become POST plus a MethodField hidden input.
func FormMethod(method string) (string, *HiddenField) {
	switch m := strings.ToUpper(strings.TrimSpace(method)); m {
	case "", "POST":
		return "POST", nil
	case "GET":
		return "GET", nil
	default:
		field := Hidden(MethodField, m)
		return "POST", &field
	}
}

// MergeHiddenFields folds fields into a name-sorted list. Later fields win
// on name collisions; empty names are dropped.
func MergeHiddenFields(fields ...HiddenField) []HiddenField {
	byName := make(map[string]string, len(fields))
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			continue
		}
		byName[name] = field.Value
	}
	if len(byName) == 0 {
		return nil
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]HiddenField, 0, len(names))
	for _, name := range names {
		out = append(out, HiddenField{Name: name, Value: byName[name]})
	}
	return out
}
