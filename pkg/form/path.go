package form

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// ErrPath reports a path that does not address a settable location.
var ErrPath = errors.New("form: invalid path")

func splitPath(path string) []string {
	path = strings.Trim(strings.TrimSpace(path), ".")
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// setPath writes value at the dotted path, creating intermediate objects.
// Numeric segments index existing arrays only.
func setPath(root model.Record, path string, value any) error {
	segments := splitPath(path)
	if len(segments) == 0 {
		return fmt.Errorf("%w: empty path", ErrPath)
	}
	var current any = root
	for i, segment := range segments {
		last := i == len(segments)-1
		switch node := current.(type) {
		case map[string]any:
			if last {
				node[segment] = value
				return nil
			}
			next, ok := node[segment]
			if !ok || next == nil {
				next = map[string]any{}
				node[segment] = next
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return fmt.Errorf("%w: %q index %q", ErrPath, path, segment)
			}
			if last {
				node[idx] = value
				return nil
			}
			current = node[idx]
		default:
			return fmt.Errorf("%w: %q crosses a scalar at %q", ErrPath, path, segment)
		}
	}
	return nil
}

// fieldAt resolves the descriptor addressing path, descending into nested
// descriptors and skipping numeric item indexes.
func fieldAt(fields []model.Field, path string) (model.Field, bool) {
	segments := splitPath(path)
	var (
		field model.Field
		found bool
	)
	scope := fields
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil && found && field.Type == model.FieldTypeItemsForm {
			continue
		}
		if found && field.Type == model.FieldTypeCheckForm && field.Check != nil && contains(field.Check.Options, segment) {
			continue
		}
		field, found = model.FindField(scope, segment)
		if !found {
			return model.Field{}, false
		}
		scope = field.Nested
	}
	return field, found
}

func contains(values []string, needle string) bool {
	for _, v := range values {
		if v == needle {
			return true
		}
	}
	return false
}

// asItems normalises an itemsform value into a fresh slice of objects.
func asItems(value any) []any {
	switch v := value.(type) {
	case []any:
		return append([]any(nil), v...)
	case []map[string]any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return out
	}
	return nil
}
