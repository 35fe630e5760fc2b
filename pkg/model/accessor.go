package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Accessor resolves the three views the engine needs from a record: the
// value shown in a cell, the strings structured filters match against and
// the string used for ordering.
type Accessor interface {
	DisplayValue(record Record) any
	FilterableValues(record Record) []string
	SortValue(record Record) string
}

// AccessorFor returns the field's custom accessor or one derived from its
// key and hooks.
func AccessorFor(field Field) Accessor {
	if field.Accessor != nil {
		return field.Accessor
	}
	return fieldAccessor{field: field}
}

type fieldAccessor struct {
	field Field
}

// DisplayValue resolves Value, then AsString, then the raw key value.
func (a fieldAccessor) DisplayValue(record Record) any {
	f := a.field
	switch {
	case f.Value != nil:
		return f.Value(record)
	case f.AsString != nil:
		return f.AsString(record)
	case f.Key != "":
		return Lookup(record, f.Key)
	}
	return nil
}

// FilterableValues resolves AsStrings, AsString, the raw key value and
// finally Value. Arrays of objects are projected through OptionValue.
func (a fieldAccessor) FilterableValues(record Record) []string {
	f := a.field
	if f.AsStrings != nil {
		return nonEmpty(f.AsStrings(record))
	}
	if f.AsString != nil {
		return []string{f.AsString(record)}
	}
	if f.Key != "" {
		if values, ok := projectStrings(Lookup(record, f.Key), f); ok {
			return values
		}
	}
	if f.Value != nil {
		if values, ok := projectStrings(f.Value(record), f); ok {
			return values
		}
	}
	return []string{""}
}

// SortValue is the stringified display value.
func (a fieldAccessor) SortValue(record Record) string {
	if a.field.AsString != nil {
		return a.field.AsString(record)
	}
	return Stringify(a.DisplayValue(record))
}

// DisplayString is the string the query filter and table cells use.
func DisplayString(field Field, record Record) string {
	return Stringify(AccessorFor(field).DisplayValue(record))
}

func projectStrings(value any, field Field) ([]string, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case string:
		return []string{v}, true
	case []string:
		return nonEmpty(v), true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, Stringify(optionProjection(obj, field.OptionValue)))
				continue
			}
			out = append(out, Stringify(item))
		}
		return nonEmpty(out), true
	case map[string]any:
		if field.OptionValue != "" {
			return []string{Stringify(v[field.OptionValue])}, true
		}
		return nil, false
	case bool, float64, float32, int, int64, int32:
		return []string{Stringify(v)}, true
	}
	return nil, false
}

func nonEmpty(values []string) []string {
	if len(values) == 0 {
		return []string{""}
	}
	return values
}

// Lookup resolves a dotted key ("address.city", "items.0.name") against a
// record. Missing segments yield nil.
func Lookup(record Record, key string) any {
	if record == nil || key == "" {
		return nil
	}
	if value, ok := record[key]; ok {
		return value
	}
	var current any = record
	for _, segment := range strings.Split(key, ".") {
		switch node := current.(type) {
		case map[string]any:
			current = node[segment]
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			current = node[idx]
		default:
			return nil
		}
	}
	return current
}

// Stringify renders scalar values the way table cells show them. Lists are
// joined with ", "; nil is the empty string.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, Stringify(item))
		}
		return strings.Join(parts, ", ")
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(value)
}
