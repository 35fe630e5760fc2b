package media

import (
	"github.com/goliatone/go-crudkit/pkg/model"
)

// ValueKind selects how a media field stores its value.
type ValueKind string

const (
	// ValueString stores one property (the URL by default).
	ValueString ValueKind = "string"
	// ValueUpload stores the full metadata document.
	ValueUpload ValueKind = "upload"
	// ValueComposite stores a caller-defined object holding selected
	// metadata properties.
	ValueComposite ValueKind = "composite_object"
)

// DefaultValueProp is the property string bindings store.
const DefaultValueProp = "url"

// Binding translates between a manager selection and a field value.
type Binding struct {
	Kind ValueKind
	// Prop is the property stored by string bindings and used to match
	// values against uploads.
	Prop string
	// Keys lists the properties copied into composite objects. Empty keeps
	// every non-empty property.
	Keys []string
	// Multiple stores a list instead of a single value.
	Multiple bool
}

func (b Binding) kind() ValueKind {
	if b.Kind == "" {
		return ValueString
	}
	return b.Kind
}

func (b Binding) prop() string {
	if b.Prop == "" {
		return DefaultValueProp
	}
	return b.Prop
}

// Bind converts selected uploads into the field value. An empty selection
// yields an empty list in multiple mode and nil otherwise.
func (b Binding) Bind(items []Upload) any {
	if b.Multiple {
		out := make([]any, 0, len(items))
		for _, item := range items {
			out = append(out, b.one(item))
		}
		return out
	}
	if len(items) == 0 {
		return nil
	}
	return b.one(items[0])
}

func (b Binding) one(item Upload) any {
	switch b.kind() {
	case ValueUpload:
		return item
	case ValueComposite:
		return b.composite(item)
	default:
		return item.Prop(b.prop())
	}
}

func (b Binding) composite(item Upload) map[string]any {
	full := item.Record()
	if item.ID != "" {
		full["id"] = item.ID
	}
	out := map[string]any{}
	if len(b.Keys) == 0 {
		for k, v := range full {
			if !isZero(v) {
				out[k] = v
			}
		}
		return out
	}
	for _, k := range b.Keys {
		if v, ok := full[k]; ok && !isZero(v) {
			out[k] = v
		}
	}
	return out
}

// Resolve maps a stored value back onto uploads. Values without a matching
// upload become placeholders carrying the stored property.
func (b Binding) Resolve(value any, uploads []Upload) []Upload {
	if value == nil {
		return nil
	}
	var values []any
	switch v := value.(type) {
	case []any:
		values = v
	case []string:
		for _, s := range v {
			values = append(values, s)
		}
	case []Upload:
		for _, u := range v {
			values = append(values, u)
		}
	case []map[string]any:
		for _, m := range v {
			values = append(values, m)
		}
	default:
		values = []any{v}
	}

	out := make([]Upload, 0, len(values))
	for _, v := range values {
		if u, ok := b.resolveOne(v, uploads); ok {
			out = append(out, u)
		}
	}
	return out
}

func (b Binding) resolveOne(v any, uploads []Upload) (Upload, bool) {
	prop := b.prop()
	switch b.kind() {
	case ValueUpload:
		switch t := v.(type) {
		case Upload:
			return t, true
		case map[string]any:
			return FromRecord(t), true
		}
		return Upload{}, false
	case ValueComposite:
		obj, ok := v.(map[string]any)
		if !ok {
			return Upload{}, false
		}
		key := model.Stringify(obj[prop])
		if found, ok := find(uploads, prop, key); ok {
			return found, true
		}
		return placeholder(prop, key), true
	default:
		s, ok := v.(string)
		if !ok || s == "" {
			return Upload{}, false
		}
		if found, ok := find(uploads, prop, s); ok {
			return found, true
		}
		return placeholder(prop, s), true
	}
}

func find(uploads []Upload, prop, value string) (Upload, bool) {
	for _, u := range uploads {
		if model.Stringify(u.Prop(prop)) == value {
			return u, true
		}
	}
	return Upload{}, false
}

func placeholder(prop, value string) Upload {
	u := FromRecord(model.Record{prop: value})
	if prop == "id" {
		u.ID = value
	}
	return u
}

func isZero(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case int64:
		return t == 0
	}
	return false
}
