package model

// Option is a normalised choice for optioned inputs.
type Option struct {
	Value any    `json:"value"`
	Label string `json:"label"`
	Group string `json:"group,omitempty"`
}

// BuildOptions resolves the field's option list: GetOptions when present,
// otherwise the static options. Object options are projected through
// OptionValue/OptionLabel/OptionGroup (falling back to the first value of
// the object); scalars map to themselves. Duplicate values keep their first
// occurrence.
func BuildOptions(field Field, values []Record) []Option {
	raw := field.Options
	if field.GetOptions != nil {
		raw = field.GetOptions(field.Options, values)
	}
	if len(raw) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]Option, 0, len(raw))
	for _, item := range raw {
		opt := toOption(item, field)
		key := Stringify(opt.Value)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, opt)
	}
	return out
}

func toOption(item any, field Field) Option {
	switch v := item.(type) {
	case Option:
		return v
	case map[string]any:
		value := optionProjection(v, field.OptionValue)
		label := Stringify(value)
		if field.OptionLabel != "" {
			if l, ok := v[field.OptionLabel]; ok {
				label = Stringify(l)
			}
		}
		opt := Option{Value: value, Label: label}
		if field.OptionGroup != "" {
			opt.Group = Stringify(v[field.OptionGroup])
		}
		return opt
	}
	return Option{Value: item, Label: Stringify(item)}
}

// optionProjection picks key from an object option, or the first value in
// key order when key is empty or absent.
func optionProjection(obj map[string]any, key string) any {
	if key != "" {
		if v, ok := obj[key]; ok {
			return v
		}
	}
	first := ""
	for k := range obj {
		if first == "" || k < first {
			first = k
		}
	}
	if first == "" {
		return nil
	}
	return obj[first]
}
