package tui

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// ContentType reports the media type Encode produces.
func (p *Prompter) ContentType() string {
	switch p.format {
	case OutputFormatFormURLEncoded:
		return "application/x-www-form-urlencoded"
	case OutputFormatPrettyText:
		return "text/plain"
	default:
		return "application/json"
	}
}

// Encode serializes a record in the configured format.
func (p *Prompter) Encode(record model.Record) ([]byte, error) {
	switch p.format {
	case OutputFormatFormURLEncoded:
		values := url.Values{}
		flatten("", record, values)
		return []byte(values.Encode()), nil
	case OutputFormatPrettyText:
		var b strings.Builder
		writePretty(&b, "", record)
		return []byte(b.String()), nil
	default:
		return json.MarshalIndent(record, "", "  ")
	}
}

// flatten writes dotted paths. Lists repeat their path, the way multi
// inputs post.
func flatten(prefix string, value any, out url.Values) {
	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			flatten(next, val, out)
		}
	case []any:
		for i, val := range v {
			if obj, ok := val.(map[string]any); ok {
				flatten(fmt.Sprintf("%s.%d", prefix, i), obj, out)
				continue
			}
			out.Add(prefix, model.Stringify(val))
		}
	case nil:
	default:
		out.Set(prefix, model.Stringify(v))
	}
}

func writePretty(b *strings.Builder, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			next := key
			if prefix != "" {
				next = prefix + "." + key
			}
			writePretty(b, next, v[key])
		}
	case []any:
		for idx, val := range v {
			writePretty(b, fmt.Sprintf("%s[%d]", prefix, idx), val)
		}
	default:
		if prefix != "" {
			fmt.Fprintf(b, "%s=%s\n", prefix, model.Stringify(v))
		}
	}
}
