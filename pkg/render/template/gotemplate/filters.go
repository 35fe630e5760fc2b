package gotemplate

import (
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/flosch/pongo2/v6"
)

func registerDefaultFilters() {
	defaults := map[string]pongo2.FilterFunction{
		"trim":       filterTrim,
		"lowerfirst": filterLowerFirst,
		"tojson":     filterJSON,
	}
	for name, fn := range defaults {
		if !pongo2.FilterExists(name) {
			_ = pongo2.RegisterFilter(name, fn)
		}
	}
}

func filterTrim(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(strings.TrimSpace(in.String())), nil
}

// filterLowerFirst lowers the first non-space rune.
func filterLowerFirst(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	s := in.String()
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsSpace(r) })
	if i < 0 {
		return pongo2.AsValue(s), nil
	}
	r, size := utf8.DecodeRuneInString(s[i:])
	return pongo2.AsValue(s[:i] + string(unicode.ToLower(r)) + s[i+size:]), nil
}

// filterJSON encodes the value as JSON for data attributes.
func filterJSON(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	raw, err := json.Marshal(in.Interface())
	if err != nil {
		return nil, &pongo2.Error{Sender: "filter:tojson", OrigError: err}
	}
	return pongo2.AsValue(string(raw)), nil
}
