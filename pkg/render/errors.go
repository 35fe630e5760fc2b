package render

import (
	"errors"
	"strconv"
	"strings"

	"github.com/goliatone/go-crudkit/pkg/apperr"
	"github.com/goliatone/go-crudkit/pkg/form"
)

// ErrorMapping splits an error payload into messages keyed by input path
// and form-level messages.
type ErrorMapping struct {
	Fields map[string][]string `json:"fields,omitempty"`
	Form   []string            `json:"form,omitempty"`
}

// ErrorPayload converts err into a payload keyed by field path. Validation
// errors keep their paths, provider errors with a target field use it, and
// anything else lands under "form".
func ErrorPayload(err error) map[string][]string {
	if err == nil {
		return nil
	}
	var verr *form.ValidationError
	if errors.As(err, &verr) {
		out := make(map[string][]string, len(verr.Fields))
		for path, msg := range verr.Fields {
			out[path] = []string{msg}
		}
		return out
	}
	var aerr *apperr.Error
	if errors.As(err, &aerr) && aerr.Field != "" {
		return map[string][]string{aerr.Field: {aerr.Message}}
	}
	return map[string][]string{"form": {apperr.Message(err)}}
}

// MapErrors resolves payload paths against the input tree. Paths may use
// JSON pointers ("/body/owner/email"), brackets ("tags[0]") or request
// wrappers ("request.payload.name"); the longest matching input path wins.
// Unmatched paths become form-level messages.
func MapErrors(inputs []form.Input, payload map[string][]string) ErrorMapping {
	var mapping ErrorMapping
	if len(payload) == 0 {
		return mapping
	}
	known := make(map[string]struct{})
	collectPaths(inputs, known)

	for raw, messages := range payload {
		messages = MergeFormErrors(nil, messages...)
		if len(messages) == 0 {
			continue
		}
		path := matchPath(raw, known)
		if path == "" {
			mapping.Form = append(mapping.Form, messages...)
			continue
		}
		if mapping.Fields == nil {
			mapping.Fields = make(map[string][]string)
		}
		mapping.Fields[path] = append(mapping.Fields[path], messages...)
	}
	mapping.Form = MergeFormErrors(mapping.Form)
	return mapping
}

// ApplyErrors sets the first message of each mapped path on inputs that do
// not already carry an error.
func ApplyErrors(inputs []form.Input, fields map[string][]string) {
	for i := range inputs {
		in := &inputs[i]
		if msgs := fields[in.Path]; in.Error == "" && len(msgs) > 0 {
			in.Error = msgs[0]
		}
		for p := range in.Items {
			ApplyErrors(in.Items[p].Inputs, fields)
		}
		for p := range in.Checks {
			ApplyErrors(in.Checks[p].Inputs, fields)
		}
	}
}

// MergeFormErrors concatenates messages, trimming blanks and dropping
// duplicates while keeping the first occurrence order.
func MergeFormErrors(existing []string, extras ...string) []string {
	var out []string
	seen := make(map[string]struct{}, len(existing)+len(extras))
	for _, list := range [][]string{existing, extras} {
		for _, msg := range list {
			msg = strings.TrimSpace(msg)
			if msg == "" {
				continue
			}
			if _, dup := seen[msg]; dup {
				continue
			}
			seen[msg] = struct{}{}
			out = append(out, msg)
		}
	}
	return out
}

func collectPaths(inputs []form.Input, dest map[string]struct{}) {
	for _, in := range inputs {
		if in.Path != "" {
			dest[in.Path] = struct{}{}
		}
		for _, item := range in.Items {
			dest[item.Path] = struct{}{}
			collectPaths(item.Inputs, dest)
		}
		for _, check := range in.Checks {
			dest[check.Path] = struct{}{}
			collectPaths(check.Inputs, dest)
		}
	}
}

var formLevelKeys = map[string]struct{}{
	"": {}, "form": {}, "base": {}, "__all__": {}, "non_field_errors": {}, "non-field-errors": {},
}

var wrapperSegments = map[string]struct{}{
	"body": {}, "request": {}, "payload": {}, "data": {}, "attributes": {},
}

func matchPath(raw string, known map[string]struct{}) string {
	segments := splitPath(raw)
	if len(segments) == 0 {
		return ""
	}
	if _, ok := formLevelKeys[strings.ToLower(strings.Join(segments, "."))]; ok {
		return ""
	}

	unwrapped := segments
	for len(unwrapped) > 0 {
		if _, ok := wrapperSegments[strings.ToLower(unwrapped[0])]; !ok {
			break
		}
		unwrapped = unwrapped[1:]
	}

	best := ""
	for _, candidate := range [][]string{segments, unwrapped, dropNumeric(segments), dropNumeric(unwrapped)} {
		for end := len(candidate); end > 0; end-- {
			path := strings.Join(candidate[:end], ".")
			if _, ok := known[path]; ok {
				if best == "" || strings.Count(path, ".") > strings.Count(best, ".") {
					best = path
				}
				break
			}
		}
	}
	return best
}

// splitPath accepts dotted, slash (JSON pointer) and bracket notations.
func splitPath(raw string) []string {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimLeft(clean, "#$./")
	clean = strings.NewReplacer("[", ".", "]", "").Replace(clean)

	parts := strings.FieldsFunc(clean, func(r rune) bool { return r == '.' || r == '/' })
	out := parts[:0]
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		out = append(out, part)
	}
	return out
}

func dropNumeric(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		if _, err := strconv.Atoi(s); err != nil {
			out = append(out, s)
		}
	}
	return out
}
