package vanilla

import (
	"net/url"
	"strings"
)

// sanitizeClassList drops the ck- prefix reserved for control ids.
func sanitizeClassList(value string) string {
	tokens := strings.Fields(value)
	keep := tokens[:0]
	for _, token := range tokens {
		if !strings.HasPrefix(token, "ck-") {
			keep = append(keep, token)
		}
	}
	return strings.Join(keep, " ")
}

func joinURL(base string, segments ...string) string {
	out := strings.TrimRight(base, "/")
	for _, s := range segments {
		if s = strings.Trim(s, "/"); s != "" {
			out += "/" + url.PathEscape(s)
		}
	}
	if out == "" {
		return "/"
	}
	return out
}

func withQuery(base string, values url.Values) string {
	if encoded := values.Encode(); encoded != "" {
		return base + "?" + encoded
	}
	return base
}
