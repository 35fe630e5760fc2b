package menu

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	iconPolicyOnce sync.Once
	iconPolicy     *bluemonday.Policy
)

// SanitizeIcon keeps inline SVG icon markup and strips everything else
// (scripts, handlers, foreign elements).
func SanitizeIcon(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(iconSanitizer().Sanitize(trimmed))
}

func iconSanitizer() *bluemonday.Policy {
	iconPolicyOnce.Do(func() {
		shapes := []string{"path", "circle", "rect", "line", "polyline", "polygon", "ellipse"}

		policy := bluemonday.StrictPolicy()
		policy.AllowElements(append([]string{"svg", "g", "title", "defs"}, shapes...)...)
		policy.AllowAttrs(
			"xmlns", "viewBox", "width", "height", "fill", "stroke", "stroke-width",
			"stroke-linecap", "stroke-linejoin", "aria-hidden", "role", "class",
		).OnElements("svg")
		policy.AllowAttrs(
			"d", "cx", "cy", "r", "rx", "ry", "x", "y", "x1", "y1", "x2", "y2", "points",
			"fill", "stroke", "stroke-width", "stroke-linecap", "stroke-linejoin", "class",
		).OnElements(shapes...)
		policy.AllowAttrs("id", "fill", "stroke").OnElements("g")
		iconPolicy = policy
	})
	return iconPolicy
}
