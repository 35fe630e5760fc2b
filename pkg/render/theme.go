package render

import (
	"errors"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"

	theme "github.com/goliatone/go-theme"
)

// ErrThemeNotFound is returned by ManifestSelector for unknown themes or
// variants.
var ErrThemeNotFound = errors.New("render: theme not found")

// ThemeConfig derives renderer configuration from a selection. Partials are
// fallbacks overlaid by the manifest templates and then the variant
// templates; tokens merge the same way and each token also becomes a
// "--name" CSS variable. Asset keys resolve to Prefix/file URLs.
func ThemeConfig(selection *theme.Selection, fallbacks map[string]string) *theme.RendererConfig {
	if selection == nil || selection.Manifest == nil {
		return nil
	}
	m := selection.Manifest

	partials := maps.Clone(fallbacks)
	if partials == nil {
		partials = make(map[string]string)
	}
	tokens := make(map[string]string, len(m.Tokens))
	files := make(map[string]string, len(m.Assets.Files))
	prefix := m.Assets.Prefix

	maps.Copy(partials, m.Templates)
	maps.Copy(tokens, m.Tokens)
	maps.Copy(files, m.Assets.Files)
	if variant, ok := m.Variants[selection.Variant]; ok {
		maps.Copy(partials, variant.Templates)
		maps.Copy(tokens, variant.Tokens)
		maps.Copy(files, variant.Assets.Files)
		if variant.Assets.Prefix != "" {
			prefix = variant.Assets.Prefix
		}
	}

	cssVars := make(map[string]string, len(tokens))
	for name, value := range tokens {
		cssVars["--"+strings.TrimPrefix(name, "--")] = value
	}

	return &theme.RendererConfig{
		Theme:    selection.Theme,
		Variant:  selection.Variant,
		Partials: partials,
		Tokens:   tokens,
		CSSVars:  cssVars,
		AssetURL: func(key string) string {
			file, ok := files[key]
			if !ok {
				return ""
			}
			if prefix == "" || strings.Contains(file, "://") || strings.HasPrefix(file, "/") {
				return file
			}
			return strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(file, "/")
		},
	}
}

// SelectTheme resolves name/variant through selector and derives the
// renderer configuration.
func SelectTheme(selector theme.ThemeSelector, name, variant string, fallbacks map[string]string) (*theme.RendererConfig, error) {
	if selector == nil {
		return nil, nil
	}
	selection, err := selector.Select(name, variant)
	if err != nil {
		return nil, fmt.Errorf("render: select theme %q/%q: %w", name, variant, err)
	}
	return ThemeConfig(selection, fallbacks), nil
}

// CSSVarsStyle renders CSS variables as a sorted inline declaration list.
func CSSVarsStyle(vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s: %s; ", key, vars[key])
	}
	return strings.TrimSpace(b.String())
}

// ManifestSelector selects among in-process manifests. An empty name picks
// the default theme; an empty variant picks the default variant when the
// theme has it.
type ManifestSelector struct {
	mu             sync.RWMutex
	manifests      map[string]*theme.Manifest
	defaultTheme   string
	defaultVariant string
}

var _ theme.ThemeSelector = (*ManifestSelector)(nil)

// NewManifestSelector builds a selector. The first manifest is the default
// theme unless defaultTheme names another.
func NewManifestSelector(defaultTheme, defaultVariant string, manifests ...*theme.Manifest) *ManifestSelector {
	s := &ManifestSelector{
		manifests:      make(map[string]*theme.Manifest, len(manifests)),
		defaultTheme:   defaultTheme,
		defaultVariant: defaultVariant,
	}
	for _, m := range manifests {
		s.Add(m)
	}
	return s
}

// Add registers or replaces a manifest.
func (s *ManifestSelector) Add(m *theme.Manifest) {
	if m == nil || m.Name == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[m.Name] = m
	if s.defaultTheme == "" {
		s.defaultTheme = m.Name
	}
}

// Select implements theme.ThemeSelector. Query options are ignored.
func (s *ManifestSelector) Select(name, variant string, _ ...theme.QueryOption) (*theme.Selection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if name == "" {
		name = s.defaultTheme
	}
	m, ok := s.manifests[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrThemeNotFound, name)
	}
	if variant == "" {
		if _, ok := m.Variants[s.defaultVariant]; ok {
			variant = s.defaultVariant
		}
	} else if _, ok := m.Variants[variant]; !ok {
		return nil, fmt.Errorf("%w: %q has no variant %q", ErrThemeNotFound, name, variant)
	}
	return &theme.Selection{Theme: name, Variant: variant, Manifest: m}, nil
}
