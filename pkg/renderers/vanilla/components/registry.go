package components

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/goliatone/go-crudkit/pkg/form"
	rendertemplate "github.com/goliatone/go-crudkit/pkg/render/template"
)

// Renderer writes the control markup of one input into buf. Field chrome
// (label, description, error) is added by the caller unless the component
// draws its own.
type Renderer func(buf *bytes.Buffer, input form.Input, data ComponentData) error

// ComponentData carries what component renderers need besides the input.
type ComponentData struct {
	Template rendertemplate.TemplateRenderer
	// RenderChildren renders nested inputs (item and check panels) with
	// their field chrome.
	RenderChildren func(inputs []form.Input) (string, error)
	// Partials maps partial keys such as "forms.input" to theme templates.
	Partials map[string]string
	// T translates chrome strings; nil leaves keys as is.
	T func(key string, args ...any) string
}

func (d ComponentData) translate(key string, args ...any) string {
	if d.T == nil {
		return key
	}
	return d.T(key, args...)
}

// Script is a JavaScript dependency emitted once per page.
type Script struct {
	Src    string            `json:"src,omitempty"`
	Type   string            `json:"type,omitempty"`
	Inline string            `json:"inline,omitempty"`
	Defer  bool              `json:"defer,omitempty"`
	Module bool              `json:"module,omitempty"`
	Attrs  map[string]string `json:"attrs,omitempty"`
}

// Descriptor binds a renderer to the assets it needs.
type Descriptor struct {
	Name        string
	Renderer    Renderer
	Stylesheets []string
	Scripts     []Script
	// OwnChrome marks components that draw their own label and
	// description (fieldsets, grouped controls).
	OwnChrome bool
}

// Registry maps component names to descriptors. Names are case
// insensitive.
type Registry struct {
	mu         sync.RWMutex
	components map[string]Descriptor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{components: make(map[string]Descriptor)}
}

// Clone returns an independent copy so callers can override components
// without touching the shared defaults.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cloned := New()
	for name, d := range r.components {
		cloned.components[name] = cloneDescriptor(d)
	}
	return cloned
}

// Register adds or replaces the component under name.
func (r *Registry) Register(name string, d Descriptor) error {
	if name = normalize(name); name == "" {
		return fmt.Errorf("components: component name is required")
	}
	if d.Renderer == nil {
		return fmt.Errorf("components: renderer for %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d.Name = name
	r.components[name] = cloneDescriptor(d)
	return nil
}

// MustRegister panics when Register fails.
func (r *Registry) MustRegister(name string, d Descriptor) {
	if err := r.Register(name, d); err != nil {
		panic(err)
	}
}

// Descriptor looks a component up by name.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.components[normalize(name)]
	if !ok {
		return Descriptor{}, false
	}
	return cloneDescriptor(d), true
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.components))
}

// Assets collects the stylesheets and scripts of names, each once, in the
// order names lists them.
func (r *Registry) Assets(names []string) (stylesheets []string, scripts []Script) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, name := range names {
		d, ok := r.components[normalize(name)]
		if !ok {
			continue
		}
		for _, href := range d.Stylesheets {
			if _, dup := seen["css:"+href]; href == "" || dup {
				continue
			}
			seen["css:"+href] = struct{}{}
			stylesheets = append(stylesheets, href)
		}
		for _, s := range d.Scripts {
			key := "inline:" + s.Inline
			if s.Src != "" {
				key = "src:" + s.Src
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			scripts = append(scripts, s)
		}
	}
	return stylesheets, scripts
}

func cloneDescriptor(src Descriptor) Descriptor {
	out := src
	out.Stylesheets = slices.Clone(src.Stylesheets)
	out.Scripts = make([]Script, len(src.Scripts))
	for i, s := range src.Scripts {
		s.Attrs = maps.Clone(s.Attrs)
		out.Scripts[i] = s
	}
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
