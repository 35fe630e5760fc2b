package vanilla

import (
	"bytes"
	"fmt"
	"html"
	"slices"
	"strings"

	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/render/template"
	"github.com/goliatone/go-crudkit/pkg/renderers/vanilla/components"
)

// componentRenderer renders an input tree for one request and records the
// components it used so their assets are emitted once.
type componentRenderer struct {
	templates template.TemplateRenderer
	registry  *components.Registry
	partials  map[string]string
	t         func(string, ...any) string

	used map[string]struct{}
}

func newComponentRenderer(templates template.TemplateRenderer, registry *components.Registry, partials map[string]string, t func(string, ...any) string) *componentRenderer {
	if registry == nil {
		registry = components.NewDefaultRegistry()
	}
	return &componentRenderer{
		templates: templates,
		registry:  registry,
		partials:  partials,
		t:         t,
		used:      make(map[string]struct{}),
	}
}

func (r *componentRenderer) renderAll(inputs []form.Input) (string, error) {
	var b strings.Builder
	for _, input := range inputs {
		markup, err := r.render(input)
		if err != nil {
			return "", err
		}
		b.WriteString(markup)
	}
	return b.String(), nil
}

func (r *componentRenderer) render(input form.Input) (string, error) {
	name := strings.TrimSpace(input.Widget)
	if name == "" {
		name = components.NameText
	}
	descriptor, ok := r.registry.Descriptor(name)
	if !ok {
		return "", fmt.Errorf("component %q not registered for input %q", name, input.Path)
	}

	data := components.ComponentData{
		Template:       r.templates,
		RenderChildren: r.renderAll,
		Partials:       r.partials,
		T:              r.t,
	}
	var control bytes.Buffer
	if err := descriptor.Renderer(&control, input, data); err != nil {
		return "", fmt.Errorf("render component %q for input %q: %w", name, input.Path, err)
	}
	r.used[descriptor.Name] = struct{}{}

	return buildFieldMarkup(input, descriptor.Name, descriptor.OwnChrome, control.String()), nil
}

func (r *componentRenderer) assets() ([]string, []components.Script) {
	if len(r.used) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(r.used))
	for name := range r.used {
		names = append(names, name)
	}
	slices.Sort(names)
	return r.registry.Assets(names)
}

func buildFieldMarkup(input form.Input, component string, ownChrome bool, control string) string {
	var b strings.Builder
	b.Grow(len(control) + 256)

	b.WriteString(`<div class="crudkit-field`)
	if input.Error != "" {
		b.WriteString(` crudkit-field--invalid`)
	}
	fmt.Fprintf(&b, `" data-component="%s" data-path="%s">`+"\n", html.EscapeString(component), html.EscapeString(input.Path))

	if !ownChrome && strings.TrimSpace(input.Label) != "" {
		fmt.Fprintf(&b, `  <label id="%s" for="%s">%s`,
			html.EscapeString(components.LabelID(input.Path)),
			html.EscapeString(components.ControlID(input.Path)),
			html.EscapeString(input.Label))
		if input.Required {
			b.WriteString(` *`)
		}
		b.WriteString("</label>\n")
	}

	for _, line := range strings.Split(control, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if !ownChrome {
		if desc := strings.TrimSpace(input.Description); desc != "" {
			fmt.Fprintf(&b, "  <small class=\"crudkit-field__description\">%s</small>\n", html.EscapeString(desc))
		}
		if msg := strings.TrimSpace(input.Error); msg != "" {
			fmt.Fprintf(&b, "  <p class=\"crudkit-field__error\" role=\"alert\">%s</p>\n", html.EscapeString(msg))
		}
	}
	b.WriteString("</div>\n")
	return b.String()
}
