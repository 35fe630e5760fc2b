// Package template declares the engine contract HTML renderers rely on.
// gotemplate provides the pongo2 implementation.
package template

import (
	"io"
)

// TemplateRenderer renders named templates or inline template content.
// Every call returns the output and also writes it to each writer in out.
type TemplateRenderer interface {
	Render(name string, data any, out ...io.Writer) (string, error)
	RenderTemplate(name string, data any, out ...io.Writer) (string, error)
	RenderString(templateContent string, data any, out ...io.Writer) (string, error)
	RegisterFilter(name string, fn func(input any, param any) (any, error)) error
	GlobalContext(data any) error
}
