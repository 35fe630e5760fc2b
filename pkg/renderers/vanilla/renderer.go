// Package vanilla renders documents as server-side HTML pages with plain
// forms and links, no client framework required.
package vanilla

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/mohae/deepcopy"

	"github.com/goliatone/go-crudkit/pkg/media"
	"github.com/goliatone/go-crudkit/pkg/render"
	rendertemplate "github.com/goliatone/go-crudkit/pkg/render/template"
	gotemplate "github.com/goliatone/go-crudkit/pkg/render/template/gotemplate"
	"github.com/goliatone/go-crudkit/pkg/renderers/vanilla/components"
)

// Page templates, also the theme partial keys that override them.
const (
	pageTemplate  = "templates/page.tmpl"
	tableTemplate = "templates/table.tmpl"
	formTemplate  = "templates/form.tmpl"
	mediaTemplate = "templates/media.tmpl"
)

var pagePartials = map[render.Kind]string{
	render.KindTable: "pages.table",
	render.KindForm:  "pages.form",
	render.KindMedia: "pages.media",
}

type Option func(*config)

type config struct {
	templateFS       fs.FS
	templateRenderer rendertemplate.TemplateRenderer
	registry         *components.Registry
	translator       render.Translator
	funcs            map[string]any
	classes          map[ChromeClass]string
	stylesheetURL    string
}

// WithTemplatesFS supplies an alternate template bundle.
func WithTemplatesFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templateFS = files
	}
}

// WithTemplatesDir loads templates from a directory on disk.
func WithTemplatesDir(path string) Option {
	return func(cfg *config) {
		if path != "" {
			cfg.templateFS = os.DirFS(path)
		}
	}
}

// WithTemplateRenderer injects a template engine.
func WithTemplateRenderer(renderer rendertemplate.TemplateRenderer) Option {
	return func(cfg *config) {
		if renderer != nil {
			cfg.templateRenderer = renderer
		}
	}
}

// WithComponentRegistry replaces the default components.
func WithComponentRegistry(registry *components.Registry) Option {
	return func(cfg *config) {
		if registry != nil {
			cfg.registry = registry
		}
	}
}

// WithTranslator sets the translator used when RenderOptions carry none.
func WithTranslator(t render.Translator) Option {
	return func(cfg *config) {
		if t != nil {
			cfg.translator = t
		}
	}
}

// WithTemplateFuncs adds template helpers to the built-in engine.
func WithTemplateFuncs(funcs map[string]any) Option {
	return func(cfg *config) {
		if cfg.funcs == nil {
			cfg.funcs = make(map[string]any, len(funcs))
		}
		for name, fn := range funcs {
			cfg.funcs[name] = fn
		}
	}
}

// WithChromeClasses overrides the CSS classes of chrome regions.
func WithChromeClasses(classes map[ChromeClass]string) Option {
	return func(cfg *config) {
		cfg.classes = classes
	}
}

// WithStylesheetURL links the stylesheet instead of inlining it.
func WithStylesheetURL(href string) Option {
	return func(cfg *config) {
		cfg.stylesheetURL = strings.TrimSpace(href)
	}
}

type Renderer struct {
	templates     rendertemplate.TemplateRenderer
	registry      *components.Registry
	translator    render.Translator
	classes       map[string]string
	stylesheet    string
	stylesheetURL string
}

var _ render.Renderer = (*Renderer)(nil)

// New constructs the vanilla renderer.
func New(options ...Option) (*Renderer, error) {
	cfg := config{templateFS: TemplatesFS()}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.templateFS == nil {
		cfg.templateFS = TemplatesFS()
	}
	if cfg.translator == nil {
		cfg.translator = render.DefaultCatalog()
	}
	if cfg.registry == nil {
		cfg.registry = components.NewDefaultRegistry()
	}

	templates := cfg.templateRenderer
	if templates == nil {
		funcs := render.TemplateI18nFuncs(cfg.translator, render.TemplateI18nConfig{})
		funcs["filesize"] = func(size any) string { return media.HumanFileSize(toInt64(size), true, 1) }
		for name, fn := range cfg.funcs {
			funcs[name] = fn
		}
		engine, err := gotemplate.New(
			gotemplate.WithFS(cfg.templateFS),
			gotemplate.WithExtension(".tmpl"),
			gotemplate.WithTemplateFunc(funcs),
		)
		if err != nil {
			return nil, fmt.Errorf("vanilla renderer: configure template renderer: %w", err)
		}
		templates = engine
	}

	r := &Renderer{
		templates:     templates,
		registry:      cfg.registry,
		translator:    cfg.translator,
		classes:       chromeClasses(cfg.classes),
		stylesheetURL: cfg.stylesheetURL,
	}
	if r.stylesheetURL == "" {
		r.stylesheet = defaultStylesheet()
	}
	return r, nil
}

func (r *Renderer) Name() string {
	return "vanilla"
}

func (r *Renderer) ContentType() string {
	return "text/html; charset=utf-8"
}

// Render localizes a copy of doc, maps server errors onto the form inputs,
// renders the view selected by doc.Kind and wraps it in the page chrome.
func (r *Renderer) Render(ctx context.Context, doc render.Document, opts render.RenderOptions) ([]byte, error) {
	if r.templates == nil {
		return nil, fmt.Errorf("vanilla renderer: template renderer is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc = deepcopy.Copy(doc).(render.Document)
	if opts.Translator == nil {
		opts.Translator = r.translator
	}
	render.LocalizeDocument(&doc, opts)
	t := opts.T()

	var partials map[string]string
	cssVars, themeStylesheet := "", ""
	if opts.Theme != nil {
		partials = opts.Theme.Partials
		cssVars = render.CSSVarsStyle(opts.Theme.CSSVars)
		if opts.Theme.AssetURL != nil {
			themeStylesheet = opts.Theme.AssetURL("stylesheet")
		}
	}
	fields := newComponentRenderer(r.templates, r.registry, partials, t)

	data := map[string]any{
		"doc":     doc,
		"t":       t,
		"locale":  opts.Locale,
		"classes": r.classes,
	}
	body := ""
	switch {
	case doc.Kind == render.KindTable && doc.Table != nil:
		data["table"] = buildTableChrome(doc.Table, t)
	case doc.Kind == render.KindForm && doc.Form != nil:
		if err := r.prepareForm(&doc, opts, fields, data); err != nil {
			return nil, err
		}
	case doc.Kind == render.KindMedia && doc.Media != nil:
		data["media"] = buildMediaChrome(doc.Media, doc.Path, t)
	}

	if name := bodyTemplate(doc.Kind, partials); name != "" {
		rendered, err := r.templates.RenderTemplate(name, data)
		if err != nil {
			return nil, fmt.Errorf("vanilla renderer: render %s: %w", doc.Kind, err)
		}
		body = rendered
	}

	stylesheets, scripts := fields.assets()
	if themeStylesheet != "" {
		stylesheets = append([]string{themeStylesheet}, stylesheets...)
	}
	if r.stylesheetURL != "" {
		stylesheets = append([]string{r.stylesheetURL}, stylesheets...)
	}

	page := resolvePartial(partials, "pages.layout", pageTemplate)
	out, err := r.templates.RenderTemplate(page, map[string]any{
		"doc":         doc,
		"t":           t,
		"locale":      opts.Locale,
		"classes":     r.classes,
		"body":        body,
		"stylesheet":  r.stylesheet,
		"stylesheets": stylesheets,
		"scripts":     scripts,
		"css_vars":    cssVars,
	})
	if err != nil {
		return nil, fmt.Errorf("vanilla renderer: render page: %w", err)
	}
	return []byte(out), nil
}

func (r *Renderer) prepareForm(doc *render.Document, opts render.RenderOptions, fields *componentRenderer, data map[string]any) error {
	f := doc.Form
	mapping := render.MapErrors(f.Inputs, opts.Errors)
	render.ApplyErrors(f.Inputs, mapping.Fields)
	f.Errors = render.MergeFormErrors(f.Errors, mapping.Form...)

	requested := opts.Method
	if requested == "" {
		requested = f.Method
	}
	method, override := render.FormMethod(requested)
	hidden := append([]render.HiddenField(nil), opts.Hidden...)
	if override != nil {
		hidden = append(hidden, *override)
	}

	markup, err := fields.renderAll(f.Inputs)
	if err != nil {
		return fmt.Errorf("vanilla renderer: render inputs: %w", err)
	}
	submit := f.Submit
	if submit == "" {
		submit = opts.T()("form.submit")
	}

	data["form"] = map[string]any{
		"method":  method,
		"hidden":  render.MergeHiddenFields(hidden...),
		"fields":  markup,
		"submit":  submit,
		"confirm": opts.T()("form.confirm_delete"),
	}
	return nil
}

func bodyTemplate(kind render.Kind, partials map[string]string) string {
	switch kind {
	case render.KindTable:
		return resolvePartial(partials, pagePartials[kind], tableTemplate)
	case render.KindForm:
		return resolvePartial(partials, pagePartials[kind], formTemplate)
	case render.KindMedia:
		return resolvePartial(partials, pagePartials[kind], mediaTemplate)
	}
	return ""
}

func resolvePartial(partials map[string]string, key, fallback string) string {
	if candidate := strings.TrimSpace(partials[key]); candidate != "" {
		return candidate
	}
	return fallback
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}
