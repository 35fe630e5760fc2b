package render

import (
	theme "github.com/goliatone/go-theme"
)

// RenderOptions carry per-request data renderers use without touching the
// view models.
type RenderOptions struct {
	// Method overrides the form method. Browsers only submit GET and POST,
	// so renderers emit POST plus a hidden _method input for other verbs.
	Method string
	// Locale and Translator localize labels; OnMissing decides what a
	// missing translation renders as.
	Locale     string
	Translator Translator
	OnMissing  MissingTranslationHandler
	// Errors are server-side messages keyed by field path, mapped onto the
	// form inputs with MapErrors.
	Errors map[string][]string
	// Hidden fields are emitted inside forms.
	Hidden []HiddenField
	// Theme is the resolved go-theme configuration.
	Theme *theme.RendererConfig
}

// T returns a translation function bound to the options' locale.
func (o RenderOptions) T() func(key string, args ...any) string {
	onMissing := o.OnMissing
	if onMissing == nil {
		onMissing = missingTranslationDefault
	}
	return func(key string, args ...any) string {
		return translate(o.Locale, key, "", o.Translator, onMissing, args...)
	}
}
