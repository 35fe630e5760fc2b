package render

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Translator resolves a message key for a locale. Args are applied with
// fmt.Sprintf semantics.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// MissingTranslationHandler decides what a missing translation renders as.
// params carries the args of the lookup; the localizers append a
// map{"default": fallback} entry.
type MissingTranslationHandler func(locale, key string, params []any, err error) string

var (
	// ErrMissingTranslator is passed to the missing handler when no
	// translator is configured.
	ErrMissingTranslator = errors.New("render: translator not configured")
	// ErrMissingTranslation is returned by Catalog for unknown keys.
	ErrMissingTranslation = errors.New("render: missing translation")
)

func missingTranslationDefault(_ string, key string, params []any, _ error) string {
	for _, p := range params {
		if m, ok := p.(map[string]any); ok {
			if fallback, _ := m["default"].(string); strings.TrimSpace(fallback) != "" {
				return fallback
			}
		}
	}
	return key
}

func translate(locale, key, fallback string, t Translator, onMissing MissingTranslationHandler, args ...any) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	params := append(append([]any(nil), args...), map[string]any{"default": fallback})
	if t == nil {
		return onMissing(locale, key, params, ErrMissingTranslator)
	}
	msg, err := t.Translate(locale, key, args...)
	if err != nil || strings.TrimSpace(msg) == "" {
		return onMissing(locale, key, params, err)
	}
	return msg
}

//go:embed locales/*.yaml
var embeddedLocales embed.FS

// Catalog is a Translator over YAML message files, one file per locale
// (en.yaml, fr.yaml). Nested maps flatten into dotted keys. Lookups fall
// back from a regional locale to its base language, then to the fallback
// locale.
type Catalog struct {
	mu       sync.RWMutex
	fallback string
	messages map[string]map[string]string
}

// NewCatalog returns an empty catalog.
func NewCatalog(fallback string) *Catalog {
	return &Catalog{
		fallback: fallback,
		messages: make(map[string]map[string]string),
	}
}

// DefaultCatalog loads the built-in en and fr messages with en as fallback.
func DefaultCatalog() *Catalog {
	catalog := NewCatalog("en")
	if err := catalog.LoadFS(embeddedLocales, "locales"); err != nil {
		panic(fmt.Sprintf("render: embedded locales: %v", err))
	}
	return catalog
}

// LoadFS merges every *.yaml and *.yml file under dir; the file name
// without extension is the locale.
func (c *Catalog) LoadFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("render: read locales: %w", err)
	}
	for _, entry := range entries {
		ext := path.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("render: read %s: %w", entry.Name(), err)
		}
		if err := c.Load(strings.TrimSuffix(entry.Name(), ext), raw); err != nil {
			return err
		}
	}
	return nil
}

// Load merges YAML messages for locale. Later loads override earlier keys.
func (c *Catalog) Load(locale string, raw []byte) error {
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("render: parse %s messages: %w", locale, err)
	}
	flat := make(map[string]string)
	flatten("", tree, flat)

	c.mu.Lock()
	defer c.mu.Unlock()
	dest := c.messages[locale]
	if dest == nil {
		dest = make(map[string]string, len(flat))
		c.messages[locale] = dest
	}
	for k, v := range flat {
		dest[k] = v
	}
	return nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for key, value := range node {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flatten(full, v, out)
		case nil:
		default:
			out[full] = fmt.Sprint(v)
		}
	}
}

// Translate implements Translator.
func (c *Catalog) Translate(locale, key string, args ...any) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, candidate := range c.chain(locale) {
		if msg, ok := c.messages[candidate][key]; ok {
			if len(args) > 0 {
				return fmt.Sprintf(msg, args...), nil
			}
			return msg, nil
		}
	}
	return "", fmt.Errorf("%w: %s/%s", ErrMissingTranslation, locale, key)
}

func (c *Catalog) chain(locale string) []string {
	out := []string{locale}
	if base, _, ok := strings.Cut(locale, "-"); ok {
		out = append(out, base)
	}
	if c.fallback != "" && c.fallback != locale {
		out = append(out, c.fallback)
	}
	return out
}

// Messages returns a copy of the resolved messages of locale, fallback
// keys included, for clients that translate themselves.
func (c *Catalog) Messages(locale string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	chain := c.chain(locale)
	out := make(map[string]string)
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range c.messages[chain[i]] {
			out[k] = v
		}
	}
	return out
}

// Locales lists the loaded locales.
func (c *Catalog) Locales() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.messages))
	for locale := range c.messages {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// LocalizeDocument translates the document in place: the title, table
// headers, input labels, placeholders and descriptions (nested panels
// included) and menu labels. Labels are used as keys and kept when no
// translation exists.
func LocalizeDocument(doc *Document, opts RenderOptions) {
	if doc == nil {
		return
	}
	onMissing := opts.OnMissing
	if onMissing == nil {
		onMissing = missingTranslationDefault
	}
	tr := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return s
		}
		return translate(opts.Locale, s, s, opts.Translator, onMissing)
	}

	doc.Title = tr(doc.Title)
	localizeLinks(doc.Menu, tr)
	for i := range doc.Locales {
		doc.Locales[i].Label = tr(doc.Locales[i].Label)
	}
	if doc.Table != nil {
		for i := range doc.Table.Headers {
			doc.Table.Headers[i].Label = tr(doc.Table.Headers[i].Label)
		}
	}
	if doc.Form != nil {
		localizeInputs(doc.Form.Inputs, tr)
		doc.Form.Submit = tr(doc.Form.Submit)
	}
}
