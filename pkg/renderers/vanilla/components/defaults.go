package components

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-crudkit/pkg/form"
	"github.com/goliatone/go-crudkit/pkg/model"
)

const templatePrefix = "templates/components/"

// ItemsActionField is the submit button name carrying item add/remove
// requests ("add:variants", "remove:variants.1").
const ItemsActionField = form.ItemActionField

// NewDefaultRegistry returns the built-in components.
func NewDefaultRegistry() *Registry {
	r := New()

	input := templateComponent("forms.input", templatePrefix+"input.tmpl")
	for _, name := range []string{NameText, NameEmail, NamePassword, NameNumber, NameSlider, NameDate} {
		r.MustRegister(name, Descriptor{Renderer: input})
	}
	textarea := templateComponent("forms.textarea", templatePrefix+"textarea.tmpl")
	r.MustRegister(NameTextarea, Descriptor{Renderer: textarea})
	r.MustRegister(NameRich, Descriptor{
		Renderer: textarea,
		Scripts:  []Script{{Inline: richInlineScript, Defer: true}},
	})

	boolean := templateComponent("forms.checkbox", templatePrefix+"boolean.tmpl")
	r.MustRegister(NameToggle, Descriptor{Renderer: boolean})
	r.MustRegister(NameCheckbox, Descriptor{Renderer: boolean})

	choice := templateComponent("forms.choice", templatePrefix+"choice.tmpl")
	r.MustRegister(NameSegmented, Descriptor{Renderer: choice, OwnChrome: true})
	r.MustRegister(NameChips, Descriptor{Renderer: choice, OwnChrome: true})

	sel := templateComponent("forms.select", templatePrefix+"select.tmpl")
	r.MustRegister(NameSelect, Descriptor{Renderer: sel})
	r.MustRegister(NameMultiSelect, Descriptor{Renderer: sel})
	r.MustRegister(NameAutocomplete, Descriptor{
		Renderer: sel,
		Scripts:  []Script{{Inline: autocompleteInlineScript, Defer: true}},
	})

	r.MustRegister(NameItems, Descriptor{Renderer: itemsRenderer, OwnChrome: true})
	r.MustRegister(NameCheckGroup, Descriptor{Renderer: checkGroupRenderer, OwnChrome: true})
	r.MustRegister(NameJSON, jsonEditorDescriptor())
	return r
}

// Control is the template payload of a single control.
type Control struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Widget      string          `json:"widget"`
	Type        string          `json:"type"`
	Label       string          `json:"label"`
	Placeholder string          `json:"placeholder,omitempty"`
	Description string          `json:"description,omitempty"`
	Required    bool            `json:"required,omitempty"`
	Invalid     bool            `json:"invalid,omitempty"`
	Value       string          `json:"value"`
	Checked     bool            `json:"checked,omitempty"`
	Multiple    bool            `json:"multiple,omitempty"`
	Options     []ControlOption `json:"options,omitempty"`
	OptionsURL  string          `json:"optionsUrl,omitempty"`
	Min         string          `json:"min,omitempty"`
	Max         string          `json:"max,omitempty"`
	Step        string          `json:"step,omitempty"`
	Unit        string          `json:"unit,omitempty"`
}

// ControlOption is one option with its selection state.
type ControlOption struct {
	ID       string `json:"id"`
	Value    string `json:"value"`
	Label    string `json:"label"`
	Group    string `json:"group,omitempty"`
	Selected bool   `json:"selected,omitempty"`
}

// NewControl derives the control payload of input.
func NewControl(input form.Input) Control {
	c := Control{
		ID:          ControlID(input.Path),
		Name:        input.Path,
		Widget:      input.Widget,
		Type:        htmlInputType(input.Widget),
		Label:       input.Label,
		Placeholder: input.Placeholder,
		Description: input.Description,
		Required:    input.Required,
		Invalid:     input.Error != "",
		Multiple:    input.Widget == NameMultiSelect || input.Widget == NameChips,
		OptionsURL:  input.OptionsURL,
	}

	switch input.Widget {
	case NameDate:
		c.Value = dateValue(input.Value)
	case NameToggle, NameCheckbox:
		c.Checked = truthy(input.Value)
		c.Value = "true"
	default:
		c.Value = model.Stringify(input.Value)
	}

	selected := selectedValues(input.Value)
	for i, opt := range input.Options {
		value := model.Stringify(opt.Value)
		_, on := selected[value]
		c.Options = append(c.Options, ControlOption{
			ID:       c.ID + "-" + strconv.Itoa(i),
			Value:    value,
			Label:    opt.Label,
			Group:    opt.Group,
			Selected: on,
		})
	}

	if n := input.Number; n != nil {
		if n.Min != nil {
			c.Min = strconv.FormatFloat(*n.Min, 'f', -1, 64)
		}
		if n.Max != nil {
			c.Max = strconv.FormatFloat(*n.Max, 'f', -1, 64)
		}
		if n.Step > 0 {
			c.Step = strconv.FormatFloat(n.Step, 'f', -1, 64)
		}
		c.Unit = n.Unit
	}
	return c
}

func htmlInputType(widget string) string {
	switch widget {
	case NameEmail:
		return "email"
	case NamePassword:
		return "password"
	case NameNumber:
		return "number"
	case NameSlider:
		return "range"
	case NameDate:
		return "date"
	default:
		return "text"
	}
}

func dateValue(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(time.DateOnly)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format(time.DateOnly)
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed.Format(time.DateOnly)
		}
		return t
	}
	return model.Stringify(v)
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		on, _ := strconv.ParseBool(b)
		return on || b == "on"
	}
	return false
}

func selectedValues(v any) map[string]struct{} {
	out := make(map[string]struct{})
	switch list := v.(type) {
	case nil:
	case []any:
		for _, item := range list {
			out[model.Stringify(item)] = struct{}{}
		}
	case []string:
		for _, item := range list {
			out[item] = struct{}{}
		}
	default:
		out[model.Stringify(v)] = struct{}{}
	}
	return out
}

func templateComponent(partialKey, templateName string) Renderer {
	return func(buf *bytes.Buffer, input form.Input, data ComponentData) error {
		if data.Template == nil {
			return fmt.Errorf("components: template renderer not configured for %q", templateName)
		}
		name := templateName
		if candidate := strings.TrimSpace(data.Partials[partialKey]); candidate != "" {
			name = candidate
		}
		payload := map[string]any{
			"control": NewControl(input),
			"input":   input,
		}
		if data.T != nil {
			payload["t"] = data.T
		}
		if _, err := data.Template.RenderTemplate(name, payload, buf); err != nil {
			return fmt.Errorf("components: render template %q: %w", name, err)
		}
		return nil
	}
}

// itemsRenderer draws an itemsform as cards, tabs or accordion panels, each
// with a remove button, plus an add button.
func itemsRenderer(buf *bytes.Buffer, input form.Input, data ComponentData) error {
	layout := input.Layout
	if layout == "" {
		layout = model.LayoutCards
	}
	id := ControlID(input.Path)

	var b strings.Builder
	fmt.Fprintf(&b, `<fieldset id="%s" class="crudkit-items crudkit-items--%s" data-layout="%s">`,
		html.EscapeString(id), html.EscapeString(string(layout)), html.EscapeString(string(layout)))
	writeLegend(&b, input, LabelID(input.Path))

	if layout == model.LayoutTabs && len(input.Items) > 0 {
		b.WriteString(`<div class="crudkit-tabs" role="tablist">`)
		for i, item := range input.Items {
			fmt.Fprintf(&b, `<button type="button" role="tab" class="crudkit-tab" aria-controls="%s" aria-selected="%t">%s</button>`,
				html.EscapeString(ControlID(item.Path)), i == 0, html.EscapeString(panelLabel(item)))
		}
		b.WriteString(`</div>`)
	}

	for i, item := range input.Items {
		children := ""
		if data.RenderChildren != nil {
			rendered, err := data.RenderChildren(item.Inputs)
			if err != nil {
				return err
			}
			children = rendered
		}
		label := html.EscapeString(panelLabel(item))
		remove := fmt.Sprintf(`<button type="submit" class="crudkit-button crudkit-button--ghost" name="%s" value="remove:%s" formnovalidate>%s</button>`,
			ItemsActionField, html.EscapeString(item.Path), html.EscapeString(data.translate("form.remove_item")))
		panelID := html.EscapeString(ControlID(item.Path))

		switch layout {
		case model.LayoutAccordion:
			open := ""
			if i == 0 {
				open = " open"
			}
			fmt.Fprintf(&b, `<details id="%s" class="crudkit-panel"%s><summary>%s</summary>%s%s</details>`, panelID, open, label, children, remove)
		case model.LayoutTabs:
			hidden := ""
			if i > 0 {
				hidden = " hidden"
			}
			fmt.Fprintf(&b, `<section id="%s" class="crudkit-panel" role="tabpanel"%s>%s%s</section>`, panelID, hidden, children, remove)
		default:
			fmt.Fprintf(&b, `<section id="%s" class="crudkit-panel crudkit-card"><h4>%s</h4>%s%s</section>`, panelID, label, children, remove)
		}
	}

	fmt.Fprintf(&b, `<button type="submit" class="crudkit-button" name="%s" value="add:%s" formnovalidate>%s</button>`,
		ItemsActionField, html.EscapeString(input.Path), html.EscapeString(data.translate("form.add_item")))
	b.WriteString(`</fieldset>`)
	buf.WriteString(b.String())
	return nil
}

func panelLabel(item form.ItemPanel) string {
	if label := strings.TrimSpace(item.Label); label != "" {
		return label
	}
	return "#" + strconv.Itoa(item.Index+1)
}

// checkGroupRenderer draws one checkbox per checkform option; checked
// options expand into their sub-form.
func checkGroupRenderer(buf *bytes.Buffer, input form.Input, data ComponentData) error {
	id := ControlID(input.Path)
	var b strings.Builder
	fmt.Fprintf(&b, `<fieldset id="%s" class="crudkit-checkgroup">`, html.EscapeString(id))
	writeLegend(&b, input, LabelID(input.Path))

	for i, check := range input.Checks {
		optionID := html.EscapeString(id + "-" + strconv.Itoa(i))
		checked := ""
		if check.Checked {
			checked = " checked"
		}
		label := check.Option
		for _, opt := range input.Options {
			if model.Stringify(opt.Value) == check.Option && opt.Label != "" {
				label = opt.Label
			}
		}
		fmt.Fprintf(&b, `<div class="crudkit-check"><input type="checkbox" id="%s" name="%s" value="%s"%s><label for="%s">%s</label>`,
			optionID, html.EscapeString(input.Path), html.EscapeString(check.Option), checked, optionID, html.EscapeString(label))
		if check.Checked && len(check.Inputs) > 0 && data.RenderChildren != nil {
			children, err := data.RenderChildren(check.Inputs)
			if err != nil {
				return err
			}
			fmt.Fprintf(&b, `<div class="crudkit-check__form">%s</div>`, children)
		}
		b.WriteString(`</div>`)
	}
	b.WriteString(`</fieldset>`)
	buf.WriteString(b.String())
	return nil
}

func writeLegend(b *strings.Builder, input form.Input, labelID string) {
	if label := strings.TrimSpace(input.Label); label != "" {
		fmt.Fprintf(b, `<legend id="%s">%s`, html.EscapeString(labelID), html.EscapeString(label))
		if input.Required {
			b.WriteString(` *`)
		}
		b.WriteString(`</legend>`)
	}
	if desc := strings.TrimSpace(input.Description); desc != "" {
		fmt.Fprintf(b, `<p class="crudkit-field__description">%s</p>`, html.EscapeString(desc))
	}
	if msg := strings.TrimSpace(input.Error); msg != "" {
		fmt.Fprintf(b, `<p class="crudkit-field__error" role="alert">%s</p>`, html.EscapeString(msg))
	}
}

// ControlID is the element id of the control bound to path.
func ControlID(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	return "ck-" + strings.NewReplacer(".", "-", " ", "-").Replace(path)
}

// LabelID is the id of the label or legend naming the control at path.
func LabelID(path string) string {
	if id := ControlID(path); id != "" {
		return id + "-label"
	}
	return ""
}

const richInlineScript = `document.querySelectorAll('textarea[data-rich]').forEach(function (area) {
  var editor = document.createElement('div');
  editor.className = 'crudkit-rich';
  editor.contentEditable = 'true';
  editor.innerHTML = area.value;
  area.hidden = true;
  area.parentNode.insertBefore(editor, area);
  editor.addEventListener('input', function () { area.value = editor.innerHTML; });
});`

const autocompleteInlineScript = `document.querySelectorAll('select[data-autocomplete]').forEach(function (select) {
  var search = document.createElement('input');
  search.type = 'search';
  search.className = 'crudkit-input';
  search.setAttribute('aria-controls', select.id);
  select.parentNode.insertBefore(search, select);
  var remote = select.getAttribute('data-options-url');
  search.addEventListener('input', function () {
    var needle = search.value.toLowerCase();
    if (remote) {
      fetch(remote + (remote.indexOf('?') === -1 ? '?' : '&') + 'q=' + encodeURIComponent(search.value))
        .then(function (res) { return res.json(); })
        .then(function (body) {
          var current = select.value;
          Array.prototype.slice.call(select.options).forEach(function (opt) {
            if (opt.value !== '' && !opt.selected) { opt.remove(); }
          });
          (body.data || []).forEach(function (item) {
            if (String(item.value) === current) { return; }
            select.add(new Option(item.label, item.value));
          });
        });
      return;
    }
    Array.prototype.forEach.call(select.options, function (opt) {
      opt.hidden = needle !== '' && opt.text.toLowerCase().indexOf(needle) === -1;
    });
  });
});`
