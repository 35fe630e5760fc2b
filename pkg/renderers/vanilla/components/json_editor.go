package components

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-crudkit/pkg/form"
)

const (
	jsonEditorTemplate = templatePrefix + "json_editor.tmpl"
	jsonEditorPartial  = "forms.json-editor"
)

func jsonEditorDescriptor() Descriptor {
	return Descriptor{
		Renderer: jsonEditorRenderer,
		Scripts:  []Script{{Inline: jsonEditorInlineScript, Defer: true}},
	}
}

// jsonEditorRenderer draws a textarea holding the value as indented JSON.
// The data-load form uses it to paste a whole record.
func jsonEditorRenderer(buf *bytes.Buffer, input form.Input, data ComponentData) error {
	if data.Template == nil {
		return fmt.Errorf("components: template renderer not configured for %q", jsonEditorTemplate)
	}
	name := jsonEditorTemplate
	if candidate := strings.TrimSpace(data.Partials[jsonEditorPartial]); candidate != "" {
		name = candidate
	}

	value, valid := JSONEditorValue(input.Value)
	control := NewControl(input)
	control.Value = value
	control.Invalid = control.Invalid || !valid

	payload := map[string]any{
		"control": control,
		"valid":   valid,
		"invalid": data.translate("form.invalid_json"),
	}
	if _, err := data.Template.RenderTemplate(name, payload, buf); err != nil {
		return fmt.Errorf("components: render template %q: %w", name, err)
	}
	return nil
}

// JSONEditorValue formats v for the editor. Strings are treated as raw JSON
// and re-indented when they parse; valid is false when they do not. Other
// values are encoded with sorted keys. Empty values render as "{}".
func JSONEditorValue(v any) (string, bool) {
	switch raw := v.(type) {
	case nil:
		return "{}", true
	case string:
		if strings.TrimSpace(raw) == "" {
			return "{}", true
		}
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return raw, false
		}
		v = decoded
	case []byte:
		return JSONEditorValue(string(raw))
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v), false
	}
	return string(out), true
}

const jsonEditorInlineScript = `document.querySelectorAll('textarea[data-json-editor]').forEach(function (area) {
  var status = document.getElementById(area.id + '-status');
  var check = function () {
    try {
      JSON.parse(area.value || '{}');
      area.removeAttribute('aria-invalid');
      if (status) { status.hidden = true; }
    } catch (e) {
      area.setAttribute('aria-invalid', 'true');
      if (status) { status.hidden = false; }
    }
  };
  area.addEventListener('input', check);
  check();
});`
