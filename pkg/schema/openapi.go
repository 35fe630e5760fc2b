package schema

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// ExtensionKey is the vendor extension carrying descriptor hints on
// component schemas and their properties.
const ExtensionKey = "x-crudkit"

// FromOpenAPI converts every object component schema of an OpenAPI 3
// document into a collection. Properties keep their document order.
//
// Collection hints (x-crudkit on the component): name, label, itemId,
// perPage, skip. Field hints (x-crudkit on a property): type, widget, label,
// placeholder, hidden, noFilter, noSort, width, unit, step, layout, labelKey,
// optionValue, optionLabel, optionGroup, skip.
func FromOpenAPI(ctx context.Context, raw []byte) ([]model.Schema, error) {
	loader := &openapi3.Loader{Context: ctx}
	spec, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("schema: load openapi document: %w", err)
	}
	if spec.Components == nil || len(spec.Components.Schemas) == 0 {
		return nil, errors.New("schema: openapi document has no component schemas")
	}

	conv := &converter{visiting: make(map[string]bool)}
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err == nil && len(root.Content) > 0 {
		conv.root = root.Content[0]
	}

	names := orderedKeys(spec.Components.Schemas, conv.keys([]string{"components", "schemas"}))
	var out []model.Schema
	for _, name := range names {
		ref := spec.Components.Schemas[name]
		if ref == nil || ref.Value == nil || !isObject(ref.Value) {
			continue
		}
		ext := extensionOf(ref.Value.Extensions)
		if ext.bool("skip") {
			continue
		}
		fields, err := conv.fields(&openapi3.SchemaRef{Ref: "#/components/schemas/" + name, Value: ref.Value}, nil)
		if err != nil {
			return nil, fmt.Errorf("schema: component %q: %w", name, err)
		}
		s := model.Schema{
			Name:    firstNonEmpty(ext.str("name"), strings.ToLower(name)),
			Label:   firstNonEmpty(ext.str("label"), ref.Value.Title, name),
			ItemID:  ext.str("itemId"),
			PerPage: int(ext.number("perPage")),
			Fields:  fields,
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errors.New("schema: openapi document has no object component schemas")
	}
	return out, nil
}

type converter struct {
	root     *yaml.Node
	visiting map[string]bool
}

// fields converts the properties of an object schema. path locates the
// schema node in the raw document; local references replace it.
func (c *converter) fields(ref *openapi3.SchemaRef, path []string) ([]model.Field, error) {
	if p, ok := refPath(ref.Ref); ok {
		path = p
		c.visiting[ref.Ref] = true
		defer delete(c.visiting, ref.Ref)
	}
	s := ref.Value

	var out []model.Field
	seen := make(map[string]bool)
	add := func(fields []model.Field) {
		for _, f := range fields {
			if seen[f.Key] {
				continue
			}
			seen[f.Key] = true
			out = append(out, f)
		}
	}

	for i, part := range s.AllOf {
		if part == nil || part.Value == nil {
			continue
		}
		sub, err := c.fields(part, appendPath(path, "allOf", strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		add(sub)
	}

	required := make(map[string]bool, len(s.Required))
	for _, key := range s.Required {
		required[key] = true
	}
	propsPath := appendPath(path, "properties")
	var own []model.Field
	for _, key := range orderedKeys(s.Properties, c.keys(propsPath)) {
		f, ok, err := c.field(key, s.Properties[key], required[key], appendPath(propsPath, key))
		if err != nil {
			return nil, err
		}
		if ok {
			own = append(own, f)
		}
	}
	add(own)
	return out, nil
}

func (c *converter) field(key string, ref *openapi3.SchemaRef, required bool, path []string) (model.Field, bool, error) {
	if ref == nil || ref.Value == nil {
		return model.Field{}, false, nil
	}
	s := ref.Value
	ext := extensionOf(s.Extensions)
	if ext.bool("skip") {
		return model.Field{}, false, nil
	}
	if p, ok := refPath(ref.Ref); ok {
		path = p
	}

	f := model.Field{
		Key:         key,
		Label:       firstNonEmpty(ext.str("label"), s.Title),
		Description: s.Description,
		Placeholder: ext.str("placeholder"),
		Default:     s.Default,
		Required:    required,
		Widget:      ext.str("widget"),
		Hidden:      ext.bool("hidden"),
		NoFilter:    ext.bool("noFilter"),
		NoSort:      ext.bool("noSort"),
		Width:       ext.str("width"),
		OptionValue: ext.str("optionValue"),
		OptionLabel: ext.str("optionLabel"),
		OptionGroup: ext.str("optionGroup"),
	}
	kind := model.FieldType(ext.str("type"))
	if kind != "" && !kind.Known() {
		return model.Field{}, false, fmt.Errorf("%w %q (property %q)", model.ErrUnknownType, kind, key)
	}
	if required {
		f.Validations = append(f.Validations, model.ValidationRule{Kind: model.ValidationRuleRequired})
	}

	switch primaryType(s) {
	case openapi3.TypeArray:
		if err := c.arrayField(&f, s, ext, kind, appendPath(path, "items")); err != nil {
			return model.Field{}, false, err
		}
	case openapi3.TypeObject:
		if err := c.objectField(&f, ref, kind, path); err != nil {
			return model.Field{}, false, err
		}
	case openapi3.TypeBoolean:
		f.Type = model.FieldTypeSwitch
		if kind == model.FieldTypeCheckbox {
			f.Type = kind
		}
	case openapi3.TypeInteger, openapi3.TypeNumber:
		numberField(&f, s, ext, kind)
	default:
		stringField(&f, s, kind)
	}
	return f, true, nil
}

func stringField(f *model.Field, s *openapi3.Schema, kind model.FieldType) {
	switch {
	case kind != "":
		f.Type = kind
	case len(s.Enum) > 0:
		f.Type = model.FieldTypeSelect
	case s.Format == "date" || s.Format == "date-time":
		f.Type = model.FieldTypeDate
	case s.Format == "html":
		f.Type = model.FieldTypeRich
	case s.Format == "textarea" || (s.MaxLength != nil && *s.MaxLength > 255):
		f.Type = model.FieldTypeTextarea
	default:
		f.Type = model.FieldTypeText
	}
	if len(s.Enum) > 0 && f.Type.Optioned() {
		f.Options = slices.Clone(s.Enum)
	}
	if s.Format == "password" && f.Widget == "" {
		f.Widget = "password"
	}
	if s.MinLength > 0 {
		f.Validations = append(f.Validations, rule(model.ValidationRuleMinLength, float64(s.MinLength)))
	}
	if s.MaxLength != nil {
		f.Validations = append(f.Validations, rule(model.ValidationRuleMaxLength, float64(*s.MaxLength)))
	}
	if s.Pattern != "" {
		f.Validations = append(f.Validations, model.ValidationRule{
			Kind:   model.ValidationRulePattern,
			Params: map[string]string{"pattern": s.Pattern},
		})
	}
	switch s.Format {
	case "email":
		f.Validations = append(f.Validations, model.ValidationRule{Kind: model.ValidationRuleEmail})
	case "uri", "url":
		f.Validations = append(f.Validations, model.ValidationRule{Kind: model.ValidationRuleURL})
	}
}

func numberField(f *model.Field, s *openapi3.Schema, ext extension, kind model.FieldType) {
	cfg := &model.NumberConfig{Min: s.Min, Max: s.Max, Unit: ext.str("unit")}
	switch {
	case ext.number("step") > 0:
		cfg.Step = ext.number("step")
	case s.MultipleOf != nil:
		cfg.Step = *s.MultipleOf
	case primaryType(s) == openapi3.TypeInteger:
		cfg.Step = 1
	}
	if kind == model.FieldTypeSlider {
		f.Type = model.FieldTypeSlider
		f.Slider = cfg
	} else {
		f.Type = model.FieldTypeNumber
		f.Number = cfg
	}
	if s.Min != nil {
		f.Validations = append(f.Validations, rule(model.ValidationRuleMin, *s.Min))
	}
	if s.Max != nil {
		f.Validations = append(f.Validations, rule(model.ValidationRuleMax, *s.Max))
	}
}

func (c *converter) arrayField(f *model.Field, s *openapi3.Schema, ext extension, kind model.FieldType, path []string) error {
	items := s.Items
	if items == nil || items.Value == nil {
		f.Type = model.FieldTypeChips
		return nil
	}
	if primaryType(items.Value) == openapi3.TypeObject {
		if c.visiting[items.Ref] {
			jsonField(f)
			return nil
		}
		nested, err := c.fields(items, path)
		if err != nil {
			return err
		}
		f.Type = model.FieldTypeItemsForm
		f.Nested = nested
		f.Items = &model.ItemsConfig{
			Layout:   model.Layout(ext.str("layout")),
			LabelKey: ext.str("labelKey"),
		}
		if defaults, ok := items.Value.Default.(map[string]any); ok {
			f.Items.Defaults = defaults
		}
		return nil
	}
	switch {
	case kind != "":
		f.Type = kind
	case len(items.Value.Enum) > 0:
		f.Type = model.FieldTypeMultiSelect
	default:
		f.Type = model.FieldTypeChips
	}
	if len(items.Value.Enum) > 0 {
		f.Options = slices.Clone(items.Value.Enum)
	}
	return nil
}

// objectField maps objects whose properties are all objects to a checkform
// (every property is a named optional sub-object). Other objects are edited
// as raw JSON.
func (c *converter) objectField(f *model.Field, ref *openapi3.SchemaRef, kind model.FieldType, path []string) error {
	s := ref.Value
	if c.visiting[ref.Ref] || len(s.Properties) == 0 || kind == model.FieldTypeText {
		jsonField(f)
		return nil
	}
	options := orderedKeys(s.Properties, c.keys(appendPath(path, "properties")))
	for _, option := range options {
		prop := s.Properties[option]
		if prop == nil || prop.Value == nil || primaryType(prop.Value) != openapi3.TypeObject {
			jsonField(f)
			return nil
		}
	}
	first := s.Properties[options[0]]
	nested, err := c.fields(first, appendPath(path, "properties", options[0]))
	if err != nil {
		return err
	}
	f.Type = model.FieldTypeCheckForm
	f.Check = &model.CheckConfig{Options: options}
	f.Nested = nested
	return nil
}

func jsonField(f *model.Field) {
	f.Type = model.FieldTypeText
	if f.Widget == "" {
		f.Widget = "json"
	}
}

func rule(kind string, value float64) model.ValidationRule {
	return model.ValidationRule{
		Kind:   kind,
		Params: map[string]string{"value": strconv.FormatFloat(value, 'f', -1, 64)},
	}
}

func isObject(s *openapi3.Schema) bool {
	return primaryType(s) == openapi3.TypeObject || len(s.AllOf) > 0
}

func primaryType(s *openapi3.Schema) string {
	if s == nil {
		return ""
	}
	if s.Type != nil {
		for _, t := range s.Type.Slice() {
			if t != openapi3.TypeNull {
				return t
			}
		}
	}
	if len(s.Properties) > 0 {
		return openapi3.TypeObject
	}
	if s.Items != nil {
		return openapi3.TypeArray
	}
	return ""
}

// keys lists the mapping keys found at path in the raw document.
func (c *converter) keys(path []string) []string {
	if len(path) == 0 {
		return nil
	}
	node := c.root
	for _, seg := range path {
		if node == nil {
			return nil
		}
		switch node.Kind {
		case yaml.MappingNode:
			node = mappingValue(node, seg)
		case yaml.SequenceNode:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node.Content) {
				return nil
			}
			node = node.Content[i]
		default:
			return nil
		}
	}
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}

// orderedKeys lists the keys of m in document order, then any keys the
// document did not reveal in lexical order.
func orderedKeys[V any](m map[string]V, order []string) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, key := range order {
		if _, ok := m[key]; ok && !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	var rest []string
	for key := range m {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func refPath(ref string) ([]string, bool) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, false
	}
	parts := strings.Split(strings.TrimPrefix(ref, "#/"), "/")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~")
	}
	return parts, true
}

func appendPath(path []string, segs ...string) []string {
	if path == nil {
		return nil
	}
	out := make([]string, 0, len(path)+len(segs))
	return append(append(out, path...), segs...)
}

type extension map[string]any

func extensionOf(ext map[string]any) extension {
	m, _ := ext[ExtensionKey].(map[string]any)
	return m
}

func (e extension) str(key string) string {
	s, _ := e[key].(string)
	return s
}

func (e extension) bool(key string) bool {
	b, _ := e[key].(bool)
	return b
}

func (e extension) number(key string) float64 {
	switch v := e[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
