package schema

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// DefaultAPIBase prefixes the collection routes.
const DefaultAPIBase = "/api/collections"

// APIOptions configures APIDocument.
type APIOptions struct {
	Title   string
	Version string
	Base    string
	Servers []string
}

// APIOption mutates APIOptions.
type APIOption func(*APIOptions)

// WithTitle sets the document title and version.
func WithTitle(title, version string) APIOption {
	return func(o *APIOptions) {
		o.Title = title
		o.Version = version
	}
}

// WithBase changes the collection route prefix.
func WithBase(base string) APIOption {
	return func(o *APIOptions) {
		o.Base = strings.TrimRight(base, "/")
	}
}

// WithServers lists server URLs.
func WithServers(urls ...string) APIOption {
	return func(o *APIOptions) {
		o.Servers = append(o.Servers, urls...)
	}
}

// APIDocument describes the item routes of every collection: list with
// query parameters, create, read, replace, patch, delete, duplicate and
// bulk actions. Record components are derived from the descriptors.
func APIDocument(ctx context.Context, schemas []model.Schema, opts ...APIOption) (*openapi3.T, error) {
	cfg := APIOptions{Title: "crudkit", Version: "1.0.0", Base: DefaultAPIBase}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if len(schemas) == 0 {
		return nil, errors.New("schema: no collections to describe")
	}

	doc := &openapi3.T{
		OpenAPI:    "3.0.3",
		Info:       &openapi3.Info{Title: cfg.Title, Version: cfg.Version},
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
	}
	for _, u := range cfg.Servers {
		doc.AddServer(&openapi3.Server{URL: u})
	}
	doc.Components.Schemas["Error"] = openapi3.NewSchemaRef("", errorSchema())

	for _, s := range schemas {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		name := ComponentName(s.Name)
		if _, dup := doc.Components.Schemas[name]; dup {
			return nil, fmt.Errorf("schema: component %q defined twice", name)
		}
		doc.Components.Schemas[name] = openapi3.NewSchemaRef("", recordSchema(s))
		doc.Components.Schemas[name+"Page"] = openapi3.NewSchemaRef("", pageSchema(componentRef(doc, name)))
		addCollectionPaths(doc, cfg.Base, s, name)
	}

	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, fmt.Errorf("schema: generated document is invalid: %w", err)
	}
	return doc, nil
}

// ComponentName turns a collection name into a component schema name:
// "order-lines" becomes "OrderLines".
func ComponentName(collection string) string {
	var b strings.Builder
	upper := true
	for _, r := range collection {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "Record"
	}
	return b.String()
}

func addCollectionPaths(doc *openapi3.T, base string, s model.Schema, name string) {
	items := base + "/" + s.Name + "/items"
	item := items + "/{id}"
	record := componentRef(doc, name)
	page := componentRef(doc, name+"Page")
	apiErr := componentRef(doc, "Error")
	tag := firstNonEmpty(s.Label, s.Name)

	list := operation(tag, "list"+name, "List "+tag)
	for _, p := range listParameters() {
		list.AddParameter(p)
	}
	list.AddResponse(http.StatusOK, jsonResponse("A page of records", page))
	doc.AddOperation(items, http.MethodGet, list)

	create := operation(tag, "create"+name, "Create a record")
	create.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(record)}
	create.AddResponse(http.StatusCreated, jsonResponse("The created record", record))
	create.AddResponse(http.StatusBadRequest, jsonResponse("Validation failed", apiErr))
	doc.AddOperation(items, http.MethodPost, create)

	deleteBy := operation(tag, "deleteBy"+name, "Delete every record whose field equals value")
	deleteBy.AddParameter(openapi3.NewQueryParameter("field").WithRequired(true).WithSchema(openapi3.NewStringSchema()))
	deleteBy.AddParameter(openapi3.NewQueryParameter("value").WithRequired(true).WithSchema(openapi3.NewStringSchema()))
	deleteBy.AddResponse(http.StatusOK, jsonResponse("Number of deleted records", openapi3.NewSchemaRef("", countSchema())))
	doc.AddOperation(items, http.MethodDelete, deleteBy)

	bulk := operation(tag, "bulk"+name, "Delete or patch several records")
	bulk.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(bulkSchema(record))}
	bulk.AddResponse(http.StatusOK, jsonResponse("Number of affected records", openapi3.NewSchemaRef("", countSchema())))
	doc.AddOperation(items+"/bulk", http.MethodPost, bulk)

	get := operation(tag, "get"+name, "Read a record")
	get.AddParameter(openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema()))
	get.AddResponse(http.StatusOK, jsonResponse("The record", record))
	get.AddResponse(http.StatusNotFound, jsonResponse("Unknown record", apiErr))
	doc.AddOperation(item, http.MethodGet, get)

	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		op := operation(tag, strings.ToLower(method)+name, "Update a record")
		op.AddParameter(openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema()))
		op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(record)}
		op.AddResponse(http.StatusOK, jsonResponse("The updated record", record))
		op.AddResponse(http.StatusNotFound, jsonResponse("Unknown record", apiErr))
		doc.AddOperation(item, method, op)
	}

	del := operation(tag, "delete"+name, "Delete a record")
	del.AddParameter(openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema()))
	del.AddResponse(http.StatusNoContent, openapi3.NewResponse().WithDescription("Deleted"))
	doc.AddOperation(item, http.MethodDelete, del)

	dup := operation(tag, "duplicate"+name, "Copy a record under a new id")
	dup.AddParameter(openapi3.NewPathParameter("id").WithSchema(openapi3.NewStringSchema()))
	dup.AddResponse(http.StatusCreated, jsonResponse("The copy", record))
	doc.AddOperation(item+"/duplicate", http.MethodPost, dup)
}

func operation(tag, id, summary string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.Tags = []string{tag}
	op.OperationID = id
	op.Summary = summary
	return op
}

func listParameters() []*openapi3.Parameter {
	integer := func() *openapi3.Schema { return openapi3.NewIntegerSchema().WithMin(1) }
	return []*openapi3.Parameter{
		openapi3.NewQueryParameter("q").WithDescription("Search tokens, space separated").WithSchema(openapi3.NewStringSchema()),
		openapi3.NewQueryParameter("sort").WithDescription("Sort column key").WithSchema(openapi3.NewStringSchema()),
		openapi3.NewQueryParameter("desc").WithSchema(openapi3.NewBoolSchema()),
		openapi3.NewQueryParameter("page").WithSchema(integer()),
		openapi3.NewQueryParameter("perPage").WithSchema(integer()),
		openapi3.NewQueryParameter("filters").WithDescription("JSON encoded column filters").WithSchema(openapi3.NewStringSchema()),
	}
}

// componentRef points at a registered component. The value travels with the
// reference so the document validates without a resolve pass.
func componentRef(doc *openapi3.T, name string) *openapi3.SchemaRef {
	var value *openapi3.Schema
	if ref := doc.Components.Schemas[name]; ref != nil {
		value = ref.Value
	}
	return openapi3.NewSchemaRef("#/components/schemas/"+name, value)
}

func jsonResponse(description string, schema *openapi3.SchemaRef) *openapi3.Response {
	return openapi3.NewResponse().WithDescription(description).WithJSONSchemaRef(schema)
}

func errorSchema() *openapi3.Schema {
	fields := openapi3.NewObjectSchema().WithAdditionalProperties(openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema()))
	return openapi3.NewObjectSchema().
		WithProperty("code", openapi3.NewStringSchema()).
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("fields", fields).
		WithRequired([]string{"code", "message"})
}

func countSchema() *openapi3.Schema {
	return openapi3.NewObjectSchema().WithProperty("count", openapi3.NewIntegerSchema())
}

func bulkSchema(record *openapi3.SchemaRef) *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("action", openapi3.NewStringSchema().WithEnum("delete", "update", "duplicate")).
		WithProperty("ids", openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())).
		WithPropertyRef("patch", record).
		WithRequired([]string{"action", "ids"})
	return s
}

func pageSchema(record *openapi3.SchemaRef) *openapi3.Schema {
	return openapi3.NewObjectSchema().
		WithPropertyRef("items", openapi3.NewSchemaRef("", &openapi3.Schema{
			Type:  &openapi3.Types{openapi3.TypeArray},
			Items: record,
		})).
		WithProperty("total", openapi3.NewIntegerSchema()).
		WithProperty("page", openapi3.NewIntegerSchema()).
		WithProperty("pages", openapi3.NewIntegerSchema()).
		WithProperty("perPage", openapi3.NewIntegerSchema())
}

// recordSchema derives the record component. The identifier is read-only
// and every descriptor contributes one property.
func recordSchema(s model.Schema) *openapi3.Schema {
	out := objectFor(s.Fields)
	if _, ok := out.Properties[s.IDKey()]; !ok {
		id := openapi3.NewStringSchema()
		id.ReadOnly = true
		out.Properties[s.IDKey()] = openapi3.NewSchemaRef("", id)
	}
	if s.Label != "" {
		out.Title = s.Label
	}
	return out
}

func objectFor(fields []model.Field) *openapi3.Schema {
	out := openapi3.NewObjectSchema()
	var required []string
	for _, f := range fields {
		if !f.Actionable() {
			continue
		}
		out.Properties[f.Key] = openapi3.NewSchemaRef("", propertyFor(f))
		if f.Required {
			required = append(required, f.Key)
		}
	}
	if len(required) > 0 {
		out.Required = required
	}
	return out
}

func propertyFor(f model.Field) *openapi3.Schema {
	var s *openapi3.Schema
	switch f.Type {
	case model.FieldTypeNumber, model.FieldTypeSlider:
		s = openapi3.NewFloat64Schema()
		cfg := f.Number
		if f.Type == model.FieldTypeSlider {
			cfg = f.Slider
		}
		if cfg != nil {
			s.Min, s.Max = cfg.Min, cfg.Max
		}
	case model.FieldTypeSwitch, model.FieldTypeCheckbox:
		s = openapi3.NewBoolSchema()
	case model.FieldTypeDate:
		s = openapi3.NewStringSchema().WithFormat("date")
	case model.FieldTypeMultiSelect, model.FieldTypeChips:
		s = openapi3.NewArraySchema().WithItems(enumSchema(f))
	case model.FieldTypeSelect, model.FieldTypeSegmented:
		s = enumSchema(f)
	case model.FieldTypeItemsForm:
		s = openapi3.NewArraySchema().WithItems(objectFor(f.Nested))
	case model.FieldTypeCheckForm:
		s = openapi3.NewObjectSchema()
		if f.Check != nil {
			for _, option := range f.Check.Options {
				s.Properties[option] = openapi3.NewSchemaRef("", objectFor(f.Nested))
			}
		}
	default:
		s = openapi3.NewStringSchema()
		if f.Widget == "json" {
			s = openapi3.NewObjectSchema()
		}
	}
	s.Title = f.Label
	s.Description = f.Description
	for _, r := range f.Validations {
		applyRule(s, r)
	}
	return s
}

// enumSchema lists scalar options as an enum. Object options are projected
// through OptionValue when set.
func enumSchema(f model.Field) *openapi3.Schema {
	s := openapi3.NewStringSchema()
	var values []any
	for _, option := range f.Options {
		switch v := option.(type) {
		case string:
			values = append(values, v)
		case map[string]any:
			if f.OptionValue != "" {
				if str, ok := v[f.OptionValue].(string); ok {
					values = append(values, str)
				}
			}
		}
	}
	if len(values) > 0 && len(values) == len(f.Options) {
		s.Enum = values
	}
	return s
}

func applyRule(s *openapi3.Schema, r model.ValidationRule) {
	value, _ := strconv.ParseFloat(r.Params["value"], 64)
	switch r.Kind {
	case model.ValidationRuleMin:
		if s.Type.Is(openapi3.TypeNumber) {
			s.Min = &value
		}
	case model.ValidationRuleMax:
		if s.Type.Is(openapi3.TypeNumber) {
			s.Max = &value
		}
	case model.ValidationRuleMinLength:
		if s.Type.Is(openapi3.TypeString) {
			s.MinLength = uint64(value)
		}
	case model.ValidationRuleMaxLength:
		if s.Type.Is(openapi3.TypeString) {
			n := uint64(value)
			s.MaxLength = &n
		}
	case model.ValidationRulePattern:
		if s.Type.Is(openapi3.TypeString) {
			s.Pattern = r.Params["pattern"]
		}
	case model.ValidationRuleEmail:
		if s.Type.Is(openapi3.TypeString) {
			s.Format = "email"
		}
	case model.ValidationRuleURL:
		if s.Type.Is(openapi3.TypeString) {
			s.Format = "uri"
		}
	}
}
