package model

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownType  = errors.New("model: unknown field type")
	ErrPayloadKind  = errors.New("model: payload does not match field type")
	ErrMissingKey   = errors.New("model: composite field requires a key")
	ErrDuplicateKey = errors.New("model: duplicate field key")
)

// Validate checks the tagged-union invariants of the descriptor: the type
// belongs to the closed set, each kind payload appears only on its kind and
// composite kinds (itemsform, checkform) are keyed.
func (f Field) Validate() error {
	if f.Type != "" && !f.Type.Known() {
		return fmt.Errorf("%w %q (field %q)", ErrUnknownType, f.Type, f.Key)
	}
	kind := f.Type
	if kind == "" {
		kind = FieldTypeText
	}

	payloads := []struct {
		set   bool
		owner FieldType
		name  string
	}{
		{f.Number != nil, FieldTypeNumber, "number"},
		{f.Slider != nil, FieldTypeSlider, "slider"},
		{f.Items != nil, FieldTypeItemsForm, "items"},
		{f.Check != nil, FieldTypeCheckForm, "check"},
		{f.Date != nil, FieldTypeDate, "date"},
	}
	for _, p := range payloads {
		if p.set && p.owner != kind {
			return fmt.Errorf("%w: %s payload on %s field %q", ErrPayloadKind, p.name, kind, f.Key)
		}
	}

	switch kind {
	case FieldTypeItemsForm, FieldTypeCheckForm:
		if f.Key == "" {
			return fmt.Errorf("%w (%s)", ErrMissingKey, kind)
		}
	default:
		if len(f.Nested) > 0 {
			return fmt.Errorf("%w: nested fields on %s field %q", ErrPayloadKind, kind, f.Key)
		}
	}
	if kind == FieldTypeCheckForm && (f.Check == nil || len(f.Check.Options) == 0) {
		return fmt.Errorf("%w: checkform %q has no options", ErrPayloadKind, f.Key)
	}
	return ValidateFields(f.Nested)
}

// ValidateFields validates every descriptor and rejects duplicate keys at the
// same level.
func ValidateFields(fields []Field) error {
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if err := field.Validate(); err != nil {
			return err
		}
		if field.Key == "" {
			continue
		}
		if _, dup := seen[field.Key]; dup {
			return fmt.Errorf("%w %q", ErrDuplicateKey, field.Key)
		}
		seen[field.Key] = struct{}{}
	}
	return nil
}

// Validate checks every descriptor of the schema.
func (s Schema) Validate() error {
	if s.Name == "" {
		return errors.New("model: schema name is required")
	}
	if err := ValidateFields(s.Fields); err != nil {
		return fmt.Errorf("model: schema %q: %w", s.Name, err)
	}
	return nil
}
