package form

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// AddItem appends a new entry to the itemsform at path: the field defaults
// plus a generated uid. The whole array is replaced. The new entry is
// returned.
func (f *Form) AddItem(path string) (model.Record, error) {
	field, ok := fieldAt(f.fields, path)
	if !ok || field.Type != model.FieldTypeItemsForm {
		return nil, fmt.Errorf("%w: %q is not an itemsform", ErrPath, path)
	}

	entry := model.Record{}
	if field.Items != nil {
		for k, v := range field.Items.Defaults {
			entry[k] = model.CloneValue(v)
		}
	}
	entry[ItemUIDKey] = f.cfg.newID()

	f.mu.Lock()
	defer f.mu.Unlock()

	items := asItems(model.Lookup(f.values, path))
	items = append(items, entry)
	if err := setPath(f.values, path, items); err != nil {
		return nil, err
	}
	return model.CloneRecord(entry), nil
}

// RemoveItem splices index out of the itemsform at path, replacing the whole
// array.
func (f *Form) RemoveItem(path string, index int) error {
	field, ok := fieldAt(f.fields, path)
	if !ok || field.Type != model.FieldTypeItemsForm {
		return fmt.Errorf("%w: %q is not an itemsform", ErrPath, path)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	items := asItems(model.Lookup(f.values, path))
	if index < 0 || index >= len(items) {
		return fmt.Errorf("%w: %q has no item %d", ErrPath, path, index)
	}
	next := make([]any, 0, len(items)-1)
	next = append(next, items[:index]...)
	next = append(next, items[index+1:]...)
	if err := setPath(f.values, path, next); err != nil {
		return err
	}
	f.dropErrorsUnder(path + "." + strconv.Itoa(index))
	return nil
}

func (f *Form) dropErrorsUnder(prefix string) {
	for key := range f.errors {
		if key == prefix || strings.HasPrefix(key, prefix+".") {
			delete(f.errors, key)
		}
	}
}

// ItemKey returns the render identity of an itemsform entry: its uid, then
// the computed label, then the LabelKey value, then a random id. Entries
// without uid and label have no stable identity.
func ItemKey(field model.Field, item model.Record) string {
	if uid := model.Stringify(item[ItemUIDKey]); uid != "" {
		return uid
	}
	if field.Items != nil {
		if field.Items.Label != nil {
			if label := field.Items.Label(item); label != "" {
				return label
			}
		}
		if field.Items.LabelKey != "" {
			if label := model.Stringify(model.Lookup(item, field.Items.LabelKey)); label != "" {
				return label
			}
		}
	}
	return uuid.NewString()
}

// ItemLabel is the panel title of an itemsform entry.
func ItemLabel(field model.Field, item model.Record, index int) string {
	if field.Items != nil {
		if field.Items.Label != nil {
			if label := field.Items.Label(item); label != "" {
				return label
			}
		}
		if field.Items.LabelKey != "" {
			if label := model.Stringify(model.Lookup(item, field.Items.LabelKey)); label != "" {
				return label
			}
		}
	}
	return "#" + strconv.Itoa(index+1)
}

// LayoutOf returns the itemsform layout, defaulting to cards.
func LayoutOf(field model.Field) model.Layout {
	if field.Items == nil || field.Items.Layout == "" {
		return model.LayoutCards
	}
	return field.Items.Layout
}
