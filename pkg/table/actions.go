package table

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// ImportError reports pasted JSON that could not be used. It never changes
// table state.
type ImportError struct {
	Err error
}

func (e *ImportError) Error() string {
	return "table: import: " + e.Err.Error()
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Duplicate creates a copy of record without its item id.
func (t *Table) Duplicate(ctx context.Context, record model.Record) error {
	if t.callbacks.OnCreate == nil {
		return ErrNoCallback
	}
	return t.callbacks.OnCreate(ctx, t.withoutID(record))
}

// DuplicateSelected duplicates every selected record.
func (t *Table) DuplicateSelected(ctx context.Context, records []model.Record) error {
	var errs []error
	for _, record := range t.Selected(records) {
		if err := t.Duplicate(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Export serialises record as indented JSON for the clipboard.
func (t *Table) Export(record model.Record) (string, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("table: export: %w", err)
	}
	return string(data), nil
}

// ImportInto merges a pasted JSON object into the edited record. The pasted
// item id is dropped so the edited record keeps its identity.
func (t *Table) ImportInto(record model.Record, raw string) (model.Record, error) {
	var payload map[string]any
	if err := decodeStrict(raw, &payload); err != nil {
		return nil, &ImportError{Err: err}
	}
	if payload == nil {
		return nil, &ImportError{Err: errors.New("expected a JSON object")}
	}
	merged := model.CloneRecord(record)
	if merged == nil {
		merged = model.Record{}
	}
	for k, v := range t.withoutID(payload) {
		merged[k] = v
	}
	return merged, nil
}

// BulkImport accepts a JSON object or array and calls create once per
// element. It returns how many creates succeeded.
func (t *Table) BulkImport(ctx context.Context, raw string) (int, error) {
	items, err := ParseImport(raw)
	if err != nil {
		return 0, err
	}
	if t.callbacks.OnCreate == nil {
		return 0, ErrNoCallback
	}
	created := 0
	var errs []error
	for _, item := range items {
		if err := t.callbacks.OnCreate(ctx, item); err != nil {
			errs = append(errs, err)
			continue
		}
		created++
	}
	return created, errors.Join(errs...)
}

// ParseImport decodes pasted JSON into records. Arrays must hold objects.
func ParseImport(raw string) ([]model.Record, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 {
		return nil, &ImportError{Err: errors.New("empty payload")}
	}
	if trimmed[0] == '[' {
		var items []model.Record
		if err := decodeStrict(string(trimmed), &items); err != nil {
			return nil, &ImportError{Err: err}
		}
		for i, item := range items {
			if item == nil {
				return nil, &ImportError{Err: fmt.Errorf("element %d is not an object", i)}
			}
		}
		return items, nil
	}
	var item model.Record
	if err := decodeStrict(string(trimmed), &item); err != nil {
		return nil, &ImportError{Err: err}
	}
	if item == nil {
		return nil, &ImportError{Err: errors.New("expected a JSON object or array")}
	}
	return []model.Record{item}, nil
}

func decodeStrict(raw string, target any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(target); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

func (t *Table) withoutID(record model.Record) model.Record {
	out := model.CloneRecord(record)
	delete(out, t.schema.IDKey())
	return out
}

// RowKey returns the render identity of a row: the item id, then the first
// scalar value in key order, then a random id. Rows resolved by the last
// fallback have no stable identity.
func (t *Table) RowKey(record model.Record) string {
	if id := t.ItemID(record); id != "" {
		return id
	}
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := record[k].(type) {
		case string, float64, bool, int, int64:
			if s := model.Stringify(v); s != "" {
				return s
			}
		}
	}
	return uuid.NewString()
}
