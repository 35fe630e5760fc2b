// Package table holds the interactive state of a data table: the selection
// set of item ids, the current query/filter/sort/page request and the row
// and bulk actions (edit, duplicate, export, import, delete). Records are
// passed in on every call; the table never caches them.
package table

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/query"
)

// ErrNoCallback is returned when an action needs a callback that was not
// configured.
var ErrNoCallback = errors.New("table: callback is not configured")

// RecordFunc is a create/update/delete callback.
type RecordFunc func(ctx context.Context, record model.Record) error

// Callbacks connect the table to the collection store.
type Callbacks struct {
	OnCreate RecordFunc
	OnUpdate RecordFunc
	OnDelete RecordFunc
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(t *Table) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithRequest seeds the initial request.
func WithRequest(req query.Request) Option {
	return func(t *Table) { t.request = req }
}

// Table is the state of one rendered table.
type Table struct {
	mu             sync.RWMutex
	schema         model.Schema
	callbacks      Callbacks
	selected       map[string]struct{}
	updateMultiple bool
	request        query.Request
	logger         *zap.SugaredLogger
}

// New creates a table over schema.
func New(schema model.Schema, callbacks Callbacks, opts ...Option) *Table {
	t := &Table{
		schema:    schema,
		callbacks: callbacks,
		selected:  map[string]struct{}{},
		request:   query.Request{Page: 1, PerPage: schema.PerPage},
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Schema returns the table schema.
func (t *Table) Schema() model.Schema {
	return t.schema
}

// ItemID returns the identifier of record as a string, empty when missing.
func (t *Table) ItemID(record model.Record) string {
	return model.Stringify(record[t.schema.IDKey()])
}

// Request returns the current request.
func (t *Table) Request() query.Request {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.request
}

// SetQuery sets the committed search query and returns to page 1.
func (t *Table) SetQuery(q string) {
	t.mu.Lock()
	t.request.Query = q
	t.request.Page = 1
	t.mu.Unlock()
}

// SetPage moves to page.
func (t *Table) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	t.mu.Lock()
	t.request.Page = page
	t.mu.Unlock()
}

// ToggleSort sorts by key ascending, or flips the direction when key is
// already the sort key.
func (t *Table) ToggleSort(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.request.SortKey == key {
		t.request.SortDesc = !t.request.SortDesc
		return
	}
	t.request.SortKey = key
	t.request.SortDesc = false
}

// ApplyColumnMenu writes a column menu into the filters and returns to
// page 1.
func (t *Table) ApplyColumnMenu(menu *query.ColumnMenu) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.request.Filters = menu.Apply(t.request.Filters)
	t.request.Page = 1
}

// ColumnMenu opens the filter menu of key with the current filters loaded.
func (t *Table) ColumnMenu(key string) *query.ColumnMenu {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return query.NewColumnMenu(key, t.request.Filters[key])
}

// Toggle flips the selection of id.
func (t *Table) Toggle(id string) {
	if id == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.selected[id]; ok {
		delete(t.selected, id)
		return
	}
	t.selected[id] = struct{}{}
}

// IsSelected reports whether id is selected.
func (t *Table) IsSelected(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.selected[id]
	return ok
}

// Selection returns the selected ids, sorted.
func (t *Table) Selection() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.selected))
	for id := range t.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ClearSelection empties the selection and leaves update-multiple mode.
func (t *Table) ClearSelection() {
	t.mu.Lock()
	t.selected = map[string]struct{}{}
	t.updateMultiple = false
	t.mu.Unlock()
}

// SelectAll selects the visible rows when nothing is selected or when the
// selection only partially covers them; ctrl unions them with the existing
// selection instead of replacing it. A full selection is cleared.
func (t *Table) SelectAll(visible []model.Record, ctrl bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(visible))
	covered := 0
	for _, record := range visible {
		id := model.Stringify(record[t.schema.IDKey()])
		if id == "" {
			continue
		}
		ids = append(ids, id)
		if _, ok := t.selected[id]; ok {
			covered++
		}
	}

	partial := len(t.selected) > 0 && len(ids) > 0 && covered < len(ids)
	if len(t.selected) == 0 || partial {
		next := map[string]struct{}{}
		if ctrl {
			for id := range t.selected {
				next[id] = struct{}{}
			}
		}
		for _, id := range ids {
			next[id] = struct{}{}
		}
		t.selected = next
		return
	}
	t.selected = map[string]struct{}{}
}

// Selected resolves the selected ids against records, keeping record order.
func (t *Table) Selected(records []model.Record) []model.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []model.Record
	for _, record := range records {
		if _, ok := t.selected[model.Stringify(record[t.schema.IDKey()])]; ok {
			out = append(out, record)
		}
	}
	return out
}

// EditSelected enters update-multiple mode: the next Submit merges its
// values into every selected record.
func (t *Table) EditSelected() {
	t.mu.Lock()
	t.updateMultiple = true
	t.mu.Unlock()
}

// UpdateMultiple reports whether the edit form targets the selection.
func (t *Table) UpdateMultiple() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updateMultiple
}

// Submit routes edit form values: in update-multiple mode they are merged
// into each selected record and updated; values carrying an item id are
// updated; anything else is created.
func (t *Table) Submit(ctx context.Context, values model.Record, records []model.Record) error {
	if t.UpdateMultiple() {
		if t.callbacks.OnUpdate == nil {
			return ErrNoCallback
		}
		var errs []error
		for _, record := range t.Selected(records) {
			merged := model.CloneRecord(record)
			for k, v := range values {
				if k == t.schema.IDKey() {
					continue
				}
				merged[k] = model.CloneValue(v)
			}
			if err := t.callbacks.OnUpdate(ctx, merged); err != nil {
				errs = append(errs, err)
			}
		}
		t.mu.Lock()
		t.updateMultiple = false
		t.mu.Unlock()
		return errors.Join(errs...)
	}

	if t.ItemID(values) != "" {
		if t.callbacks.OnUpdate == nil {
			return ErrNoCallback
		}
		return t.callbacks.OnUpdate(ctx, values)
	}
	if t.callbacks.OnCreate == nil {
		return ErrNoCallback
	}
	return t.callbacks.OnCreate(ctx, values)
}

// Delete removes one record.
func (t *Table) Delete(ctx context.Context, record model.Record) error {
	if t.callbacks.OnDelete == nil {
		return ErrNoCallback
	}
	if err := t.callbacks.OnDelete(ctx, record); err != nil {
		return err
	}
	t.mu.Lock()
	delete(t.selected, t.ItemID(record))
	t.mu.Unlock()
	return nil
}

// DeleteSelected deletes every selected record and clears the selection.
// Individual failures are joined; successful deletes are not rolled back.
func (t *Table) DeleteSelected(ctx context.Context, records []model.Record) error {
	if t.callbacks.OnDelete == nil {
		return ErrNoCallback
	}
	var errs []error
	for _, record := range t.Selected(records) {
		if err := t.callbacks.OnDelete(ctx, record); err != nil {
			t.logger.Warnw("bulk delete failed", "id", t.ItemID(record), "error", err)
			errs = append(errs, err)
		}
	}
	t.ClearSelection()
	return errors.Join(errs...)
}
