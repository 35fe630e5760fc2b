package table

import (
	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/query"
)

// Sort directions reported on headers.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Header is one column header.
type Header struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Sortable    bool   `json:"sortable"`
	Filterable  bool   `json:"filterable"`
	Sorted      string `json:"sorted,omitempty"`
	FilterCount int    `json:"filterCount,omitempty"`
	Width       string `json:"width,omitempty"`
}

// Cell is a rendered value.
type Cell struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Row is one visible record.
type Row struct {
	Key      string       `json:"key"`
	ID       string       `json:"id,omitempty"`
	Selected bool         `json:"selected"`
	Cells    []Cell       `json:"cells"`
	Record   model.Record `json:"record"`
}

// View is everything a renderer needs to draw the table.
type View struct {
	Name           string        `json:"name"`
	Headers        []Header      `json:"headers"`
	Rows           []Row         `json:"rows"`
	Request        query.Request `json:"request"`
	Page           int           `json:"page"`
	Pages          int           `json:"pages"`
	Total          int           `json:"total"`
	Selection      []string      `json:"selection"`
	AllSelected    bool          `json:"allSelected"`
	UpdateMultiple bool          `json:"updateMultiple"`
}

// View runs the engine with the current request over records and builds the
// view model.
func (t *Table) View(records []model.Record) View {
	req := t.Request()
	result := query.Apply(records, t.schema.Fields, req)

	view := View{
		Name:           t.schema.Name,
		Request:        req,
		Page:           req.Page,
		Pages:          result.Pages,
		Total:          result.Total,
		Selection:      t.Selection(),
		UpdateMultiple: t.UpdateMultiple(),
	}

	for _, field := range t.schema.Fields {
		if field.Hidden {
			continue
		}
		header := Header{
			Key:         field.Key,
			Label:       field.Title(),
			Sortable:    field.Key != "" && !field.NoSort,
			Filterable:  !field.NoFilter && field.Key != "",
			FilterCount: req.Filters.Count(field.Key),
			Width:       field.Width,
		}
		if field.Key != "" && field.Key == req.SortKey {
			header.Sorted = SortAsc
			if req.SortDesc {
				header.Sorted = SortDesc
			}
		}
		view.Headers = append(view.Headers, header)
	}

	selectedVisible := 0
	for _, record := range result.Items {
		id := t.ItemID(record)
		row := Row{
			Key:      t.RowKey(record),
			ID:       id,
			Selected: id != "" && t.IsSelected(id),
			Record:   record,
		}
		if row.Selected {
			selectedVisible++
		}
		for _, field := range t.schema.Fields {
			if field.Hidden {
				continue
			}
			row.Cells = append(row.Cells, Cell{Key: field.Key, Value: model.DisplayString(field, record)})
		}
		view.Rows = append(view.Rows, row)
	}
	view.AllSelected = len(view.Rows) > 0 && selectedVisible == len(view.Rows)
	return view
}
