package query

import (
	"sort"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// Sort orders a copy of records by the sort value of the descriptor keyed
// key, comparing plain strings. Equal keys keep their input order. An empty
// key returns the copy unsorted.
func Sort(records []model.Record, fields []model.Field, key string, desc bool) []model.Record {
	out := model.CloneRecords(records)
	if key == "" {
		return out
	}
	field, ok := model.FindField(fields, key)
	if !ok {
		field = model.Field{Key: key}
	}
	acc := model.AccessorFor(field)

	keys := make([]string, len(out))
	for i, record := range out {
		keys[i] = acc.SortValue(record)
	}
	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ka, kb := keys[idx[a]], keys[idx[b]]
		if desc {
			return ka > kb
		}
		return ka < kb
	})

	sorted := make([]model.Record, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

// Paginate returns page (1-based) of perPage records as a new slice. A
// non-positive page or perPage returns every record.
func Paginate(records []model.Record, page, perPage int) []model.Record {
	if page <= 0 || perPage <= 0 {
		return append([]model.Record(nil), records...)
	}
	start := (page - 1) * perPage
	if start >= len(records) {
		return []model.Record{}
	}
	end := start + perPage
	if end > len(records) {
		end = len(records)
	}
	return append([]model.Record(nil), records[start:end]...)
}

// PageCount returns how many pages of perPage cover total items.
func PageCount(total, perPage int) int {
	if perPage <= 0 {
		if total == 0 {
			return 0
		}
		return 1
	}
	return (total + perPage - 1) / perPage
}
