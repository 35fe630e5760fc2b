package query

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// Request is the user-supplied query/filter/sort/page state.
type Request struct {
	Query    string  `json:"q,omitempty"`
	Filters  Filters `json:"filters,omitempty"`
	SortKey  string  `json:"sort,omitempty"`
	SortDesc bool    `json:"desc,omitempty"`
	Page     int     `json:"page,omitempty"`
	PerPage  int     `json:"perPage,omitempty"`
}

// Result is the visible slice plus the totals needed for pagination chrome.
type Result struct {
	Items []model.Record `json:"items"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Pages int            `json:"pages"`
}

// Apply runs the query filter, structured filters, sort and pagination in
// that order.
func Apply(records []model.Record, fields []model.Field, req Request) Result {
	filtered := Filter(records, fields, req)
	sorted := Sort(filtered, fields, req.SortKey, req.SortDesc)

	return Result{
		Items: Paginate(sorted, req.Page, req.PerPage),
		Total: len(sorted),
		Page:  req.Page,
		Pages: PageCount(len(sorted), req.PerPage),
	}
}

// Filter runs only the two filtering stages.
func Filter(records []model.Record, fields []model.Field, req Request) []model.Record {
	matched := FilterByQuery(records, fields, req.Query)
	return FilterByFilters(matched, fields, req.Filters)
}

// ParseRequest reads q, sort, desc, page, perPage and filters (JSON) from URL
// values. Malformed numbers fall back to defaults; malformed filters are an
// error.
func ParseRequest(values url.Values, defaultPerPage int) (Request, error) {
	req := Request{
		Query:   values.Get("q"),
		SortKey: strings.TrimSpace(values.Get("sort")),
		Page:    1,
		PerPage: defaultPerPage,
	}
	if desc, err := strconv.ParseBool(values.Get("desc")); err == nil {
		req.SortDesc = desc
	}
	if page, err := strconv.Atoi(values.Get("page")); err == nil && page > 0 {
		req.Page = page
	}
	if perPage, err := strconv.Atoi(values.Get("perPage")); err == nil && perPage >= 0 {
		req.PerPage = perPage
	}
	filters, err := ParseFilters(values.Get("filters"))
	if err != nil {
		return Request{}, err
	}
	req.Filters = filters
	return req, nil
}

// Values is the inverse of ParseRequest. Zero fields are omitted.
func (r Request) Values() url.Values {
	values := url.Values{}
	if r.Query != "" {
		values.Set("q", r.Query)
	}
	if r.SortKey != "" {
		values.Set("sort", r.SortKey)
		if r.SortDesc {
			values.Set("desc", "true")
		}
	}
	if r.Page > 1 {
		values.Set("page", strconv.Itoa(r.Page))
	}
	if r.PerPage > 0 {
		values.Set("perPage", strconv.Itoa(r.PerPage))
	}
	if r.Filters.Active() {
		if raw, err := json.Marshal(r.Filters); err == nil {
			values.Set("filters", string(raw))
		}
	}
	return values
}
