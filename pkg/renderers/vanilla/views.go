package vanilla

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-crudkit/pkg/media"
	"github.com/goliatone/go-crudkit/pkg/query"
	"github.com/goliatone/go-crudkit/pkg/render"
	"github.com/goliatone/go-crudkit/pkg/table"
)

type translateFunc = func(key string, args ...any) string

type tableChrome struct {
	Action        string               `json:"action"`
	BulkAction    string               `json:"bulkAction"`
	NewURL        string               `json:"newUrl"`
	ExportURL     string               `json:"exportUrl"`
	ImportURL     string               `json:"importUrl"`
	Query         string               `json:"query"`
	Hidden        []render.HiddenField `json:"hidden,omitempty"`
	Headers       []headerChrome       `json:"headers"`
	Rows          []rowChrome          `json:"rows"`
	Summary       string               `json:"summary"`
	Total         string               `json:"total"`
	Selected      string               `json:"selected,omitempty"`
	Prev          string               `json:"prev,omitempty"`
	Next          string               `json:"next,omitempty"`
	ClearFilters  string               `json:"clearFilters,omitempty"`
	AllSelected   bool                 `json:"allSelected"`
	MultiEditable bool                 `json:"multiEditable"`
}

type headerChrome struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Sortable    bool   `json:"sortable"`
	SortURL     string `json:"sortUrl,omitempty"`
	Sorted      string `json:"sorted,omitempty"`
	FilterCount int    `json:"filterCount,omitempty"`
	Width       string `json:"width,omitempty"`
}

type rowChrome struct {
	Key          string       `json:"key"`
	ID           string       `json:"id"`
	Selected     bool         `json:"selected"`
	EditURL      string       `json:"editUrl,omitempty"`
	DuplicateURL string       `json:"duplicateUrl,omitempty"`
	Cells        []table.Cell `json:"cells"`
}

// buildTableChrome precomputes the URLs of the table controls: sort links
// toggle direction on the sorted column, page links keep the rest of the
// request, and the search form carries sort and filters as hidden fields.
func buildTableChrome(view *render.TableView, t translateFunc) tableChrome {
	base := view.BaseURL
	req := view.Request

	chrome := tableChrome{
		Action:        base,
		BulkAction:    joinURL(base, "bulk"),
		NewURL:        joinURL(base, "new"),
		ExportURL:     joinURL(base, "export"),
		ImportURL:     joinURL(base, "import"),
		Query:         req.Query,
		Summary:       t("table.page", max(view.Page, 1), max(view.Pages, 1)),
		Total:         t("table.total", view.Total),
		AllSelected:   view.AllSelected,
		MultiEditable: view.UpdateMultiple || len(view.Rows) > 1,
	}
	if n := len(view.Selection); n > 0 {
		chrome.Selected = t("table.selected", n)
	}

	search := req
	search.Query, search.Page = "", 0
	for name, values := range search.Values() {
		chrome.Hidden = append(chrome.Hidden, render.Hidden(name, values[0]))
	}
	chrome.Hidden = render.MergeHiddenFields(chrome.Hidden...)

	for _, h := range view.Headers {
		header := headerChrome{
			Key:         h.Key,
			Label:       h.Label,
			Sortable:    h.Sortable,
			Sorted:      h.Sorted,
			FilterCount: h.FilterCount,
			Width:       h.Width,
		}
		if h.Sortable {
			next := req
			next.Page = 1
			next.SortKey = h.Key
			next.SortDesc = h.Sorted == table.SortAsc
			header.SortURL = withQuery(base, next.Values())
		}
		chrome.Headers = append(chrome.Headers, header)
	}

	for _, row := range view.Rows {
		rc := rowChrome{Key: row.Key, ID: row.ID, Selected: row.Selected, Cells: row.Cells}
		if row.ID != "" {
			rc.EditURL = joinURL(base, row.ID, "edit")
			rc.DuplicateURL = joinURL(base, row.ID, "duplicate")
		}
		chrome.Rows = append(chrome.Rows, rc)
	}

	if view.Page > 1 {
		chrome.Prev = withQuery(base, pageRequest(req, view.Page-1).Values())
	}
	if view.Page < view.Pages {
		chrome.Next = withQuery(base, pageRequest(req, view.Page+1).Values())
	}
	if req.Filters.Active() || req.Query != "" {
		cleared := req
		cleared.Filters, cleared.Query, cleared.Page = nil, "", 1
		chrome.ClearFilters = withQuery(base, cleared.Values())
	}
	return chrome
}

func pageRequest(req query.Request, page int) query.Request {
	req.Page = page
	return req
}

type mediaChrome struct {
	Mode     string      `json:"mode"`
	Action   string      `json:"action"`
	Upload   string      `json:"upload"`
	Query    string      `json:"query"`
	Items    []mediaItem `json:"items"`
	Types    []typeChip  `json:"types,omitempty"`
	Summary  string      `json:"summary"`
	Prev     string      `json:"prev,omitempty"`
	Next     string      `json:"next,omitempty"`
	Limit    string      `json:"limit,omitempty"`
	Multiple bool        `json:"multiple"`
}

type mediaItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        string `json:"size"`
	Created     string `json:"created"`
	Image       bool   `json:"image"`
	Public      bool   `json:"public"`
	Selected    bool   `json:"selected"`
}

type typeChip struct {
	Value  string `json:"value"`
	Active bool   `json:"active"`
	URL    string `json:"url"`
}

func buildMediaChrome(view *render.MediaView, base string, t translateFunc) mediaChrome {
	if base == "" {
		base = "/uploads"
	}
	chrome := mediaChrome{
		Mode:     string(view.Mode),
		Action:   base,
		Upload:   joinURL(base),
		Query:    view.Query,
		Summary:  t("table.page", max(view.Page.Page, 1), max(view.Pages, 1)),
		Multiple: view.Max != 1,
	}
	if view.Max > 0 {
		chrome.Limit = t("media.limit", view.Max)
	}

	selected := make(map[string]struct{}, len(view.Selection))
	for _, id := range view.Selection {
		selected[id] = struct{}{}
	}
	for _, u := range view.Items {
		_, on := selected[u.ID]
		chrome.Items = append(chrome.Items, mediaItem{
			ID:          u.ID,
			Name:        u.Name,
			URL:         u.URL,
			ContentType: u.ContentType,
			Size:        media.HumanFileSize(u.Size, true, 1),
			Created:     u.TimeCreated.Format(time.DateTime),
			Image:       strings.HasPrefix(u.ContentType, "image/"),
			Public:      u.IsPublic,
			Selected:    on,
		})
	}

	active := make(map[string]struct{}, len(view.Active))
	for _, v := range view.Active {
		active[v] = struct{}{}
	}
	for _, v := range view.Types {
		_, on := active[v]
		values := mediaValues(view, view.Page.Page)
		values.Del("type")
		for _, other := range view.Active {
			if other != v {
				values.Add("type", other)
			}
		}
		if !on {
			values.Add("type", v)
		}
		values.Del("page")
		chrome.Types = append(chrome.Types, typeChip{Value: v, Active: on, URL: withQuery(base, values)})
	}

	if view.Page.Page > 1 {
		chrome.Prev = withQuery(base, mediaValues(view, view.Page.Page-1))
	}
	if view.Page.Page < view.Pages {
		chrome.Next = withQuery(base, mediaValues(view, view.Page.Page+1))
	}
	return chrome
}

func mediaValues(view *render.MediaView, page int) url.Values {
	values := url.Values{}
	if view.Query != "" {
		values.Set("q", view.Query)
	}
	for _, v := range view.Active {
		values.Add("type", v)
	}
	if view.Mode != "" && view.Mode != media.ModeGallery {
		values.Set("mode", string(view.Mode))
	}
	if page > 1 {
		values.Set("page", strconv.Itoa(page))
	}
	return values
}
