package media

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-crudkit/pkg/model"
	"github.com/goliatone/go-crudkit/pkg/query"
)

// Mode is the manager presentation.
type Mode string

const (
	// ModeGallery browses and edits uploads.
	ModeGallery Mode = "gallery"
	// ModeSelect picks uploads for a caller.
	ModeSelect Mode = "select"
	// ModeInput shows a field's bound uploads and opens a select modal.
	ModeInput Mode = "input"
)

// Unlimited lifts the selection cap of a multiple manager.
const Unlimited = -1

// DefaultResetDelay lets the modal close animation finish before the
// selection is cleared.
const DefaultResetDelay = 300 * time.Millisecond

// DefaultPerPage is the gallery page size.
const DefaultPerPage = 24

// SelectionLimitError is returned when a pick would exceed the cap.
type SelectionLimitError struct {
	Max int
}

func (e *SelectionLimitError) Error() string {
	return fmt.Sprintf("you can select %d items maximum", e.Max)
}

// Manager holds the state of one media manager instance.
type Manager struct {
	mu         sync.Mutex
	mode       Mode
	multiple   int
	binding    Binding
	resetDelay time.Duration
	perPage    int

	open      bool
	selection []Upload
	request   query.Request
	types     []string
	timer     *time.Timer
	gen       uint64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMultiple sets the selection cap: 0 or 1 select a single upload, n > 1
// caps at n and Unlimited lifts the cap.
func WithMultiple(n int) ManagerOption {
	return func(m *Manager) { m.multiple = n }
}

// WithBinding sets how the selection becomes a field value.
func WithBinding(b Binding) ManagerOption {
	return func(m *Manager) { m.binding = b }
}

// WithResetDelay overrides DefaultResetDelay. Zero resets synchronously.
func WithResetDelay(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d >= 0 {
			m.resetDelay = d
		}
	}
}

// WithPerPage sets the page size.
func WithPerPage(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.perPage = n
		}
	}
}

// NewManager returns a manager in mode (gallery when empty).
func NewManager(mode Mode, opts ...ManagerOption) *Manager {
	if mode == "" {
		mode = ModeGallery
	}
	m := &Manager{mode: mode, resetDelay: DefaultResetDelay, perPage: DefaultPerPage}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	m.binding.Multiple = m.Multiple()
	m.request = m.defaultRequest()
	return m
}

func (m *Manager) defaultRequest() query.Request {
	return query.Request{SortKey: "timeCreated", SortDesc: true, Page: 1, PerPage: m.perPage}
}

// Mode returns the configured mode.
func (m *Manager) Mode() Mode { return m.mode }

// Multiple reports whether more than one upload can be selected.
func (m *Manager) Multiple() bool {
	return m.multiple == Unlimited || m.multiple > 1
}

// Max returns the selection cap, 1 for single managers and 0 when unlimited.
func (m *Manager) Max() int {
	switch {
	case m.multiple == Unlimited:
		return 0
	case m.multiple > 1:
		return m.multiple
	}
	return 1
}

// Binding returns the value binding.
func (m *Manager) Binding() Binding { return m.binding }

// IsOpen reports whether the input-mode modal is shown.
func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Pick toggles item in the selection. Single managers replace the selection;
// capped managers refuse to grow beyond the cap.
func (m *Manager) Pick(item Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sel := range m.selection {
		if sel.ID == item.ID {
			m.selection = append(m.selection[:i:i], m.selection[i+1:]...)
			return nil
		}
	}
	if !m.Multiple() {
		m.selection = []Upload{item}
		return nil
	}
	if m.multiple > 1 && len(m.selection) >= m.multiple {
		return &SelectionLimitError{Max: m.multiple}
	}
	m.selection = append(m.selection, item)
	return nil
}

// ClickResult tells the caller what a click did.
type ClickResult int

const (
	// ClickToggled changed the selection.
	ClickToggled ClickResult = iota
	// ClickOpenDetails asks the caller to open the metadata form.
	ClickOpenDetails
)

// Click handles a click on a tile. A ctrl-click, a click in select mode or a
// click while a value is bound toggles; any other click opens the details.
func (m *Manager) Click(item Upload, ctrl, hasValue bool) (ClickResult, error) {
	if ctrl || hasValue || m.activeMode() == ModeSelect {
		return ClickToggled, m.Pick(item)
	}
	return ClickOpenDetails, nil
}

func (m *Manager) activeMode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == ModeInput && m.open {
		return ModeSelect
	}
	return m.mode
}

// IsSelected reports whether id is part of the selection.
func (m *Manager) IsSelected(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sel := range m.selection {
		if sel.ID == id {
			return true
		}
	}
	return false
}

// Selection returns a copy of the selected uploads in pick order.
func (m *Manager) Selection() []Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Upload(nil), m.selection...)
}

// Clear empties the selection.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.selection = nil
	m.mu.Unlock()
}

// Displayed resolves a bound field value for input mode.
func (m *Manager) Displayed(value any, uploads []Upload) []Upload {
	return m.binding.Resolve(value, uploads)
}

// Open shows the select modal seeded with the uploads behind value. A
// pending reset from a previous Close is cancelled.
func (m *Manager) Open(value any, uploads []Upload) {
	seed := m.binding.Resolve(value, uploads)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimer()
	m.open = true
	m.selection = seed
}

// Close hides the modal and resets selection and query after the reset
// delay.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	m.stopTimer()
	if m.resetDelay == 0 {
		m.reset()
		return
	}
	m.gen++
	gen := m.gen
	m.timer = time.AfterFunc(m.resetDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen == m.gen && !m.open {
			m.reset()
		}
	})
}

func (m *Manager) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
}

func (m *Manager) reset() {
	m.selection = nil
	m.types = nil
	m.request = m.defaultRequest()
}

// Confirm binds the selection into a field value and closes the modal.
// Multiple managers yield a list, single managers the first upload or nil.
func (m *Manager) Confirm() any {
	value := m.binding.Bind(m.Selection())
	m.Close()
	return value
}

// Unselect clears a bound value.
func (m *Manager) Unselect() any {
	m.Clear()
	return m.binding.Bind(nil)
}

// Request returns the gallery query state.
func (m *Manager) Request() query.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.request
}

// SetRequest replaces the gallery query state. Sort defaults to newest first.
func (m *Manager) SetRequest(req query.Request) {
	if req.SortKey == "" {
		req.SortKey, req.SortDesc = "timeCreated", true
	}
	if req.PerPage <= 0 {
		req.PerPage = m.perPage
	}
	m.mu.Lock()
	m.request = req
	m.mu.Unlock()
}

// RestrictTypes keeps only uploads whose major or full content type is one
// of types. Empty types lifts the restriction.
func (m *Manager) RestrictTypes(types ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types = append([]string(nil), types...)
	m.request.Page = 1
}

// Types returns the active content-type chips.
func (m *Manager) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.types...)
}

// Page is one gallery page.
type Page struct {
	Items []Upload `json:"items"`
	Total int      `json:"total"`
	Page  int      `json:"page"`
	Pages int      `json:"pages"`
}

// Visible runs the gallery query over uploads.
func (m *Manager) Visible(uploads []Upload) Page {
	m.mu.Lock()
	req := m.request
	types := append([]string(nil), m.types...)
	m.mu.Unlock()

	if len(types) > 0 {
		groups := make([][]query.Condition, 0, len(types))
		for _, t := range types {
			groups = append(groups, []query.Condition{{Operator: query.OpEquals, Value: t}})
		}
		filters := query.Filters{}
		for k, v := range req.Filters {
			filters[k] = v
		}
		filters["contentType"] = groups
		req.Filters = filters
	}

	recs := make([]model.Record, 0, len(uploads))
	for _, u := range uploads {
		rec := u.Record()
		rec["id"] = u.ID
		recs = append(recs, rec)
	}
	res := query.Apply(recs, UploadFields(), req)
	return Page{Items: FromRecords(res.Items), Total: res.Total, Page: res.Page, Pages: res.Pages}
}

// UploadFields describes uploads for the gallery table and its filters.
func UploadFields() []model.Field {
	return []model.Field{
		{Key: "name", Label: "Name", Type: model.FieldTypeText},
		{
			Key: "contentType", Label: "Type", Type: model.FieldTypeText,
			AsStrings: func(r model.Record) []string {
				ct := model.Stringify(r["contentType"])
				return []string{GetStringPart(ct, 0, "/"), ct}
			},
		},
		{
			Key: "size", Label: "Size", Type: model.FieldTypeNumber, NoFilter: true,
			Value: func(r model.Record) any {
				return HumanFileSize(FromRecord(r).Size, false, 1)
			},
			// zero padded so ordering is numeric
			AsString: func(r model.Record) string {
				return fmt.Sprintf("%020d", FromRecord(r).Size)
			},
		},
		{
			Key: "timeCreated", Label: "Created", Type: model.FieldTypeDate, NoFilter: true,
			Value: func(r model.Record) any {
				t := FromRecord(r).TimeCreated
				if t.IsZero() {
					return ""
				}
				return t.Format("02.01.2006")
			},
			AsString: func(r model.Record) string {
				t := FromRecord(r).TimeCreated
				if t.IsZero() {
					return ""
				}
				return t.UTC().Format(timeLayout)
			},
		},
		{Key: "url", Label: "URL", Type: model.FieldTypeText, NoFilter: true, NoSort: true},
	}
}

// ContentTypes lists the chips offered for uploads: every major type
// followed by every full type, each sorted.
func ContentTypes(uploads []Upload) []string {
	majors := map[string]struct{}{}
	full := map[string]struct{}{}
	for _, u := range uploads {
		if u.ContentType == "" {
			continue
		}
		majors[GetStringPart(u.ContentType, 0, "/")] = struct{}{}
		full[u.ContentType] = struct{}{}
	}
	return append(sortedKeys(majors), sortedKeys(full)...)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
