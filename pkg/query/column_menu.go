package query

import (
	"errors"
	"sort"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// ErrGroupRange is returned when an advanced edit targets a missing group or
// condition.
var ErrGroupRange = errors.New("query: filter group out of range")

// ColumnMenu holds the filter editing state of one column. Basic mode is a
// list of values, each its own OR branch of a single "==" condition.
// Advanced mode edits arbitrary OR groups of AND conditions. The emitted
// filters are always basic ++ advanced.
type ColumnMenu struct {
	Key      string
	Advanced bool

	basic  []string
	groups [][]Condition
}

// NewColumnMenu loads the current groups of a column, splitting single "=="
// branches into basic values and keeping the rest as advanced groups.
func NewColumnMenu(key string, current [][]Condition) *ColumnMenu {
	menu := &ColumnMenu{Key: key}
	for _, group := range current {
		if value, ok := basicValue(group); ok {
			menu.basic = append(menu.basic, value)
			continue
		}
		menu.groups = append(menu.groups, cloneGroup(group))
	}
	menu.Advanced = len(menu.groups) > 0
	return menu
}

func basicValue(group []Condition) (string, bool) {
	if len(group) != 1 || group[0].Operator != OpEquals {
		return "", false
	}
	return group[0].Value, true
}

// Basic returns the selected basic values.
func (m *ColumnMenu) Basic() []string {
	return append([]string(nil), m.basic...)
}

// Groups returns a copy of the advanced groups.
func (m *ColumnMenu) Groups() [][]Condition {
	out := make([][]Condition, len(m.groups))
	for i, g := range m.groups {
		out[i] = cloneGroup(g)
	}
	return out
}

// SetBasic replaces the basic values (chosen or created in the multi-select).
func (m *ColumnMenu) SetBasic(values []string) {
	m.basic = m.basic[:0]
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		m.basic = append(m.basic, v)
	}
}

// SetAdvanced switches mode. Moving to basic keeps only the advanced groups
// basic mode can express; moving to advanced keeps the basic values as
// groups.
func (m *ColumnMenu) SetAdvanced(advanced bool) {
	if advanced == m.Advanced {
		return
	}
	m.Advanced = advanced
	if advanced {
		return
	}
	for _, group := range m.groups {
		if value, ok := basicValue(group); ok {
			m.basic = append(m.basic, value)
		}
	}
	m.groups = nil
}

// AddOr appends a new OR group holding one empty "==" condition and returns
// its index.
func (m *ColumnMenu) AddOr() int {
	m.groups = append(m.groups, []Condition{{Operator: OpEquals}})
	return len(m.groups) - 1
}

// AddAnd appends an empty "==" condition to group.
func (m *ColumnMenu) AddAnd(group int) error {
	if group < 0 || group >= len(m.groups) {
		return ErrGroupRange
	}
	m.groups[group] = append(m.groups[group], Condition{Operator: OpEquals})
	return nil
}

// Set replaces one condition.
func (m *ColumnMenu) Set(group, index int, cond Condition) error {
	if group < 0 || group >= len(m.groups) || index < 0 || index >= len(m.groups[group]) {
		return ErrGroupRange
	}
	m.groups[group][index] = cond
	return nil
}

// Remove deletes one condition; a group left empty is dropped.
func (m *ColumnMenu) Remove(group, index int) error {
	if group < 0 || group >= len(m.groups) || index < 0 || index >= len(m.groups[group]) {
		return ErrGroupRange
	}
	g := append(m.groups[group][:index:index], m.groups[group][index+1:]...)
	if len(g) == 0 {
		m.groups = append(m.groups[:group:group], m.groups[group+1:]...)
		return nil
	}
	m.groups[group] = g
	return nil
}

// Reset clears both modes.
func (m *ColumnMenu) Reset() {
	m.basic = nil
	m.groups = nil
}

// Filters returns basic ++ advanced groups. Conditions with an empty value
// are skipped; groups left empty are dropped.
func (m *ColumnMenu) Filters() [][]Condition {
	var out [][]Condition
	for _, v := range m.basic {
		if v == "" {
			continue
		}
		out = append(out, []Condition{{Operator: OpEquals, Value: v}})
	}
	for _, group := range m.groups {
		var g []Condition
		for _, cond := range group {
			if cond.Value == "" {
				continue
			}
			g = append(g, cond)
		}
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// Apply writes the menu state into filters, deleting the key when empty.
func (m *ColumnMenu) Apply(filters Filters) Filters {
	if filters == nil {
		filters = Filters{}
	}
	groups := m.Filters()
	if len(groups) == 0 {
		delete(filters, m.Key)
		return filters
	}
	filters[m.Key] = groups
	return filters
}

// Distinct returns the sorted non-empty filterable values of field across
// records; it feeds the basic mode choices.
func Distinct(records []model.Record, field model.Field) []string {
	acc := model.AccessorFor(field)
	seen := make(map[string]struct{})
	var out []string
	for _, record := range records {
		for _, v := range acc.FilterableValues(record) {
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func cloneGroup(group []Condition) []Condition {
	return append([]Condition(nil), group...)
}
