package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// Operator is a structured filter comparison.
type Operator string

const (
	OpEquals    Operator = "=="
	OpNotEquals Operator = "!="
)

// Condition is a single containment test against a field.
type Condition struct {
	Operator Operator `json:"operator" yaml:"operator"`
	Value    string   `json:"value" yaml:"value"`
}

// Filters maps a field key to its OR groups; each group is an AND list.
type Filters map[string][][]Condition

// ParseFilters decodes the JSON wire form of Filters and rejects unknown
// operators.
func ParseFilters(raw string) (Filters, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var filters Filters
	if err := json.Unmarshal([]byte(raw), &filters); err != nil {
		return nil, fmt.Errorf("query: decode filters: %w", err)
	}
	for key, groups := range filters {
		for _, group := range groups {
			for _, cond := range group {
				if cond.Operator != OpEquals && cond.Operator != OpNotEquals {
					return nil, fmt.Errorf("query: field %q: unknown operator %q", key, cond.Operator)
				}
			}
		}
	}
	return filters, nil
}

// Active reports whether any field carries at least one group.
func (f Filters) Active() bool {
	for _, groups := range f {
		if len(groups) > 0 {
			return true
		}
	}
	return false
}

// Count returns the number of conditions set on key.
func (f Filters) Count(key string) int {
	n := 0
	for _, group := range f[key] {
		n += len(group)
	}
	return n
}

// FilterByQuery keeps records whose normalised display values contain every
// whitespace token of q as a substring of some value token. An empty query
// keeps everything.
func FilterByQuery(records []model.Record, fields []model.Field, q string) []model.Record {
	out := model.CloneRecords(records)
	tokens := Tokens(q)
	if len(tokens) == 0 {
		return out
	}

	kept := out[:0]
	for _, record := range out {
		if matchesQuery(record, fields, tokens) {
			kept = append(kept, record)
		}
	}
	return kept
}

func matchesQuery(record model.Record, fields []model.Field, tokens []string) bool {
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, model.DisplayString(field, record))
	}
	values := Tokens(strings.Join(parts, " "))

	for _, token := range tokens {
		found := false
		for _, value := range values {
			if strings.Contains(value, token) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FilterByFilters keeps records that pass every filtered field. Keys without
// a descriptor read the raw record value.
func FilterByFilters(records []model.Record, fields []model.Field, filters Filters) []model.Record {
	out := model.CloneRecords(records)
	if !filters.Active() {
		return out
	}

	accessors := make(map[string]model.Accessor, len(filters))
	for key := range filters {
		field, ok := model.FindField(fields, key)
		if !ok {
			field = model.Field{Key: key}
		}
		accessors[key] = model.AccessorFor(field)
	}

	kept := out[:0]
	for _, record := range out {
		if matchesFilters(record, filters, accessors) {
			kept = append(kept, record)
		}
	}
	return kept
}

func matchesFilters(record model.Record, filters Filters, accessors map[string]model.Accessor) bool {
	for key, groups := range filters {
		if len(groups) == 0 {
			continue
		}
		values := lowerAll(accessors[key].FilterableValues(record))
		if !anyGroup(values, groups) {
			return false
		}
	}
	return true
}

func anyGroup(values []string, groups [][]Condition) bool {
	for _, group := range groups {
		if allConditions(values, group) {
			return true
		}
	}
	return false
}

func allConditions(values []string, group []Condition) bool {
	for _, cond := range group {
		if !cond.Match(values) {
			return false
		}
	}
	return true
}

// Match evaluates the condition against lower-cased filterable values. Both
// operators are existential.
func (c Condition) Match(values []string) bool {
	needle := strings.ToLower(c.Value)
	for _, value := range values {
		contains := strings.Contains(value, needle)
		if c.Operator == OpNotEquals {
			if !contains {
				return true
			}
			continue
		}
		if contains {
			return true
		}
	}
	return false
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
