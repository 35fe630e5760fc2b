// Package query filters, sorts and paginates in-memory records given their
// descriptors. Stages run in a fixed order (free-text query, structured
// filters, sort, page) and never mutate caller-owned records: each stage
// works on a deep copy and pagination slices without consuming its input, so
// computing every page from the same input covers the set exactly once.
//
// Structured filters are per-field OR-of-AND groups of string containment
// tests. Both operators are existential over a field's filterable strings:
// "==" passes when at least one string contains the value and "!=" passes
// when at least one string does not. For multi-valued fields "!=" is
// therefore not the negation of "==".
package query
