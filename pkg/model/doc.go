// Package model defines the descriptors that drive table and form rendering.
// A Field describes one column/field: an optional record key, accessor hooks
// for display, filtering and sorting, an input kind from a closed set and the
// kind-specific payload (number bounds, itemsform layout, checkform options).
// Only keyed fields are form-actionable; display-only fields may omit the key
// and rely on accessor hooks. Records are plain maps so the engine never
// assumes structure beyond what descriptors access.
package model
