// Package options serves JSON option lists for select and autocomplete
// fields. A Source supplies the candidates (a static list, a line-based
// file or the records of a collection) and the handler filters them by a
// diacritic-insensitive query, prefix matches first.
//
// The handler answers GET and HEAD with {"data": [{value, label, group}]}.
package options
