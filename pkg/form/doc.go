// Package form holds the editing state of a record driven by descriptors:
// initial values, dotted-path updates, itemsform add/remove with full array
// replacement, checkform toggles, validation, commit and the delete
// confirmation gate. Inputs() projects the state into a tree of resolved
// widgets that renderers turn into markup.
package form
