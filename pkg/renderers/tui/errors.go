package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g. Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrInvalid is returned when the answers still fail validation after
	// the last retry.
	ErrInvalid = errors.New("tui: record is invalid")
)
