package store

import "errors"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned on a uniqueness or ordering violation.
	ErrConflict = errors.New("conflict")

	// ErrValidation is returned when a caller-controlled invariant (parent
	// type, non-blank SOP data, blank tool name) is violated.
	ErrValidation = errors.New("validation error")

	// ErrBadRequest is returned for malformed caller input (bad path,
	// non-folder passed where a folder is required).
	ErrBadRequest = errors.New("bad request")
)
