// Package sentinel holds the infrastructure facts stores report. Services
// match them with errors.Is and translate to domain-errors codes.
package sentinel

import "errors"

var (
	// ErrNotFound means the row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict means a version check, unique index or serialization
	// failure lost a race. Callers may retry the whole unit of work.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState means the entity's status forbids the transition.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable means the backing store dropped or refused the
	// connection.
	ErrUnavailable = errors.New("unavailable")
)
