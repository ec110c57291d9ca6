// Package podindex holds the records and errors shared by every part of the
// feed directory: feeds, episodes and the facets that hang off of them.
package podindex

import "errors"

var (
	// ErrInvalidInput is returned when a required argument is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when the input was fine but nothing matched it.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict is returned when a write would collide with a record owned by someone else.
	ErrConflict = errors.New("resource already exists")
	// ErrStore wraps any failure of the underlying store, timeouts included.
	ErrStore = errors.New("store error")
)
