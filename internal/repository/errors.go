package repository

import "errors"

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a write lost a race with another writer, or hit
	// a uniqueness constraint.
	ErrConflict = errors.New("conflicting write")
)
