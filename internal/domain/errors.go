package domain

import "errors"

var (
	// ErrValidation marks malformed input. Callers match it with errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a state change is not allowed
	// from the entity's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrBlockerNotFound = errors.New("blocker not found")
	ErrSelfDependency  = errors.New("task cannot depend on itself")
)
