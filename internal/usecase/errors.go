package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrConflict              = errors.New("conflict")
	ErrInvalidState          = errors.New("invalid state")
	ErrCapacityExceeded      = errors.New("capacity exceeded")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrTransient marks infrastructure faults worth retrying, such as a
	// dropped connection or a serialization failure.
	ErrTransient = errors.New("transient infrastructure failure")
)
