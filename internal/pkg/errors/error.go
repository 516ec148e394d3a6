package xerrors

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across services and handlers. Repositories and
// services wrap these with context; the response package maps them to
// HTTP status codes.
var (
	// Lookup and input failures.
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")

	// Authorization failures.
	ErrUnauthorized = errors.New("unauthorized access")
	ErrForbidden    = errors.New("forbidden")

	// Write contention and uniqueness.
	ErrConflict        = errors.New("conflict: record was modified concurrently")
	ErrDuplicateEntry  = errors.New("duplicate entry")
	ErrAlreadyAssigned = errors.New("lead already assigned to this employee")

	// Infrastructure.
	ErrStoreFailure   = errors.New("storage operation failed")
	ErrInternal       = errors.New("internal server error")
	ErrSessionExpired = errors.New("session expired or invalid")
)

// Wrap adds context while keeping the sentinel reachable via errors.Is.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether err matches the given sentinel.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
