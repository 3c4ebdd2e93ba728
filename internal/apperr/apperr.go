// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidLink      = errors.New("invalid link")
	ErrConflict         = errors.New("conflict")
	ErrValidation       = errors.New("validation error")

	// ErrUnavailable marks store failures (connectivity, timeout, lock
	// contention). Callers may retry.
	ErrUnavailable = errors.New("store unavailable")
)

var domainKinds = []error{
	ErrNotFound,
	ErrPermissionDenied,
	ErrInvalidLink,
	ErrConflict,
	ErrValidation,
}

// IsDomain reports whether err carries one of the domain kinds.
func IsDomain(err error) bool {
	for _, k := range domainKinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// Unavailable wraps err as a retryable infrastructure failure. Domain errors
// and nil pass through unchanged.
func Unavailable(err error) error {
	if err == nil || IsDomain(err) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// Code returns the stable machine-readable name of err's kind.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrInvalidLink):
		return "invalid_link"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

func PermissionDenied(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrPermissionDenied)
}

func InvalidLink(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidLink)
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

func Validation(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}
