package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain taxonomy. Callers classify failures with
// errors.Is and map them to transport status codes at the edge.
var (
	// ErrInvariantViolation marks a broken domain rule. Never retried.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrDuplicateName marks a unique-name conflict (tenant name, group name
	// within a tenant, api key name per owner+tenant).
	ErrDuplicateName = errors.New("duplicate name")

	// ErrNotFound marks an absent entity.
	ErrNotFound = errors.New("not found")
)

// Invariantf wraps ErrInvariantViolation with a formatted message.
func Invariantf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}
