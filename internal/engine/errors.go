package engine

import (
	"errors"
	"fmt"
)

// ErrClockSkew is returned when the simulated clock is asked to move
// backwards.
var ErrClockSkew = errors.New("logical clock is monotonic: negative advance rejected")

// ErrConcurrencyConflict is returned when an evaluation loses the
// per-customer serialization race after its internal retry.
var ErrConcurrencyConflict = errors.New("concurrent evaluation in progress for customer")

// ValidationError marks a malformed signal or playbook configuration. The
// orchestrator skips the offending playbook and keeps evaluating; it never
// aborts the batch over one of these.
type ValidationError struct {
	Subject string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Subject, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NotFoundError marks a direct lookup of an unknown customer or playbook.
// Surfaced to the caller, not retried.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
