// internal/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both "no such resource" and "resource exists but
	// is outside the caller's tenant". The two are deliberately
	// indistinguishable so an unauthorized caller cannot probe for
	// existence.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied is returned only when existence is already
	// implied by context, e.g. a project member attempting an admin-only
	// action inside a project they can see.
	ErrPermissionDenied = errors.New("permission denied")

	ErrInvalidInput = errors.New("invalid input")

	// Membership errors
	ErrAlreadyMember     = errors.New("user is already a member")
	ErrMemberNotFound    = errors.New("member not found")
	ErrCannotRemoveOwner = errors.New("organization owner cannot be removed")

	// Project errors
	ErrDuplicateProjectKey = errors.New("project key already in use")

	// Column errors
	ErrWIPLimitReached = errors.New("column work-in-progress limit reached")
)

// ValidationError reports malformed input with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError is an optimistic-concurrency collision that survived the
// automatic retry; the caller should refetch board state and try again.
type ConflictError struct {
	Resource string
	Err      error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting concurrent update on %s: %v", e.Resource, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// InvariantViolation means a guarantee the schema and transactions are
// supposed to hold has been broken (e.g. a duplicate task number reached
// commit). It is always a bug, never user error: it aborts the transaction
// and must be logged with full context, never swallowed.
type InvariantViolation struct {
	Invariant string
	Context   map[string]interface{}
	Err       error
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated: %s: %v", e.Invariant, e.Err)
}

func (e *InvariantViolation) Unwrap() error { return e.Err }
