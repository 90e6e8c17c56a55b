/*
errors.go - Centralized error types for the receivables engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Collaborating packages (api, store/sqlite) wrap these with context.

ERROR CATEGORIES:
  1. Configuration errors - bad generator tag / multiplicity combinations
  2. Conflict errors - manually-overridden data disagreeing with a recompute
  3. Store errors - persistence failures, surfaced and never swallowed

USAGE:
  Callers branch with errors.Is / errors.As:

    var conflict *receivables.ConflictError
    if errors.As(err, &conflict) {
        // re-run with a different update strategy or fix the datum
    }
*/
package receivables

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrFieldNotFound is returned when a referenced field descriptor doesn't exist.
	ErrFieldNotFound = errors.New("field descriptor not found")

	// ErrInstanceNotFound is returned when a referenced instance doesn't exist.
	ErrInstanceNotFound = errors.New("receivable instance not found")

	// ErrParticipantNotFound is returned when a referenced participant doesn't exist.
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrProjectNotFound is returned when a referenced project doesn't exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrDuplicateDatum is returned when a second datum is created for the same
	// (participant, instance) pair. The pair uniqueness constraint turns a race
	// between concurrent runs into this error rather than silent corruption.
	ErrDuplicateDatum = errors.New("duplicate datum for participant and instance")

	// ErrDuplicateOptionKey is returned when an option key is reused within a field.
	ErrDuplicateOptionKey = errors.New("duplicate option key")

	// ErrUnknownUpdateStrategy is returned for update-strategy tokens outside
	// the supported set. Rejected before a run starts.
	ErrUnknownUpdateStrategy = errors.New("unknown update strategy")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError reports a field descriptor whose generator tag is unknown
// or incompatible with its multiplicity. The run never starts.
type ConfigurationError struct {
	FieldID      FieldID
	Generator    GeneratorTag
	Multiplicity Multiplicity
	Reason       string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("field %s misconfigured (generator=%s, multiplicity=%s): %s",
		e.FieldID, e.Generator, e.Multiplicity, e.Reason)
}

// ConflictError reports a manually-overridden datum that disagrees with a
// freshly computed value under the exception strategy. It aborts the run and
// names the offending pair so the caller can re-run differently or fix data.
type ConflictError struct {
	ParticipantID ParticipantID
	InstanceID    InstanceID
	Stored        Amount
	Computed      Amount
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("overridden datum conflicts with computed value: participant %s, instance %s, stored %s, computed %s",
		e.ParticipantID, e.InstanceID, e.Stored, e.Computed)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFieldNotFound) ||
		errors.Is(err, ErrInstanceNotFound) ||
		errors.Is(err, ErrParticipantNotFound) ||
		errors.Is(err, ErrProjectNotFound)
}

// IsClientError returns true if the error is due to invalid caller input or
// data state rather than an infrastructure failure.
func IsClientError(err error) bool {
	var confErr *ConfigurationError
	var conflictErr *ConflictError
	return errors.As(err, &confErr) ||
		errors.As(err, &conflictErr) ||
		errors.Is(err, ErrUnknownUpdateStrategy) ||
		errors.Is(err, ErrDuplicateDatum)
}
