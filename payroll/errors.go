/*
errors.go - Centralized error taxonomy for the payroll engine

PURPOSE:
  All calculator errors in one place for consistency and discoverability.
  Domain packages (tax, leave) wrap these with additional context.

ERROR CATEGORIES:
  1. Invalid input  - The caller passed an out-of-domain value
                      (negative gross amount, negative tenure)
  2. Configuration  - The bracket set or policy is internally inconsistent
                      (gaps, overlaps, missing unbounded bracket)

RETRY SEMANTICS:
  Neither category is transient. Both indicate a caller or configuration
  bug and are NEVER retried by the calculators; retry, if any, is a caller
  decision after correcting the input. No error in this engine is
  network-related, so no backoff logic exists anywhere.

USAGE:
  Callers branch with errors.Is():

    if errors.Is(err, payroll.ErrInvalidInput) {
        // 400 - caller bug
    }
    if errors.Is(err, payroll.ErrConfiguration) {
        // 422 - fix the bracket set / policy
    }

SEE ALSO:
  - tax/brackets.go: Configuration validation for bracket sets
  - leave/policy.go: Configuration validation for leave policies
*/
package payroll

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidInput is returned when a caller passes an out-of-domain
	// value (negative amounts, negative tenure, malformed dates).
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration is returned when a bracket set or policy is
	// internally inconsistent. The calculation is refused rather than
	// producing a silently-wrong number.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNotFound is returned by the store when a referenced record
	// (bracket set, policy, employee) does not exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidInputError identifies which input was out of domain and why.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input %q: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// ConfigurationError identifies the inconsistency in a bracket set or policy.
type ConfigurationError struct {
	Subject string // e.g., "bracket set 2025", "leave policy"
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Subject, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConfigError returns true if the error indicates a broken configuration.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
