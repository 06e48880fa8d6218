/*
errors.go - Result codes and error types for the billing engine

PURPOSE:
  Every expected business condition is returned as a value carrying a Code.
  Callers branch on CodeOf(err) instead of string matching. Only storage and
  infrastructure faults surface as CodeInternal.

CODES:
  NOT_FOUND       concept, assignment, quota or payment does not exist
  BAD_REQUEST     invalid input, inactive concept, empty resolution, no-op
                  adjustment, invalid waiver, missing refund reason
  CONFLICT        duplicate assignment scope, period already generated
  INTERNAL_ERROR  storage failure

STORE CONTRACT:
  Stores return the sentinels below (ErrNotFound, ErrPeriodAlreadyGenerated,
  ErrDuplicateAssignment). Services translate them into coded errors, so a
  unique-constraint violation raised by the database becomes CONFLICT even
  when the pre-read check passed.

USAGE:
  _, err := engine.Reversal.Refund(ctx, paymentID, reason, actor)
  switch billing.CodeOf(err) {
  case "":
      // success
  case billing.CodeBadRequest:
      // already refunded, or no reason
  }

SEE ALSO:
  - api/handlers.go: Maps codes to HTTP status
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// CODES
// =============================================================================

type Code string

const (
	CodeNotFound   Code = "NOT_FOUND"
	CodeBadRequest Code = "BAD_REQUEST"
	CodeConflict   Code = "CONFLICT"
	CodeInternal   Code = "INTERNAL_ERROR"
)

// =============================================================================
// SENTINEL ERRORS - Returned by stores, use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a row targeted by an update or delete is missing.
	ErrNotFound = errors.New("not found")

	// ErrPeriodAlreadyGenerated is returned when the unique constraint on
	// (concept, year, month) rejects a charge run or one of its quotas.
	ErrPeriodAlreadyGenerated = errors.New("charges already generated for period")

	// ErrDuplicateAssignment is returned when a concept already has an
	// assignment for the same scope identity.
	ErrDuplicateAssignment = errors.New("duplicate assignment for scope")

	// ErrBalanceInvariant is returned when a quota would be persisted with
	// Balance != BaseAmount + InterestAmount - PaidAmount.
	ErrBalanceInvariant = errors.New("quota balance invariant violated")
)

// =============================================================================
// CODED ERROR
// =============================================================================

// Error is the tagged failure returned by every engine operation.
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Code == CodeInternal {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the discriminant of err: "" for nil, the error's Code when
// it is an *Error, and CodeInternal for anything else.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// =============================================================================
// CONSTRUCTORS
// =============================================================================

func notFound(op, format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Op: op, Message: fmt.Sprintf(format, args...), Err: ErrNotFound}
}

func badRequest(op string, err error, format string, args ...any) *Error {
	return &Error{Code: CodeBadRequest, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

func conflict(op string, err error, format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

func internal(op string, err error) *Error {
	return &Error{Code: CodeInternal, Op: op, Message: "storage failure", Err: err}
}

// fromStore keeps coded errors produced inside a transaction callback and
// classifies store sentinels; everything else is a storage fault.
func fromStore(op string, err error) *Error {
	var coded *Error
	switch {
	case errors.As(err, &coded):
		return coded
	case errors.Is(err, ErrPeriodAlreadyGenerated):
		return conflict(op, err, "charges already generated for this period")
	case errors.Is(err, ErrDuplicateAssignment):
		return conflict(op, err, "an assignment already exists for this scope")
	case errors.Is(err, ErrNotFound):
		return &Error{Code: CodeNotFound, Op: op, Message: "record not found", Err: err}
	default:
		return internal(op, err)
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	switch CodeOf(err) {
	case CodeBadRequest, CodeConflict, CodeNotFound:
		return true
	}
	return false
}
