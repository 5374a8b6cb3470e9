package domain

import (
	"errors"
	"fmt"
)

// Error families. Every specific error below unwraps to one or more of these,
// so callers can classify with errors.Is without knowing the concrete error.
var (
	ErrValidation    = errors.New("validation failed")
	ErrStateConflict = errors.New("state conflict")
	ErrNotFound      = errors.New("not found")
	ErrPolicyAbsent  = errors.New("policy absent")
)

type familyError struct {
	families []error
	msg      string
}

func (e *familyError) Error() string   { return e.msg }
func (e *familyError) Unwrap() []error { return e.families }

func newError(msg string, families ...error) error {
	return &familyError{families: families, msg: msg}
}

var (
	ErrInvalidAmount    = newError("amount must be greater than zero", ErrValidation)
	ErrInvalidPeriod    = newError("period must be formatted as YYYY-MM", ErrValidation)
	ErrInvalidRequest   = newError("invalid request", ErrValidation)
	ErrInvalidEntryType = newError("invalid ledger entry type", ErrValidation)
	ErrInvalidPolicy    = newError("invalid lease clause metadata", ErrValidation)
	ErrNoActiveTenants  = newError("no active tenants to allocate to", ErrValidation)
	ErrNoRentConfigured = newError("no lease rent configured", ErrValidation, ErrPolicyAbsent)
	ErrNoLateFeeClause  = newError("lease has no late fee clause", ErrPolicyAbsent)

	ErrInvalidTransition    = newError("invalid status transition", ErrStateConflict)
	ErrBillAlreadyAllocated = newError("This bill has already been allocated", ErrStateConflict)
	ErrPaymentNotPending    = newError("only pending payments can be confirmed or rejected", ErrStateConflict)
	ErrVersionConflict      = newError("optimistic lock conflict", ErrStateConflict)
	ErrAllocationMismatch   = newError("existing utility charges do not match the current split", ErrStateConflict)

	ErrTenantNotFound  = newError("tenant not found", ErrNotFound)
	ErrLeaseNotFound   = newError("lease not found", ErrNotFound)
	ErrBillNotFound    = newError("utility bill not found", ErrNotFound)
	ErrPaymentNotFound = newError("payment not found", ErrNotFound)

	// ErrAlreadyExists reports an idempotency-key hit. Services turn it into an
	// "already_*" outcome; it never reaches an HTTP client.
	ErrAlreadyExists = errors.New("ledger entry already exists")

	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// TransitionError names the disallowed pair of a state machine transition.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s transition from %q to %q is not allowed", e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

func IsValidation(err error) bool    { return errors.Is(err, ErrValidation) }
func IsStateConflict(err error) bool { return errors.Is(err, ErrStateConflict) }
func IsNotFound(err error) bool      { return errors.Is(err, ErrNotFound) }
func IsPolicyAbsent(err error) bool  { return errors.Is(err, ErrPolicyAbsent) }
