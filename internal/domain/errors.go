package domain

import "errors"

// ErrorKind classifies domain errors so transports can map them
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation"
	KindNotFound           ErrorKind = "not_found"
	KindAuthorization      ErrorKind = "authorization"
	KindUnauthenticated    ErrorKind = "unauthenticated"
	KindInvariantViolation ErrorKind = "invariant_violation"
	KindConflict           ErrorKind = "conflict"
)

// Error is a domain error with a kind and a user-facing message
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewValidationError builds an ad-hoc validation error for request input
func NewValidationError(message string) error {
	return newError(KindValidation, message)
}

// Domain errors
var (
	// Lookup errors
	ErrTicketNotFound = newError(KindNotFound, "ticket does not exist")
	ErrOwnerNotFound  = newError(KindNotFound, "owner does not exist")
	ErrUserNotFound   = newError(KindNotFound, "user does not exist")

	// Import validation
	ErrInvalidValidity = newError(KindValidation, "ticket time interval is not valid")
	ErrTicketExpired   = newError(KindValidation, "ticket has expired")
	ErrNegativeCost    = newError(KindValidation, "ticket cost cannot be negative")

	// Request validation
	ErrInvalidTicketState = newError(KindValidation, "invalid ticket state")
	ErrMissingTicketID    = newError(KindValidation, "ticket id is required")
	ErrMissingUsername    = newError(KindValidation, "username is required")
	ErrMissingTicket      = newError(KindValidation, "ticket data is required")
	ErrInvalidAmount      = newError(KindValidation, "amount must be greater than zero")

	// Purchase rules
	ErrTicketOffMarket   = newError(KindInvariantViolation, "user cannot buy a ticket that is off the market")
	ErrEventEnded        = newError(KindInvariantViolation, "this event has already ended")
	ErrAlreadyOwner      = newError(KindInvariantViolation, "user cannot buy a ticket that already belongs to them")
	ErrInsufficientFunds = newError(KindInvariantViolation, "user does not have enough money to buy this ticket")

	// Ownership
	ErrNotTicketOwner = newError(KindAuthorization, "user does not own this ticket")

	// Concurrency
	ErrConcurrentModification = newError(KindConflict, "ticket was modified concurrently, retry the request")

	// Identity
	ErrUsernameTaken      = newError(KindConflict, "username is already taken")
	ErrEmailTaken         = newError(KindConflict, "email is already registered")
	ErrInvalidCredentials = newError(KindUnauthenticated, "invalid username or password")
	ErrInvalidToken       = newError(KindUnauthenticated, "invalid token")
	ErrTokenExpired       = newError(KindUnauthenticated, "token has expired")
)

// KindOf returns the kind of a domain error, or "" for anything else
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return KindOf(err) == KindValidation
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsAuthorizationError checks if the caller is not allowed to act on the resource
func IsAuthorizationError(err error) bool {
	return KindOf(err) == KindAuthorization
}

// IsUnauthenticatedError checks if the caller could not be identified
func IsUnauthenticatedError(err error) bool {
	return KindOf(err) == KindUnauthenticated
}

// IsInvariantViolation checks if a business rule rejected the operation
func IsInvariantViolation(err error) bool {
	return KindOf(err) == KindInvariantViolation
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return KindOf(err) == KindConflict
}
