package domain

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by the services matches exactly one of
// them with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrExhausted    = errors.New("resource exhausted")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

var (
	ErrInvalidReferralCode     = fmt.Errorf("%w: invalid referral code", ErrValidation)
	ErrInvalidAmount           = fmt.Errorf("%w: invalid amount", ErrValidation)
	ErrUsernameTaken           = fmt.Errorf("%w: username already taken", ErrConflict)
	ErrEmailTaken              = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrReferralAlreadyClaimed  = fmt.Errorf("%w: referral reward already claimed", ErrConflict)
	ErrDuplicatePurchase       = fmt.Errorf("%w: purchase already recorded", ErrConflict)
	ErrUserNotFound            = fmt.Errorf("%w: user not found", ErrNotFound)
	ErrReferralNotFound        = fmt.Errorf("%w: referral not found", ErrNotFound)
	ErrCodeAllocationExhausted = fmt.Errorf("%w: could not allocate a unique referral code", ErrExhausted)
	ErrInvalidPassword         = fmt.Errorf("%w: invalid password", ErrUnauthorized)
	ErrInvalidToken            = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrAccountDeactivated      = fmt.Errorf("%w: account deactivated", ErrForbidden)
)

// ValidationError reports a bad input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError is a shorthand used by the services.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
