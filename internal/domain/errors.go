package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrConflict            = errors.New("conflict")
	ErrRateLimited         = errors.New("rate limited")

	// ErrTokenLimit is returned when a user already holds the maximum number of active plugin tokens
	ErrTokenLimit = errors.New("plugin token limit reached")
	// ErrAlreadyRedeemed is returned when a promo code was used by the same user before
	ErrAlreadyRedeemed = errors.New("code already redeemed")
	// ErrSubscriptionRequired gates features reserved for active or trialing subscribers
	ErrSubscriptionRequired = errors.New("subscription required")
)

// ValidationError carries a user-facing message and matches ErrInvalidInput
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// Invalid builds a ValidationError
func Invalid(msg string) error {
	return &ValidationError{Msg: msg}
}
