package service

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenMalformed     = errors.New("token malformed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateIdentity  = errors.New("an account with this email already exists")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")

	// ErrInferenceUnavailable covers engine timeouts, transport failures and
	// unusable engine output.
	ErrInferenceUnavailable = errors.New("inference engine unavailable")
	// ErrInferenceCircuitOpen is returned without calling the engine while the
	// breaker is open. It wraps ErrInferenceUnavailable.
	ErrInferenceCircuitOpen = fmt.Errorf("%w: circuit open", ErrInferenceUnavailable)
	// ErrLimiterUnavailable rejects inference when its budget cannot be checked.
	ErrLimiterUnavailable = fmt.Errorf("%w: rate limiter unavailable", ErrInferenceUnavailable)
)

// ValidationError names the offending field. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// RateLimitError is returned when a request exceeds its budget.
type RateLimitError struct {
	Route      string
	Limit      int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Route, e.RetryAfter.Round(time.Second))
}
