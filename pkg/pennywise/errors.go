package pennywise

import (
	"errors"
	"fmt"
	"strings"

	internalTypes "github.com/pennywise-app/pennywise-go/internal/types"
	"github.com/shopspring/decimal"
)

// Sentinels shared with the transport so errors.Is works across layers.
var (
	// ErrNotAuthenticated is returned when no session user is present
	ErrNotAuthenticated = internalTypes.ErrNotAuthenticated

	// ErrLoginFailed is returned when credentials are rejected
	ErrLoginFailed = internalTypes.ErrLoginFailed

	// ErrSessionExpired is returned when session has expired
	ErrSessionExpired = internalTypes.ErrSessionExpired

	// ErrRateLimited is returned when rate limited
	ErrRateLimited = internalTypes.ErrRateLimited

	// ErrTimeout is returned when a remote call exceeds its deadline
	ErrTimeout = internalTypes.ErrTimeout

	// ErrNotFound is returned when an entity id is unknown
	ErrNotFound = internalTypes.ErrNotFound

	// ErrNotProvisioned is returned while the savings storage does not exist
	ErrNotProvisioned = internalTypes.ErrNotProvisioned

	// ErrServerError is returned for server errors
	ErrServerError = internalTypes.ErrServerError
)

var (
	// ErrInvalidRequest is returned for invalid caller input
	ErrInvalidRequest = errors.New("invalid request")

	// ErrDuplicateRequest is returned when the same mutation is already in flight
	ErrDuplicateRequest = errors.New("duplicate request in flight")
)

// Error represents a rejection reported by the backend
type Error = internalTypes.Error

// ValidationError describes one invalid field
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// Is makes a validation error match ErrInvalidRequest
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []*ValidationError `json:"errors"`
}

// Error implements the error interface
func (e *ValidationErrors) Error() string {
	switch len(e.Errors) {
	case 0:
		return "validation failed"
	case 1:
		return e.Errors[0].Error()
	}
	fields := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		fields = append(fields, fe.Field)
	}
	return fmt.Sprintf("%d validation errors occurred: %s", len(e.Errors), strings.Join(fields, ", "))
}

// Is makes validation errors match ErrInvalidRequest
func (e *ValidationErrors) Is(target error) bool {
	return target == ErrInvalidRequest
}

// Add records a field error and returns the collection
func (e *ValidationErrors) Add(field, message string, value interface{}) error {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message, Value: value})
	return e
}

// OrNil returns nil when nothing was recorded
func (e *ValidationErrors) OrNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

func (e *ValidationErrors) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "is required", nil)
	}
}

func (e *ValidationErrors) positive(field string, value decimal.Decimal) {
	if !value.IsPositive() {
		e.Add(field, "must be greater than zero", value.String())
	}
}

// NewError creates a new API error
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an error with additional context
func WrapError(err error, code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsAuthError checks if error is authentication related
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrLoginFailed) ||
		errors.Is(err, ErrSessionExpired)
}

// IsNotProvisioned checks if the backing storage is missing
func IsNotProvisioned(err error) bool {
	return errors.Is(err, ErrNotProvisioned)
}

// IsTimeout checks if the operation ran out of time
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsRemoteRejection checks if the backend refused the write with a typed error
func IsRemoteRejection(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode < 500 && !errors.Is(apiErr, ErrNotProvisioned)
}

// IsRetryable checks if error is retryable
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServerError) {
		return true
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == 429
	}

	return false
}
