package types

import (
	"errors"
	"time"
)

const (
	// DefaultBaseURL is the default hosted backend URL
	DefaultBaseURL = "https://api.pennywise.app"

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second

	// UserAgent is the user agent string
	UserAgent = "pennywise-go/1.0.0"
)

// Common errors
var (
	// ErrNotAuthenticated is returned when no session user is present
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrLoginFailed is returned when credentials are rejected
	ErrLoginFailed = errors.New("login failed")

	// ErrSessionExpired is returned when session has expired
	ErrSessionExpired = errors.New("session expired")

	// ErrRateLimited is returned when rate limited
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout is returned on timeout
	ErrTimeout = errors.New("request timeout")

	// ErrNotFound is returned when resource not found
	ErrNotFound = errors.New("resource not found")

	// ErrNotProvisioned is returned when the backing table does not exist
	ErrNotProvisioned = errors.New("storage not provisioned")

	// ErrServerError is returned for server errors
	ErrServerError = errors.New("server error")
)
