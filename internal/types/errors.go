package types

import (
	"errors"
	"fmt"
)

// Error represents a rejection reported by the backend
type Error struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"statusCode"`
	Details    map[string]interface{} `json:"details,omitempty"`
	RequestID  string                 `json:"requestId,omitempty"`
	Err        error                  `json:"-"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("error: %s", e.Code)
}

// Unwrap returns the wrapped sentinel, if any
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code
func (e *Error) Is(target error) bool {
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// PostgrestError is the error body returned by the REST data API
type PostgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`

	// auth API fields
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
}

// Text returns the first non-empty human message in the body
func (p *PostgrestError) Text() string {
	for _, s := range []string{p.Message, p.ErrorDescription, p.Msg, p.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}
