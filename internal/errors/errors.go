// Package errors provides structured error types for the project health service.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrCycleTimeout    = errors.New("monitoring cycle timed out")
	ErrNonMonotonic    = errors.New("snapshot timestamp is not after the latest one")
	ErrInvalidInput    = errors.New("invalid input")
	ErrRateLimit       = errors.New("rate limit exceeded")
	ErrUnavailable     = errors.New("service unavailable")
)

// APIError represents an error from an external API call.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	// RetryAfter is the wait the service asked for, zero when unspecified.
	RetryAfter time.Duration
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// IsRetryable returns true if the error is likely transient and worth retrying.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}

// ProjectError records a failure confined to one project's analysis.
type ProjectError struct {
	Project   string `json:"project"`
	Component string `json:"component"`
	Message   string `json:"message"`
}

func (e *ProjectError) Error() string {
	return fmt.Sprintf("%s: project %q: %s", e.Component, e.Project, e.Message)
}
