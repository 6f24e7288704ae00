package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies what part of the embedding setup caused an error.
type ErrorType string

const (
	ErrorTypeEndpoint ErrorType = "endpoint"
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeModel    ErrorType = "model"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error represents a structured embedding error with classification.
type Error struct {
	Type       ErrorType // Classification of the error
	Message    string    // Human-readable message
	Retryable  bool      // Whether the operation can be retried
	Cause      error     // Underlying error
	StatusCode int       // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, string(e.Type))

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("HTTP %d", e.StatusCode))
	}

	parts = append(parts, e.Message)

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", strings.Join(parts, " "), e.Cause)
	}
	return strings.Join(parts, " ")
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
// This allows the retry package to check retryability without importing llm.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured embedding error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// ClassifyError categorizes an error and returns a structured Error.
// This consolidates error classification logic for consistent handling.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	// Check if already an *Error
	var embErr *Error
	if errors.As(err, &embErr) {
		return embErr
	}

	errStr := err.Error()
	lower := strings.ToLower(errStr)

	// Extract HTTP status code from error string
	statusCode := 0
	for _, code := range []int{400, 401, 403, 404, 429, 500, 502, 503, 504} {
		if strings.Contains(errStr, fmt.Sprintf("%d", code)) {
			statusCode = code
			break
		}
	}

	// Authentication errors (not retryable)
	if strings.Contains(errStr, "401") || strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") {
		embErr := NewError(ErrorTypeAuth, "authentication failed", false, err)
		embErr.StatusCode = statusCode
		return embErr
	}

	// Model not found (not retryable without config change)
	if strings.Contains(lower, "model") && (strings.Contains(lower, "not found") ||
		strings.Contains(lower, "does not exist")) {
		embErr := NewError(ErrorTypeModel, "model not found", false, err)
		embErr.StatusCode = statusCode
		return embErr
	}

	// Endpoint not found (not retryable without config change)
	if strings.Contains(errStr, "404") {
		embErr := NewError(ErrorTypeEndpoint, "endpoint not found", false, err)
		embErr.StatusCode = statusCode
		return embErr
	}

	// Connection errors (may be retryable)
	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") {
		embErr := NewError(ErrorTypeEndpoint, "connection failed", true, err)
		embErr.StatusCode = statusCode
		return embErr
	}

	// Timeout and deadline exceeded (retryable)
	if strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded") ||
		strings.Contains(lower, "context canceled") {
		embErr := NewError(ErrorTypeEndpoint, "request timeout", true, err)
		embErr.StatusCode = statusCode
		return embErr
	}

	// Rate limiting (retryable after backoff)
	if strings.Contains(errStr, "429") || strings.Contains(lower, "rate limit") {
		embErr := NewError(ErrorTypeUnknown, "rate limited", true, err)
		embErr.StatusCode = statusCode
		return embErr
	}

	// 5xx server errors (retryable)
	if strings.Contains(errStr, "500") || strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") || strings.Contains(errStr, "504") {
		embErr := NewError(ErrorTypeEndpoint, "server error", true, err)
		embErr.StatusCode = statusCode
		return embErr
	}

	// Unknown error
	embErr = NewError(ErrorTypeUnknown, "embedding error", false, err)
	embErr.StatusCode = statusCode
	return embErr
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var embErr *Error
	if errors.As(err, &embErr) {
		return embErr.Retryable
	}
	return false
}
