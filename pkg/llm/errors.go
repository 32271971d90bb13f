package llm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrorType classifies LLM failures for retry decisions and reporting.
type ErrorType string

const (
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeServer      ErrorType = "server"
	ErrorTypeConnection  ErrorType = "connection"
	ErrorTypeInvalid     ErrorType = "invalid_request"
	ErrorTypeUnavailable ErrorType = "unavailable"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents a structured LLM error with classification.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int
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

// IsRetryable reports whether the operation can be retried.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

var statusCodePattern = regexp.MustCompile(`status(?: code)?[: ]+(\d{3})`)

// ClassifyError categorizes an error and returns a structured Error.
// Classification is string-based because the SDKs surface most transport
// failures as formatted errors.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	lower := strings.ToLower(err.Error())

	statusCode := 0
	if m := statusCodePattern.FindStringSubmatch(lower); m != nil {
		statusCode, _ = strconv.Atoi(m[1])
	}

	newErr := func(t ErrorType, msg string, retryable bool) *Error {
		return &Error{Type: t, Message: msg, Retryable: retryable, Cause: err, StatusCode: statusCode}
	}

	switch {
	case statusCode == 401 || statusCode == 403 ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid api key") ||
		strings.Contains(lower, "authentication"):
		return newErr(ErrorTypeAuth, "authentication failed", false)

	case statusCode == 429 ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests") ||
		strings.Contains(lower, "overloaded"):
		return newErr(ErrorTypeRateLimit, "rate limited", true)

	case strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded"):
		return newErr(ErrorTypeTimeout, "request timed out", true)

	case statusCode == 503 ||
		strings.Contains(lower, "service unavailable"):
		return newErr(ErrorTypeUnavailable, "service unavailable", true)

	case statusCode >= 500:
		return newErr(ErrorTypeServer, "server error", true)

	case strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "no such host") ||
		strings.Contains(lower, "connection reset"):
		return newErr(ErrorTypeConnection, "connection failed", true)

	case statusCode == 400 || statusCode == 404 || statusCode == 422 ||
		strings.Contains(lower, "invalid request") ||
		strings.Contains(lower, "context length"):
		return newErr(ErrorTypeInvalid, "invalid request", false)

	default:
		return newErr(ErrorTypeUnknown, "unclassified error", false)
	}
}

// IsRetryable reports whether an error is worth retrying. Unclassified
// errors are not retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return ClassifyError(err).Retryable
}
