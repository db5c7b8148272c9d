package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorType represents the category of error that occurred during a fetch operation
type ErrorType string

const (
	// ErrorTypeNetwork indicates a network-level error (connection refused, DNS, etc.)
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeRateLimit indicates the request was rejected due to rate limiting (HTTP 429)
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeServer indicates a server error (HTTP 5xx)
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeClient indicates a client error (HTTP 4xx except 429)
	ErrorTypeClient ErrorType = "client"
	// ErrorTypeTimeout indicates the navigation, element wait or request timed out
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeNotFound indicates the page loaded but the price element was absent
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeNoData indicates the quote payload carried no usable price field
	ErrorTypeNoData ErrorType = "no_data"
	// ErrorTypeUnsupported indicates the source code resolves to no fetch plan
	ErrorTypeUnsupported ErrorType = "unsupported"
	// ErrorTypeNotConfigured indicates the fetcher a plan needs was never wired in
	ErrorTypeNotConfigured ErrorType = "not_configured"
	// ErrorTypeUnknown indicates an error of unknown type
	ErrorTypeUnknown ErrorType = "unknown"
)

// FetchError represents a structured error from a fetch operation.
//
// Error returns the message verbatim so the persisted "Error: <message>"
// value carries what the source or library actually reported.
type FetchError struct {
	Type       ErrorType
	Retryable  bool
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface
func (e *FetchError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		cause := e.Cause.Error()
		switch {
		case msg == "":
			msg = cause
		case !strings.Contains(msg, cause):
			msg = msg + ": " + cause
		}
	}
	if msg == "" {
		msg = string(e.Type) + " error"
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *FetchError) Unwrap() error {
	return e.Cause
}

// NewNetworkError creates a network error
func NewNetworkError(cause error) *FetchError {
	return &FetchError{
		Type:      ErrorTypeNetwork,
		Retryable: true,
		Cause:     cause,
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(statusCode int, message string) *FetchError {
	if message == "" {
		message = "rate limit exceeded"
	}
	return &FetchError{
		Type:       ErrorTypeRateLimit,
		Retryable:  true,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewServerError creates a server error
func NewServerError(statusCode int) *FetchError {
	return &FetchError{
		Type:       ErrorTypeServer,
		Retryable:  true,
		StatusCode: statusCode,
		Message:    fmt.Sprintf("server error: HTTP %d", statusCode),
	}
}

// NewClientError creates a client error
func NewClientError(statusCode int, message string) *FetchError {
	return &FetchError{
		Type:       ErrorTypeClient,
		Retryable:  false,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string, cause error) *FetchError {
	return &FetchError{
		Type:      ErrorTypeTimeout,
		Retryable: true,
		Message:   message,
		Cause:     cause,
	}
}

// NewNotFoundError creates an error for a missing price element
func NewNotFoundError(message string) *FetchError {
	return &FetchError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewNoDataError creates the error reported when a quote has no price field
func NewNoDataError(symbol string) *FetchError {
	return &FetchError{
		Type:    ErrorTypeNoData,
		Message: "No price data for " + symbol,
	}
}

// NewUnsupportedSourceError creates the error for a source code with no plan
func NewUnsupportedSourceError(code string) *FetchError {
	return &FetchError{
		Type:    ErrorTypeUnsupported,
		Message: "unsupported source " + code,
	}
}

// NewNotConfiguredError creates the error for a plan whose fetcher is missing,
// e.g. "no web fetcher configured"
func NewNotConfiguredError(kind string) *FetchError {
	return &FetchError{
		Type:    ErrorTypeNotConfigured,
		Message: "no " + kind + " fetcher configured",
	}
}

// ClassifyHTTPError classifies an HTTP status code into an appropriate FetchError
func ClassifyHTTPError(statusCode int) *FetchError {
	switch {
	case statusCode == 429:
		return NewRateLimitError(statusCode, "")
	case statusCode >= 500:
		return NewServerError(statusCode)
	case statusCode >= 400:
		return NewClientError(statusCode, fmt.Sprintf("client error: HTTP %d", statusCode))
	default:
		return &FetchError{
			Type:       ErrorTypeUnknown,
			Retryable:  false,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		}
	}
}

// AsFetchError normalizes any error into a *FetchError. Deadline and network
// timeouts become timeouts and everything else untyped becomes a network error.
func AsFetchError(err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return NewTimeoutError("", err)
	}
	return NewNetworkError(err)
}
