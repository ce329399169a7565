package api

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeInvalidRequest      ErrorType = "invalid_request"
	ErrorTypeNotFound            ErrorType = "not_found"
	ErrorTypeProviderUnavailable ErrorType = "provider_unavailable"
	ErrorTypeProviderError       ErrorType = "provider_error"
	ErrorTypeProviderTimeout     ErrorType = "provider_timeout"
	ErrorTypePersistence         ErrorType = "persistence_error"
	ErrorTypeServerError         ErrorType = "server_error"
)

// APIError represents a structured error with type, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewValidationError creates an APIError for missing or malformed input.
func NewValidationError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for entities that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewProviderUnavailableError creates an APIError for a capability that is
// not configured. The capability is never invoked.
func NewProviderUnavailableError(capability string) *APIError {
	return &APIError{
		Type:    ErrorTypeProviderUnavailable,
		Message: fmt.Sprintf("%s capability is not available", capability),
	}
}

// NewProviderExecutionError creates an APIError for a capability that was
// invoked and failed.
func NewProviderExecutionError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeProviderError,
		Message: message,
	}
}

// NewProviderTimeoutError creates an APIError for a capability call that
// exceeded the request deadline or was cancelled.
func NewProviderTimeoutError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeProviderTimeout,
		Message: message,
	}
}

// NewPersistenceError creates an APIError for save/load failures.
func NewPersistenceError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypePersistence,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// AsAPIError converts any error into an *APIError. Existing APIErrors in the
// chain are returned as is, context deadline and cancellation become
// provider_timeout, and everything else is wrapped with fallback.
func AsAPIError(err error, fallback ErrorType) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderTimeoutError("request deadline exceeded: " + err.Error())
	}
	if errors.Is(err, context.Canceled) {
		return NewProviderTimeoutError("request cancelled: " + err.Error())
	}
	return &APIError{Type: fallback, Message: err.Error()}
}
