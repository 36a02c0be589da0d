// Package errors defines custom error types for better error handling and debugging.
// StreamError provides context-aware error reporting with type classification.
package errors

import (
	stderrors "errors"
	"fmt"
)

// StreamError represents errors that occur during stream resolution
type StreamError struct {
	Type    string
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *StreamError) Unwrap() error {
	return e.Cause
}

// Error type constants
const (
	ErrorTypeConfigurationInvalid = "CONFIGURATION_INVALID"
	ErrorTypeValidationFailed     = "VALIDATION_FAILED"
	ErrorTypeInvalidID            = "INVALID_ID"
	ErrorTypeUnknownProvider      = "UNKNOWN_PROVIDER"
	ErrorTypeMediaNotFound        = "MEDIA_NOT_FOUND"
	ErrorTypeAuthFailed           = "AUTH_FAILED"
	ErrorTypeIndexerFailed        = "INDEXER_FAILED"
	ErrorTypeResolveFailed        = "RESOLVE_FAILED"
	ErrorTypeTimeout              = "TIMEOUT"
)

// NewStreamError creates a new StreamError
func NewStreamError(errorType, message string, cause error) *StreamError {
	return &StreamError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

func NewConfigurationError(message string, cause error) *StreamError {
	return NewStreamError(ErrorTypeConfigurationInvalid, message, cause)
}

func NewValidationError(message string) *StreamError {
	return NewStreamError(ErrorTypeValidationFailed, message, nil)
}

func NewInvalidIDError(id string) *StreamError {
	return NewStreamError(ErrorTypeInvalidID, fmt.Sprintf("Invalid ID format: %s", id), nil)
}

func NewUnknownProviderError(name string) *StreamError {
	return NewStreamError(ErrorTypeUnknownProvider, fmt.Sprintf("Unknown stream service: %s", name), nil)
}

func NewMediaNotFoundError(id string, cause error) *StreamError {
	return NewStreamError(ErrorTypeMediaNotFound, fmt.Sprintf("No media info for %s", id), cause)
}

// NewAuthError marks a rejected provider credential. It aborts the whole request.
func NewAuthError(provider string, cause error) *StreamError {
	return NewStreamError(ErrorTypeAuthFailed, fmt.Sprintf("%s rejected the API key", provider), cause)
}

func NewIndexerError(indexer string, cause error) *StreamError {
	return NewStreamError(ErrorTypeIndexerFailed, fmt.Sprintf("indexer %s failed", indexer), cause)
}

func NewResolveError(message string, cause error) *StreamError {
	return NewStreamError(ErrorTypeResolveFailed, message, cause)
}

func NewTimeoutError(operation string) *StreamError {
	return NewStreamError(ErrorTypeTimeout, fmt.Sprintf("Operation timeout: %s", operation), nil)
}

// IsType reports whether any StreamError in err's chain has the given type.
func IsType(err error, errorType string) bool {
	var se *StreamError
	for err != nil {
		if !stderrors.As(err, &se) {
			return false
		}
		if se.Type == errorType {
			return true
		}
		err = se.Cause
	}
	return false
}

// IsValidation reports whether err was raised before any network call because the
// request itself was malformed.
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidationFailed) ||
		IsType(err, ErrorTypeInvalidID) ||
		IsType(err, ErrorTypeUnknownProvider)
}

func IsAuth(err error) bool {
	return IsType(err, ErrorTypeAuthFailed)
}
