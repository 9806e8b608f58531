package types

import (
	"errors"
	"fmt"
)

// Error codes for core operations
const (
	// Store errors
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeStore         = "STORE_ERROR"
	ErrCodeSerialization = "SERIALIZATION_ERROR"

	// Validation errors
	ErrCodeValidationFailed   = "VALIDATION_FAILED"
	ErrCodePackageUnavailable = "PACKAGE_UNAVAILABLE"
	ErrCodeSignatureInvalid   = "SIGNATURE_INVALID"

	// Sandbox errors
	ErrCodeSandboxViolation = "SANDBOX_VIOLATION"
	ErrCodeAllocation       = "ALLOCATION_FAILED"
	ErrCodeRibosomeFailure  = "RIBOSOME_FAILURE"

	// Network errors
	ErrCodePeerUnreachable = "PEER_UNREACHABLE"
	ErrCodeTimeout         = "TIMEOUT"
)

// CoreError carries a stable code for programmatic handling alongside a
// human-readable message and an optional underlying cause.
type CoreError struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface
func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// NewError creates a new core error
func NewError(code, message string) *CoreError {
	return &CoreError{Code: code, Message: message}
}

// WrapError wraps an underlying error with a code and message
func WrapError(code, message string, cause error) *CoreError {
	return &CoreError{Code: code, Message: message, Cause: cause}
}

// ValidationFailed builds the typed failure carrying the validator's reason.
func ValidationFailed(reason string) *CoreError {
	return NewError(ErrCodeValidationFailed, reason)
}

// NotFound builds the typed error for a missing address. Callers that treat
// absence as a result rather than a failure should check with IsCode.
func NotFound(address Address) *CoreError {
	return NewError(ErrCodeNotFound, fmt.Sprintf("no content at %s", address))
}

// IsCode reports whether any error in the chain carries the given code.
func IsCode(err error, code string) bool {
	var ce *CoreError
	for errors.As(err, &ce) {
		if ce.Code == code {
			return true
		}
		err = ce.Cause
		if err == nil {
			return false
		}
	}
	return false
}
