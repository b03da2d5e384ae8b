package domain

import (
	"errors"
	"fmt"
	"time"
)

// Error codes for different failure scenarios
const (
	ErrMissingCredential = "MISSING_CREDENTIAL"
	ErrProviderError     = "PROVIDER_ERROR"
	ErrUnknownProcedure  = "UNKNOWN_PROCEDURE_KIND"
	ErrInvalidInput      = "INVALID_INPUT"
	ErrInternalServer    = "INTERNAL_SERVER_ERROR"
	ErrRateLimit         = "RATE_LIMIT_EXCEEDED"
)

// User-facing messages. Provider details never reach the caller.
const (
	MsgMissingCredential = "API Key missing"
	MsgProviderFailure   = "Failed to generate report"
	MsgInvalidBody       = "Invalid request body"
)

// Sentinel errors for errors.Is checks
var (
	ErrCredentialMissing    = errors.New("provider credential is not configured")
	ErrProviderFailed       = errors.New("text generation provider failed")
	ErrUnknownProcedureKind = errors.New("unknown procedure kind")
)

// GatewayError is the standardized error returned by the rewrite gateway
type GatewayError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	cause     error
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the sentinel matching the error code
func (e *GatewayError) Unwrap() error {
	return e.cause
}

// NewGatewayError creates a new GatewayError with timestamp
func NewGatewayError(code, message, details, requestID string) *GatewayError {
	return &GatewayError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
		cause:     sentinelFor(code),
	}
}

// NewMissingCredentialError reports an absent provider credential
func NewMissingCredentialError(requestID string) *GatewayError {
	return NewGatewayError(ErrMissingCredential, MsgMissingCredential, "", requestID)
}

// NewProviderError reports a failed provider call. details stay server-side.
func NewProviderError(details, requestID string) *GatewayError {
	return NewGatewayError(ErrProviderError, MsgProviderFailure, details, requestID)
}

func sentinelFor(code string) error {
	switch code {
	case ErrMissingCredential:
		return ErrCredentialMissing
	case ErrProviderError:
		return ErrProviderFailed
	case ErrUnknownProcedure:
		return ErrUnknownProcedureKind
	}
	return nil
}

// ErrorCode extracts the error code of err, or ErrInternalServer
func ErrorCode(err error) string {
	var gwErr *GatewayError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &gwErr):
		return gwErr.Code
	case errors.Is(err, ErrCredentialMissing):
		return ErrMissingCredential
	case errors.Is(err, ErrProviderFailed):
		return ErrProviderError
	case errors.Is(err, ErrUnknownProcedureKind):
		return ErrUnknownProcedure
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return ErrInvalidInput
	}
	return ErrInternalServer
}

// PublicMessage returns the fixed text a caller may see for err
func PublicMessage(err error) string {
	switch ErrorCode(err) {
	case ErrMissingCredential:
		return MsgMissingCredential
	case ErrInvalidInput:
		return MsgInvalidBody
	}
	return MsgProviderFailure
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}
