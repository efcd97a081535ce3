package llm

import (
	"errors"
	"time"
)

// Error represents a provider-neutral LLM error.
type Error struct {
	Type        ErrorType
	Message     string
	Retryable   bool
	RetryAfter  *time.Duration
	StatusCode  int
	ProviderErr error // Original provider-specific error

	// Set for ErrorTypeFunctionCallParsing: the vendor call id and the raw
	// argument payload that failed to parse.
	FunctionCallID string
	RawArguments   string
}

// ErrorType represents the category of error.
type ErrorType string

const (
	ErrorTypeRateLimit           ErrorType = "rate_limited"
	ErrorTypeContextLength       ErrorType = "context_length_exceeded"
	ErrorTypeInvalidRequest      ErrorType = "invalid_request"
	ErrorTypeQuota               ErrorType = "insufficient_quota"
	ErrorTypeFunctionCallParsing ErrorType = "function_call_parsing"
	ErrorTypeProvider            ErrorType = "provider"
	ErrorTypeNetwork             ErrorType = "network"
	ErrorTypeTimeout             ErrorType = "timeout"
	ErrorTypeUnknown             ErrorType = "unknown"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProviderErr != nil {
		return e.Message + ": " + e.ProviderErr.Error()
	}
	return e.Message
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

// IsRateLimitError checks if an error is a rate limit error.
func IsRateLimitError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeRateLimit
	}
	return false
}

// IsContextLengthError checks if an error reports a request exceeding the
// model's context window.
func IsContextLengthError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeContextLength
	}
	return false
}

// IsInvalidRequestError checks if an error reports a malformed request.
func IsInvalidRequestError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeInvalidRequest
	}
	return false
}

// IsQuotaError checks if an error reports an exhausted account quota.
func IsQuotaError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeQuota
	}
	return false
}

// AsFunctionCallParsingError returns the error as a function call parsing
// failure, or nil. Callers use the FunctionCallID and RawArguments fields to
// report the broken payload back to the model.
func AsFunctionCallParsingError(err error) *Error {
	var llmErr *Error
	if errors.As(err, &llmErr) && llmErr.Type == ErrorTypeFunctionCallParsing {
		return llmErr
	}
	return nil
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// ExtractRetryAfter extracts the retry-after duration from an error.
func ExtractRetryAfter(err error) *time.Duration {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.RetryAfter
	}
	return nil
}

// NewRateLimitError creates a new rate limit error.
func NewRateLimitError(message string, retryAfter *time.Duration, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeRateLimit,
		Message:     message,
		Retryable:   true,
		RetryAfter:  retryAfter,
		ProviderErr: providerErr,
	}
}

// NewContextLengthError creates a new context length exceeded error.
// These are terminal: retrying the same request cannot make it smaller.
func NewContextLengthError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeContextLength,
		Message:     message,
		Retryable:   false,
		ProviderErr: providerErr,
	}
}

// NewInvalidRequestError creates a new invalid request error.
func NewInvalidRequestError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeInvalidRequest,
		Message:     message,
		Retryable:   false,
		ProviderErr: providerErr,
	}
}

// NewQuotaError creates a new insufficient quota error.
func NewQuotaError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeQuota,
		Message:     message,
		Retryable:   false,
		ProviderErr: providerErr,
	}
}

// NewFunctionCallParsingError creates a new function call parsing error,
// preserving the call id and the raw payload that failed to decode.
func NewFunctionCallParsingError(callID, raw string, providerErr error) *Error {
	return &Error{
		Type:           ErrorTypeFunctionCallParsing,
		Message:        "could not parse function call arguments",
		Retryable:      false,
		ProviderErr:    providerErr,
		FunctionCallID: callID,
		RawArguments:   raw,
	}
}

// NewProviderError creates a new provider error.
func NewProviderError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeProvider,
		Message:     message,
		Retryable:   false,
		ProviderErr: providerErr,
	}
}

// NewTransientError creates a retryable provider-side error (5xx, dropped
// connections, vendor overload).
func NewTransientError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeProvider,
		Message:     message,
		Retryable:   true,
		ProviderErr: providerErr,
	}
}

// NewNetworkError creates a retryable transport-level error.
func NewNetworkError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeNetwork,
		Message:     message,
		Retryable:   true,
		ProviderErr: providerErr,
	}
}
