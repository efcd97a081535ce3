package llm

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRateLimitError(t *testing.T) {
	err := NewRateLimitError("rate limit exceeded", nil, nil)
	if !IsRateLimitError(err) {
		t.Error("Expected IsRateLimitError to return true for rate limit error")
	}

	regularErr := NewProviderError("some error", nil)
	if IsRateLimitError(regularErr) {
		t.Error("Expected IsRateLimitError to return false for non-rate-limit error")
	}
}

func TestIsContextLengthError(t *testing.T) {
	err := NewContextLengthError("prompt is too long", nil)
	if !IsContextLengthError(err) {
		t.Error("Expected IsContextLengthError to return true for context length error")
	}
	if IsRetryableError(err) {
		t.Error("Expected context length errors to be terminal")
	}

	regularErr := NewProviderError("some error", nil)
	if IsContextLengthError(regularErr) {
		t.Error("Expected IsContextLengthError to return false for non-context-length error")
	}
}

func TestIsQuotaError(t *testing.T) {
	err := NewQuotaError("billing hard limit reached", nil)
	if !IsQuotaError(err) {
		t.Error("Expected IsQuotaError to return true for quota error")
	}
	if IsRetryableError(err) {
		t.Error("Expected quota errors to be terminal")
	}
}

func TestAsFunctionCallParsingError(t *testing.T) {
	err := NewFunctionCallParsingError("call-7", `{"a": 1,`, errors.New("unexpected end of JSON input"))
	parsed := AsFunctionCallParsingError(err)
	if parsed == nil {
		t.Fatal("Expected parsing error to be recognized")
	}
	if parsed.FunctionCallID != "call-7" {
		t.Errorf("Expected call id 'call-7', got %q", parsed.FunctionCallID)
	}
	if parsed.RawArguments != `{"a": 1,` {
		t.Errorf("Expected raw payload preserved, got %q", parsed.RawArguments)
	}
	if IsRetryableError(err) {
		t.Error("Expected parsing errors to be terminal")
	}

	// Recognized through wrapping too.
	wrapped := fmt.Errorf("fetch: %w", err)
	if AsFunctionCallParsingError(wrapped) == nil {
		t.Error("Expected parsing error recognized through wrapping")
	}

	if AsFunctionCallParsingError(NewProviderError("x", nil)) != nil {
		t.Error("Expected nil for non-parsing error")
	}
}

func TestIsRetryableError(t *testing.T) {
	retryableErr := NewRateLimitError("rate limit", nil, nil)
	if !IsRetryableError(retryableErr) {
		t.Error("Expected IsRetryableError to return true for retryable error")
	}

	if !IsRetryableError(NewTransientError("overloaded", nil)) {
		t.Error("Expected transient provider errors to be retryable")
	}
	if !IsRetryableError(NewNetworkError("connection reset", nil)) {
		t.Error("Expected network errors to be retryable")
	}

	nonRetryableErr := NewProviderError("some error", nil)
	if IsRetryableError(nonRetryableErr) {
		t.Error("Expected IsRetryableError to return false for non-retryable error")
	}
	if IsRetryableError(NewInvalidRequestError("bad request", nil)) {
		t.Error("Expected invalid request errors to be terminal")
	}
}

func TestExtractRetryAfter(t *testing.T) {
	retryAfter := 5 * time.Minute
	err := NewRateLimitError("rate limit", &retryAfter, nil)
	extracted := ExtractRetryAfter(err)
	if extracted == nil {
		t.Fatal("Expected non-nil retry after")
	}
	if *extracted != retryAfter {
		t.Errorf("Expected retry after %v, got %v", retryAfter, *extracted)
	}

	regularErr := NewProviderError("some error", nil)
	if ExtractRetryAfter(regularErr) != nil {
		t.Error("Expected nil retry after for non-rate-limit error")
	}
}

func TestErrorUnwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrappedErr := NewProviderError("wrapped", originalErr)
	if !errors.Is(wrappedErr, originalErr) {
		t.Error("Expected error to unwrap to original error")
	}
}
