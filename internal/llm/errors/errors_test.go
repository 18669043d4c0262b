package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "provider 5xx", err: &ProviderError{Type: ErrorTypeProvider, StatusCode: 503}, want: true},
		{name: "provider auth", err: &ProviderError{Type: ErrorTypeAuth, StatusCode: 401}, want: false},
		{name: "wrapped rate limit", err: fmt.Errorf("call: %w", &RateLimitError{Provider: "openai"}), want: true},
		{name: "validation", err: &ValidationError{Field: "model", Message: "required"}, want: false},
		{name: "workflow override", err: &WorkflowError{Type: ErrorTypeTimeout, Retryable: false}, want: false},
		{name: "deadline", err: fmt.Errorf("HTTP request failed: %w", context.DeadlineExceeded), want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "connection reset", err: errors.New("read tcp: connection reset by peer"), want: true},
		{name: "unknown", err: errors.New("boom"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}
}

func TestRateLimitHelpers(t *testing.T) {
	rl := &RateLimitError{Provider: "local", RetryAfter: 2, LocalLimit: true}

	assert.True(t, IsRateLimitError(rl))
	assert.True(t, errors.Is(rl, ErrRateLimitExceeded))
	assert.True(t, IsRateLimitError(&ProviderError{Type: ErrorTypeRateLimit}))
	assert.False(t, IsRateLimitError(errors.New("x")))

	assert.Equal(t, 2*time.Second, GetRetryAfter(fmt.Errorf("wrapped: %w", rl)))
	assert.Equal(t, 5*time.Second, GetRetryAfter(&ProviderError{RetryAfter: 5}))
	assert.Zero(t, GetRetryAfter(errors.New("x")))
	assert.Contains(t, rl.Error(), "retry after 2 seconds")
}

func TestClassifyLLMError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ClassifyLLMError(nil))
	})

	t.Run("provider error keeps details", func(t *testing.T) {
		err := &ProviderError{Provider: "anthropic", StatusCode: 429, Message: "slow down", Code: "rate_limit_error", Type: ErrorTypeRateLimit}
		got := ClassifyLLMError(err)
		require.NotNil(t, got)
		assert.Equal(t, ErrorTypeRateLimit, got.Type)
		assert.True(t, got.Retryable)
		assert.Equal(t, 429, got.Details["status_code"])
		assert.ErrorIs(t, got, err)
	})

	t.Run("sentinels", func(t *testing.T) {
		assert.Equal(t, "MAX_RETRIES", ClassifyLLMError(fmt.Errorf("x: %w", ErrMaxRetriesExceeded)).Code)
		assert.False(t, ClassifyLLMError(ErrUnknownProvider).Retryable)
	})

	t.Run("patterns", func(t *testing.T) {
		assert.Equal(t, ErrorTypeAuth, ClassifyLLMError(errors.New("401 Unauthorized")).Type)
		assert.Equal(t, ErrorTypeQuota, ClassifyLLMError(errors.New("monthly quota used")).Type)
		assert.Equal(t, ErrorTypeUnknown, ClassifyLLMError(errors.New("odd")).Type)
	})

	t.Run("error string", func(t *testing.T) {
		wf := &WorkflowError{Type: ErrorTypeTimeout, Code: "TIMEOUT", Message: "Request timeout"}
		assert.Equal(t, "[timeout:TIMEOUT] Request timeout", wf.Error())
		wf.Code = ""
		assert.Equal(t, "[timeout] Request timeout", wf.Error())
	})
}
