package aierrors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify_TypedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"timeout", &TimeoutError{Timeout: time.Second, Elapsed: 2 * time.Second}, KindTimeout},
		{"rate limit", &RateLimitError{RetryAfter: 30 * time.Second}, KindRateLimit},
		{"circuit open", &CircuitBreakerOpenError{Service: "openrouter"}, KindCircuitOpen},
		{"budget", &BudgetConstraintError{BudgetUtilization: 0.97}, KindBudgetConstraint},
		{"model failure", &ModelFailureError{Model: "gpt-4o", OriginalErr: errors.New("offline")}, KindModelFailure},
		{"validation", &ValidationError{Field: "query", Message: "empty"}, KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassify_WrappedTypedError(t *testing.T) {
	inner := &RateLimitError{RetryAfter: 10 * time.Second}
	wrapped := fmt.Errorf("chat completion failed: %w", inner)
	assert.Equal(t, KindRateLimit, Classify(wrapped))
}

func TestClassify_UpstreamStatusCodes(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{429, KindRateLimit},
		{402, KindBudgetConstraint},
		{400, KindValidation},
		{422, KindValidation},
		{500, KindTransientUpstream},
		{503, KindTransientUpstream},
		{0, KindTransientUpstream},
		{404, KindUnknown},
	}

	for _, tt := range tests {
		err := &UpstreamError{StatusCode: tt.status, Message: "x"}
		assert.Equal(t, tt.want, Classify(err), "status %d", tt.status)
	}
}

func TestClassify_ContextDeadline(t *testing.T) {
	assert.Equal(t, KindTimeout, Classify(context.DeadlineExceeded))
}

func TestClassify_MessageHeuristics(t *testing.T) {
	assert.Equal(t, KindTransientUpstream, Classify(errors.New("dial tcp: connection refused")))
	assert.Equal(t, KindTransientUpstream, Classify(errors.New("read: connection reset by peer")))
	assert.Equal(t, KindTimeout, Classify(errors.New("request timed out")))
	assert.Equal(t, KindRateLimit, Classify(errors.New("too many requests")))
	assert.Equal(t, KindUnknown, Classify(errors.New("something else entirely")))
}

func TestClassify_NilIsTotal(t *testing.T) {
	assert.Equal(t, KindUnknown, Classify(nil))
}

func TestIsRetryable(t *testing.T) {
	// Transient upstream always retryable
	assert.True(t, IsRetryable(&UpstreamError{StatusCode: 503}, nil))

	// Fail-fast kinds never retryable, even when allow-listed
	allowAll := map[Kind]bool{
		KindBudgetConstraint: true,
		KindValidation:       true,
		KindRateLimit:        true,
		KindCircuitOpen:      true,
	}
	assert.False(t, IsRetryable(&BudgetConstraintError{}, allowAll))
	assert.False(t, IsRetryable(&ValidationError{Message: "bad"}, allowAll))
	assert.False(t, IsRetryable(&RateLimitError{}, allowAll))
	assert.False(t, IsRetryable(&CircuitBreakerOpenError{}, allowAll))

	// Timeout retryable only when allow-listed
	timeoutErr := &TimeoutError{Timeout: time.Second}
	assert.False(t, IsRetryable(timeoutErr, nil))
	assert.True(t, IsRetryable(timeoutErr, map[Kind]bool{KindTimeout: true}))

	// Unknown errors not retryable by default
	assert.False(t, IsRetryable(errors.New("mystery"), nil))
}
