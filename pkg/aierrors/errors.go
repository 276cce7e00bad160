// Package aierrors provides classification and typed errors for AI operation
// failures. Every error passing through the recovery core is normalized to one
// of the kinds defined here, which drives retry, circuit breaking and fallback
// decisions.
package aierrors

import (
	"fmt"
	"time"
)

// Kind is the normalized category of an AI operation error.
type Kind string

const (
	// KindTransientUpstream represents network resets and temporary upstream
	// unavailability. Retryable.
	KindTransientUpstream Kind = "transient_upstream"
	// KindModelFailure represents a failure tied to a specific model, such as
	// the model being offline or rejecting the request. Recoverable via model
	// failover, not via plain retry.
	KindModelFailure Kind = "model_failure"
	// KindTimeout represents an attempt that exceeded its deadline.
	KindTimeout Kind = "timeout"
	// KindRateLimit represents a provider 429. Surfaced immediately with a
	// wait hint, never retried by the core.
	KindRateLimit Kind = "rate_limit"
	// KindCircuitOpen represents a request rejected by an open circuit breaker.
	KindCircuitOpen Kind = "circuit_breaker_open"
	// KindBudgetConstraint represents budget exhaustion. Fails fast unless
	// degradation is enabled.
	KindBudgetConstraint Kind = "budget_constraint"
	// KindValidation represents caller/programmer errors. Never retried.
	KindValidation Kind = "validation"
	// KindUnknown is every error that could not be classified. Never retried.
	KindUnknown Kind = "unknown"
)

// TimeoutError is raised when an operation exceeds its per-attempt deadline.
type TimeoutError struct {
	Timeout time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %v (limit %v)", e.Elapsed, e.Timeout)
}

// RateLimitError is raised when the upstream provider rejects a request with
// a rate limit response.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded, retry after %v", e.RetryAfter)
	}
	return "rate limit exceeded"
}

// CircuitBreakerOpenError is returned when a request is rejected without being
// attempted because the service's circuit breaker is open.
type CircuitBreakerOpenError struct {
	Service string
	Until   time.Time
}

func (e *CircuitBreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for service %s until %s", e.Service, e.Until.Format(time.RFC3339))
}

// BudgetConstraintError is returned when the caller's AI budget utilization has
// crossed the critical threshold and degradation is disabled.
type BudgetConstraintError struct {
	RemainingBudget   float64
	BudgetUtilization float64
}

func (e *BudgetConstraintError) Error() string {
	return fmt.Sprintf("budget exhausted: %.1f%% utilized, %.4f remaining",
		e.BudgetUtilization*100, e.RemainingBudget)
}

// ModelFailureError wraps an error attributable to a specific model backend.
type ModelFailureError struct {
	Model       string
	OriginalErr error
}

func (e *ModelFailureError) Error() string {
	return fmt.Sprintf("model %s failed: %v", e.Model, e.OriginalErr)
}

// Unwrap returns the underlying error for errors.Is and errors.As compatibility.
func (e *ModelFailureError) Unwrap() error {
	return e.OriginalErr
}

// UpstreamError wraps a transport-level failure talking to the AI provider.
// StatusCode is zero when the failure happened before a response was received.
type UpstreamError struct {
	StatusCode  int
	Message     string
	OriginalErr error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("upstream error: %s", e.Message)
}

// Unwrap returns the underlying error for errors.Is and errors.As compatibility.
func (e *UpstreamError) Unwrap() error {
	return e.OriginalErr
}

// ValidationError represents a malformed or unprocessable request. These fail
// fast: retrying cannot fix the input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// ErrNoAlternativeModel is returned by model failover when the selector could
// not produce a materially different model to fall back to.
var ErrNoAlternativeModel = fmt.Errorf("no alternative model available")
