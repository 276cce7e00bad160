package aierrors

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Classify maps an error to its normalized Kind. It is pure and total: every
// error value, including nil-adjacent wrappers and unrecognized errors,
// classifies deterministically.
//
// Classification order matters: typed errors win over transport heuristics,
// and transport heuristics win over message sniffing.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return KindTimeout
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return KindRateLimit
	}

	var breakerErr *CircuitBreakerOpenError
	if errors.As(err, &breakerErr) {
		return KindCircuitOpen
	}

	var budgetErr *BudgetConstraintError
	if errors.As(err, &budgetErr) {
		return KindBudgetConstraint
	}

	var modelErr *ModelFailureError
	if errors.As(err, &modelErr) {
		return KindModelFailure
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return KindValidation
	}

	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return classifyUpstream(upstreamErr)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindTransientUpstream
	}

	return classifyByMessage(err)
}

// classifyUpstream maps HTTP status codes from the AI provider to error kinds.
func classifyUpstream(e *UpstreamError) Kind {
	switch {
	case e.StatusCode == 429:
		return KindRateLimit
	case e.StatusCode == 402:
		return KindBudgetConstraint
	case e.StatusCode == 400 || e.StatusCode == 422:
		return KindValidation
	case e.StatusCode >= 500:
		return KindTransientUpstream
	case e.StatusCode == 0:
		// No response received: connection-level failure
		return KindTransientUpstream
	default:
		return KindUnknown
	}
}

// classifyByMessage is the last-resort heuristic for errors from collaborators
// that do not use the typed errors above.
func classifyByMessage(err error) Kind {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "broken pipe"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "service unavailable"),
		strings.Contains(msg, "bad gateway"):
		return KindTransientUpstream
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "timed out"):
		return KindTimeout
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"):
		return KindRateLimit
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether the error may be retried by the plain retry
// loop. Transient upstream errors are always retryable; additional kinds can
// be allowed per call. Budget, validation, rate-limit and circuit-open errors
// must fail fast regardless of the allow list.
func IsRetryable(err error, allowedKinds map[Kind]bool) bool {
	kind := Classify(err)

	switch kind {
	case KindBudgetConstraint, KindValidation, KindCircuitOpen, KindRateLimit:
		return false
	case KindTransientUpstream:
		return true
	}

	return allowedKinds[kind]
}
