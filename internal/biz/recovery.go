package biz

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/conf"
	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/aierrors"

	"github.com/go-kratos/kratos/v2/log"
)

// RecoveryMethod identifies which mechanism produced the final outcome of an
// AI operation. On terminal failure it stays RecoveryNone unless a specific
// mechanism (circuit breaker, fallback) decided the terminal state.
type RecoveryMethod string

const (
	RecoveryNone              RecoveryMethod = "none"
	RecoveryRetry             RecoveryMethod = "retry"
	RecoveryCircuitBreaker    RecoveryMethod = "circuit_breaker"
	RecoveryFallbackModel     RecoveryMethod = "fallback_model"
	RecoveryFallbackResponse  RecoveryMethod = "fallback_response"
	RecoveryBudgetDegradation RecoveryMethod = "budget_degradation"
)

// RecoveryAction is the action taken after an individual attempt.
type RecoveryAction string

const (
	ActionNone  RecoveryAction = "none"
	ActionRetry RecoveryAction = "retry"
)

// AttemptRecord captures one attempt of an operation.
type AttemptRecord struct {
	Number    int
	Timestamp time.Time
	Err       error
	Action    RecoveryAction
	Success   bool
}

// RecoveryResult aggregates the outcome of ExecuteWithRecovery.
// Err always carries the terminal error on failure; it is never swallowed.
type RecoveryResult[T any] struct {
	Success        bool
	Result         T
	Err            error
	Attempts       []AttemptRecord
	TotalTime      time.Duration
	RecoveryMethod RecoveryMethod
}

// Operation is a caller-supplied unit of work. Operations must be safe to
// invoke more than once: the core does not deduplicate side effects across
// retry attempts.
type Operation[T any] func(ctx context.Context) (T, error)

// RetryConfig controls the retry loop. Zero-value fields fall back to the
// executor defaults.
type RetryConfig struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	// RetryableKinds extends the set of error kinds the loop will retry.
	// Transient upstream errors are always retried; fail-fast kinds never are.
	RetryableKinds map[aierrors.Kind]bool
}

// minBackoff is the floor applied to the computed delay before jitter.
const minBackoff = 100 * time.Millisecond

// RecoveryUsecase runs operations with bounded retry, exponential backoff and
// circuit breaker gating. Attempts within one call are strictly sequential so
// that backoff and the breaker react to the most recent failure only.
type RecoveryUsecase struct {
	registry *HealthRegistry
	defaults RetryConfig
	logger   *log.Helper

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRecoveryUsecase creates the retry executor with defaults from config.
func NewRecoveryUsecase(rc *conf.Resilience, registry *HealthRegistry, logger log.Logger) *RecoveryUsecase {
	defaults := RetryConfig{
		MaxAttempts:       3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
	}
	if rc != nil && rc.Retry != nil {
		if rc.Retry.MaxAttempts > 0 {
			defaults.MaxAttempts = rc.Retry.MaxAttempts
		}
		if rc.Retry.BaseDelay > 0 {
			defaults.BaseDelay = rc.Retry.BaseDelay
		}
		if rc.Retry.MaxDelay > 0 {
			defaults.MaxDelay = rc.Retry.MaxDelay
		}
		if rc.Retry.BackoffMultiplier > 0 {
			defaults.BackoffMultiplier = rc.Retry.BackoffMultiplier
		}
	}

	return &RecoveryUsecase{
		registry: registry,
		defaults: defaults,
		logger:   log.NewHelper(logger),
		sleep:    sleepContext,
	}
}

// Registry exposes the health registry for the ops surface.
func (uc *RecoveryUsecase) Registry() *HealthRegistry {
	return uc.registry
}

// Defaults returns a copy of the default retry configuration.
func (uc *RecoveryUsecase) Defaults() RetryConfig {
	return uc.defaults
}

// resolveConfig merges a per-call override with the executor defaults.
func (uc *RecoveryUsecase) resolveConfig(override *RetryConfig) RetryConfig {
	cfg := uc.defaults
	if override == nil {
		return cfg
	}
	if override.MaxAttempts > 0 {
		cfg.MaxAttempts = override.MaxAttempts
	}
	if override.BaseDelay > 0 {
		cfg.BaseDelay = override.BaseDelay
	}
	if override.MaxDelay > 0 {
		cfg.MaxDelay = override.MaxDelay
	}
	if override.BackoffMultiplier > 0 {
		cfg.BackoffMultiplier = override.BackoffMultiplier
	}
	if override.RetryableKinds != nil {
		cfg.RetryableKinds = override.RetryableKinds
	}
	return cfg
}

// ExecuteWithRecovery runs the operation against the named service with retry
// and circuit breaker gating.
//
// When the breaker is open and not yet passable, the operation is never
// invoked: the result carries zero attempts, a CircuitBreakerOpenError and
// RecoveryMethod circuit_breaker. Otherwise attempts run sequentially up to
// the configured maximum; each attempt updates the health registry. A
// non-retryable failure stops the loop at that attempt.
func ExecuteWithRecovery[T any](
	ctx context.Context,
	uc *RecoveryUsecase,
	op Operation[T],
	service, label string,
	override *RetryConfig,
) *RecoveryResult[T] {
	start := time.Now()
	cfg := uc.resolveConfig(override)
	result := &RecoveryResult[T]{RecoveryMethod: RecoveryNone}

	if uc.registry.IsOpen(service) {
		health, _ := uc.registry.GetServiceHealth(service)
		var until time.Time
		if health.CircuitOpenUntil != nil {
			until = *health.CircuitOpenUntil
		}
		result.Err = &aierrors.CircuitBreakerOpenError{Service: service, Until: until}
		result.RecoveryMethod = RecoveryCircuitBreaker
		result.TotalTime = time.Since(start)

		uc.logger.Warnw("operation rejected by open circuit breaker",
			"service", service,
			"operation", label,
			"open_until", until)
		return result
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		value, err := op(ctx)
		if err == nil {
			uc.registry.RecordSuccess(service)
			result.Attempts = append(result.Attempts, AttemptRecord{
				Number:    attempt,
				Timestamp: time.Now(),
				Action:    ActionNone,
				Success:   true,
			})
			result.Success = true
			result.Result = value
			if attempt > 1 {
				result.RecoveryMethod = RecoveryRetry
			}
			result.TotalTime = time.Since(start)

			if attempt > 1 {
				uc.logger.Infow("operation recovered after retry",
					"service", service,
					"operation", label,
					"attempts", attempt)
			}
			return result
		}

		uc.registry.RecordFailure(service)
		result.Err = err

		retryable := aierrors.IsRetryable(err, cfg.RetryableKinds)
		lastAttempt := attempt == cfg.MaxAttempts

		action := ActionNone
		if retryable && !lastAttempt {
			action = ActionRetry
		}
		result.Attempts = append(result.Attempts, AttemptRecord{
			Number:    attempt,
			Timestamp: time.Now(),
			Err:       err,
			Action:    action,
			Success:   false,
		})

		if !retryable {
			uc.logger.Warnw("operation failed with non-retryable error",
				"service", service,
				"operation", label,
				"attempt", attempt,
				"error_kind", aierrors.Classify(err),
				"error", err)
			break
		}
		if lastAttempt {
			uc.logger.Errorw("operation failed after exhausting retries",
				"service", service,
				"operation", label,
				"attempts", attempt,
				"error", err)
			break
		}

		delay := backoffDelay(cfg, attempt)
		uc.logger.Debugw("retrying operation after backoff",
			"service", service,
			"operation", label,
			"attempt", attempt,
			"delay", delay)

		if serr := uc.sleep(ctx, delay); serr != nil {
			// Context cancelled during backoff: surface the last operation
			// error, not the cancellation.
			break
		}
	}

	result.TotalTime = time.Since(start)
	return result
}

// backoffDelay computes the exponential backoff delay for the given attempt,
// capped, floored at minBackoff, with symmetric ±25% jitter.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	exp := float64(cfg.BaseDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	d := time.Duration(exp)
	if d > cfg.MaxDelay {
		d = cfg.MaxDelay
	}
	if d < minBackoff {
		d = minBackoff
	}

	// jitter in [0.75, 1.25)
	factor := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(d) * factor)
}

// sleepContext sleeps for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
