package biz

import (
	"context"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/aierrors"
)

// WithTimeout races the operation against a timer. When the timer fires
// first, a TimeoutError is returned and the losing branch is abandoned: the
// operation is not forcibly cancelled, its eventual result is discarded. The
// operation receives a context carrying the deadline so cooperative callees
// can stop early, but nothing relies on them doing so.
func WithTimeout[T any](ctx context.Context, op Operation[T], timeout time.Duration) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	start := time.Now()
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so the abandoned goroutine can always complete its send.
	done := make(chan outcome, 1)
	go func() {
		value, err := op(opCtx)
		done <- outcome{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var zero T
	select {
	case out := <-done:
		return out.value, out.err
	case <-timer.C:
		return zero, &aierrors.TimeoutError{
			Timeout: timeout,
			Elapsed: time.Since(start),
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// HandleTimeout runs the operation under a per-attempt timeout, retrying the
// whole race up to maxAttempts with the standard backoff. Only timeout and
// transient upstream failures are retried. RecoveryMethod is retry whenever
// more than one attempt ran, regardless of the final outcome of that attempt
// chain being a timeout retry or a transient retry.
func HandleTimeout[T any](
	ctx context.Context,
	uc *RecoveryUsecase,
	op Operation[T],
	service, label string,
	timeout time.Duration,
	maxAttempts int,
) *RecoveryResult[T] {
	if maxAttempts <= 0 {
		maxAttempts = uc.defaults.MaxAttempts
	}
	cfg := uc.defaults
	result := &RecoveryResult[T]{RecoveryMethod: RecoveryNone}
	start := time.Now()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		value, err := WithTimeout(ctx, op, timeout)
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
			return result
		}

		uc.registry.RecordFailure(service)
		result.Err = err

		kind := aierrors.Classify(err)
		retryable := kind == aierrors.KindTimeout || kind == aierrors.KindTransientUpstream
		lastAttempt := attempt == maxAttempts

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

		if !retryable || lastAttempt {
			break
		}

		uc.logger.Debugw("operation timed out, retrying",
			"service", service,
			"operation", label,
			"attempt", attempt,
			"timeout", timeout)

		if serr := uc.sleep(ctx, backoffDelay(cfg, attempt)); serr != nil {
			break
		}
	}

	// Unlike ExecuteWithRecovery, this entry point reports retry whenever
	// more than one attempt ran, success or not.
	if len(result.Attempts) > 1 && !result.Success {
		result.RecoveryMethod = RecoveryRetry
	}
	result.TotalTime = time.Since(start)
	return result
}
