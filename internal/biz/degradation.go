package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/conf"
	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/aierrors"

	"github.com/go-kratos/kratos/v2/log"
)

// DegradationLevel describes how much response quality or cost was reduced to
// reach an outcome.
type DegradationLevel string

const (
	DegradationNone    DegradationLevel = "none"
	DegradationPartial DegradationLevel = "partial"
	DegradationFull    DegradationLevel = "full"
)

// ExecutionContext carries the request-scoped inputs of one AI operation.
type ExecutionContext struct {
	UserID              string
	Query               string
	ConversationContext string
	ServiceName         string
	Label               string
	Model               string
	// MaxCost optionally bounds failover model selection (cost per 1K tokens).
	MaxCost float64
}

// ExecutionResult is the uniform record returned by the orchestrator.
// Err always carries the terminal error on failure, alongside a user-facing
// message derived purely from the error kind.
type ExecutionResult[T any] struct {
	Success          bool
	Result           T
	Err              error
	Attempts         []AttemptRecord
	TotalTime        time.Duration
	RecoveryMethod   RecoveryMethod
	DegradationLevel DegradationLevel
	UserMessage      string
}

// GracefulResult is the outcome of the simpler two-operation variant.
type GracefulResult[T any] struct {
	Result       T
	UsedFallback bool
	Err          error
}

// DegradationUsecase is the top-level facade combining the retry executor,
// budget gate, model failover and caller-supplied fallback operations into a
// single execution contract.
type DegradationUsecase struct {
	recovery *RecoveryUsecase
	budget   *BudgetUsecase
	failover *FailoverUsecase
	metrics  *MetricsCollector

	autoFallback bool

	logger *log.Helper
}

// NewDegradationUsecase creates the orchestrator.
func NewDegradationUsecase(
	rc *conf.Resilience,
	recovery *RecoveryUsecase,
	budget *BudgetUsecase,
	failover *FailoverUsecase,
	metrics *MetricsCollector,
	logger log.Logger,
) *DegradationUsecase {
	autoFallback := true
	if rc != nil {
		autoFallback = rc.AutoFallback
	}

	return &DegradationUsecase{
		recovery:     recovery,
		budget:       budget,
		failover:     failover,
		metrics:      metrics,
		autoFallback: autoFallback,
		logger:       log.NewHelper(logger),
	}
}

// Recovery exposes the retry executor, for callers composing their own paths.
func (uc *DegradationUsecase) Recovery() *RecoveryUsecase { return uc.recovery }

// Budget exposes the budget gate.
func (uc *DegradationUsecase) Budget() *BudgetUsecase { return uc.budget }

// Failover exposes the model failover controller.
func (uc *DegradationUsecase) Failover() *FailoverUsecase { return uc.failover }

// Metrics exposes the error metrics collector.
func (uc *DegradationUsecase) Metrics() *MetricsCollector { return uc.metrics }

// ExecuteWithErrorHandling is the primary entry point of the resilience core.
//
// Sequence: budget precondition check, then the retry executor, then - when
// the primary is exhausted, a fallback was supplied and automatic fallback is
// enabled - a single invocation of the fallback operation. The fallback is
// never retried.
func ExecuteWithErrorHandling[T any](
	ctx context.Context,
	uc *DegradationUsecase,
	op Operation[T],
	ectx ExecutionContext,
	fallback Operation[T],
) *ExecutionResult[T] {
	start := time.Now()
	service := ectx.ServiceName

	if err := uc.budget.CheckBudgetConstraints(ctx, ectx.UserID); err != nil {
		uc.metrics.RecordError(ectx.UserID, service, err)
		return &ExecutionResult[T]{
			Err:              err,
			TotalTime:        time.Since(start),
			RecoveryMethod:   RecoveryNone,
			DegradationLevel: DegradationFull,
			UserMessage:      uc.CreateUserFriendlyErrorMessage(err, service),
		}
	}

	rec := ExecuteWithRecovery(ctx, uc.recovery, op, service, ectx.Label, nil)
	if rec.Success {
		uc.metrics.RecordRecovery(service, rec.RecoveryMethod)
		return &ExecutionResult[T]{
			Success:          true,
			Result:           rec.Result,
			Attempts:         rec.Attempts,
			TotalTime:        time.Since(start),
			RecoveryMethod:   rec.RecoveryMethod,
			DegradationLevel: DegradationNone,
		}
	}

	uc.metrics.RecordError(ectx.UserID, service, rec.Err)

	if fallback != nil && uc.autoFallback {
		uc.logger.Infow("primary operation exhausted, invoking fallback",
			"service", service,
			"operation", ectx.Label,
			"primary_error", rec.Err)

		value, err := fallback(ctx)
		if err == nil {
			uc.metrics.RecordRecovery(service, RecoveryFallbackResponse)
			return &ExecutionResult[T]{
				Success:          true,
				Result:           value,
				Attempts:         rec.Attempts,
				TotalTime:        time.Since(start),
				RecoveryMethod:   RecoveryFallbackResponse,
				DegradationLevel: DegradationPartial,
			}
		}

		uc.logger.Errorw("fallback operation failed",
			"service", service,
			"operation", ectx.Label,
			"error", err)
		uc.metrics.RecordError(ectx.UserID, service, err)

		return &ExecutionResult[T]{
			Err:              err,
			Attempts:         rec.Attempts,
			TotalTime:        time.Since(start),
			RecoveryMethod:   RecoveryFallbackResponse,
			DegradationLevel: DegradationFull,
			UserMessage:      uc.CreateUserFriendlyErrorMessage(err, service),
		}
	}

	return &ExecutionResult[T]{
		Err:              rec.Err,
		Attempts:         rec.Attempts,
		TotalTime:        time.Since(start),
		RecoveryMethod:   rec.RecoveryMethod,
		DegradationLevel: DegradationFull,
		UserMessage:      uc.CreateUserFriendlyErrorMessage(rec.Err, service),
	}
}

// ExecuteWithGracefulDegradation is the simpler two-operation variant with no
// retry layer, for deterministic failures where retrying is not meaningful.
// The primary runs once; on any failure the fallback runs once; a fallback
// failure propagates unwrapped.
func ExecuteWithGracefulDegradation[T any](
	ctx context.Context,
	uc *DegradationUsecase,
	primary, fallback Operation[T],
	service, label string,
) *GracefulResult[T] {
	value, err := primary(ctx)
	if err == nil {
		uc.recovery.registry.RecordSuccess(service)
		return &GracefulResult[T]{Result: value}
	}

	uc.recovery.registry.RecordFailure(service)
	uc.logger.Warnw("primary operation failed, degrading to fallback",
		"service", service,
		"operation", label,
		"error", err)

	value, ferr := fallback(ctx)
	if ferr != nil {
		return &GracefulResult[T]{UsedFallback: true, Err: ferr}
	}
	return &GracefulResult[T]{Result: value, UsedFallback: true}
}

// CreateUserFriendlyErrorMessage maps an error to a message safe to show to
// end users. The message depends only on the normalized error kind: no stack
// traces, provider error text or query content leak through.
func (uc *DegradationUsecase) CreateUserFriendlyErrorMessage(err error, service string) string {
	switch aierrors.Classify(err) {
	case aierrors.KindTimeout:
		return "The AI assistant took too long to respond. Please try again."
	case aierrors.KindRateLimit:
		return "The AI assistant is receiving too many requests right now. Please wait a moment and try again."
	case aierrors.KindCircuitOpen:
		return "The AI assistant is temporarily unavailable while it recovers. Please try again shortly."
	case aierrors.KindBudgetConstraint:
		return "Your AI usage budget for this period has been reached. Contact your supervisor to increase it."
	case aierrors.KindModelFailure:
		return "The AI model that serves your request is currently unavailable. Please try again."
	case aierrors.KindTransientUpstream:
		return "A temporary problem occurred while reaching the AI assistant. Please try again."
	case aierrors.KindValidation:
		return "Your request could not be processed. Please rephrase your question and try again."
	default:
		return fmt.Sprintf("The %s service encountered an unexpected problem. Please try again later.", service)
	}
}

// GetRecoveryRecommendations derives actionable diagnostics for a service
// from its health state.
func (uc *DegradationUsecase) GetRecoveryRecommendations(service string) []string {
	var recs []string

	health, ok := uc.recovery.registry.GetServiceHealth(service)
	if !ok {
		return []string{"no activity recorded for this service yet"}
	}

	if health.CircuitOpen {
		if health.CircuitOpenUntil != nil {
			recs = append(recs, fmt.Sprintf("circuit breaker is open until %s; wait for the cooldown or close it manually",
				health.CircuitOpenUntil.Format(time.RFC3339)))
		} else {
			recs = append(recs, "circuit breaker is open; close it manually once the upstream has recovered")
		}
	}

	switch {
	case health.ConsecutiveFailures >= 3:
		recs = append(recs, "repeated consecutive failures; check the AI provider status page and API credentials")
	case health.ConsecutiveFailures > 0:
		recs = append(recs, "recent failures observed; monitor the next few requests")
	}

	if health.LastSuccessAt == nil && health.ErrorCount > 0 {
		recs = append(recs, "service has never succeeded; verify its configuration and connectivity")
	}

	if len(recs) == 0 {
		recs = append(recs, "service is healthy; no action required")
	}
	return recs
}
