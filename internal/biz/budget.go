package biz

import (
	"context"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/conf"
	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/model"
	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/aierrors"

	"github.com/go-kratos/kratos/v2/log"
)

// Default budget thresholds, used when no configuration is supplied.
const (
	DefaultWarningThreshold  = 0.8
	DefaultCriticalThreshold = 0.95
)

// BudgetStatusProvider supplies per-user budget snapshots. The core treats it
// as a request-scoped, side-effect-free read and never mutates budget state.
type BudgetStatusProvider interface {
	GetBudgetStatus(ctx context.Context, userID string) (*model.BudgetStatus, error)
}

// BudgetUsecase classifies a caller's spend and selects a degradation level
// before an AI operation runs.
type BudgetUsecase struct {
	provider BudgetStatusProvider

	warningThreshold  float64
	criticalThreshold float64
	enableDegradation bool

	logger *log.Helper
}

// NewBudgetUsecase creates the budget gate with thresholds from config.
func NewBudgetUsecase(rc *conf.Resilience, provider BudgetStatusProvider, logger log.Logger) *BudgetUsecase {
	warning := DefaultWarningThreshold
	critical := DefaultCriticalThreshold
	degradation := true
	if rc != nil {
		if rc.Budget != nil {
			if rc.Budget.WarningThreshold > 0 {
				warning = rc.Budget.WarningThreshold
			}
			if rc.Budget.CriticalThreshold > 0 {
				critical = rc.Budget.CriticalThreshold
			}
		}
		degradation = rc.EnableDegradation
	}

	return &BudgetUsecase{
		provider:          provider,
		warningThreshold:  warning,
		criticalThreshold: critical,
		enableDegradation: degradation,
		logger:            log.NewHelper(logger),
	}
}

// fetchStatus reads the budget snapshot, degrading to "assume healthy" when
// the provider itself is unavailable. Availability is prioritized over strict
// budget enforcement for this failure mode only.
func (uc *BudgetUsecase) fetchStatus(ctx context.Context, userID string) *model.BudgetStatus {
	status, err := uc.provider.GetBudgetStatus(ctx, userID)
	if err != nil || status == nil {
		uc.logger.Warnw("budget status unavailable, assuming healthy",
			"user_id", userID,
			"error", err)
		return &model.BudgetStatus{BudgetUtilization: 0}
	}
	return status
}

// CheckBudgetConstraints is a side-effect-free precondition check. It returns
// a BudgetConstraintError only when utilization has crossed the critical
// threshold; a warning-level budget never errors.
func (uc *BudgetUsecase) CheckBudgetConstraints(ctx context.Context, userID string) error {
	status := uc.fetchStatus(ctx, userID)

	if status.BudgetUtilization >= uc.criticalThreshold {
		return &aierrors.BudgetConstraintError{
			RemainingBudget:   status.RemainingBudget,
			BudgetUtilization: status.BudgetUtilization,
		}
	}
	return nil
}

// BudgetedOperation is an operation that can run in a reduced-cost mode when
// degraded is true (cheaper model, shorter completion, cached context).
type BudgetedOperation[T any] func(ctx context.Context, degraded bool) (T, error)

// BudgetResult is the outcome of HandleBudgetConstraint.
type BudgetResult[T any] struct {
	Success          bool
	Result           T
	Err              error
	RecoveryMethod   RecoveryMethod
	DegradationLevel DegradationLevel
	BudgetStatus     *model.BudgetStatus
	TotalTime        time.Duration
}

// HandleBudgetConstraint gates the operation on the caller's budget.
//
// Critical utilization fails fast with a BudgetConstraintError when
// degradation is disabled; with degradation enabled the operation runs in
// degraded mode and the result reports budget_degradation at full level.
// Warning utilization runs the operation unchanged but flags the result as
// partially degraded so the caller can warn the user.
func HandleBudgetConstraint[T any](
	ctx context.Context,
	uc *BudgetUsecase,
	op BudgetedOperation[T],
	ectx ExecutionContext,
) *BudgetResult[T] {
	start := time.Now()
	status := uc.fetchStatus(ctx, ectx.UserID)
	result := &BudgetResult[T]{
		RecoveryMethod:   RecoveryNone,
		DegradationLevel: DegradationNone,
		BudgetStatus:     status,
	}

	switch {
	case status.BudgetUtilization >= uc.criticalThreshold:
		if !uc.enableDegradation {
			result.Err = &aierrors.BudgetConstraintError{
				RemainingBudget:   status.RemainingBudget,
				BudgetUtilization: status.BudgetUtilization,
			}
			result.DegradationLevel = DegradationFull
			result.TotalTime = time.Since(start)

			uc.logger.Warnw("request rejected: budget critical and degradation disabled",
				"user_id", ectx.UserID,
				"utilization", status.BudgetUtilization)
			return result
		}

		uc.logger.Infow("budget critical, running degraded operation",
			"user_id", ectx.UserID,
			"utilization", status.BudgetUtilization)

		value, err := op(ctx, true)
		result.Result = value
		result.Err = err
		result.Success = err == nil
		result.RecoveryMethod = RecoveryBudgetDegradation
		result.DegradationLevel = DegradationFull

	case status.BudgetUtilization >= uc.warningThreshold:
		// Informational only: the operation itself is unchanged.
		value, err := op(ctx, false)
		result.Result = value
		result.Err = err
		result.Success = err == nil
		result.DegradationLevel = DegradationPartial

		uc.logger.Infow("budget warning threshold crossed",
			"user_id", ectx.UserID,
			"utilization", status.BudgetUtilization)

	default:
		value, err := op(ctx, false)
		result.Result = value
		result.Err = err
		result.Success = err == nil
	}

	result.TotalTime = time.Since(start)
	return result
}
