package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/model"
	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/aierrors"

	"github.com/go-kratos/kratos/v2/log"
)

// ModelSelector supplies an alternative model for a query. Implementations
// must return a selection even when no better model exists; returning the
// same identifier signals "no alternative".
type ModelSelector interface {
	SelectOptimalModel(ctx context.Context, query, conversationContext string, constraints model.ModelConstraints) (*model.ModelSelection, error)
}

// ModelOperation is an operation parameterized by the model that serves it.
type ModelOperation[T any] func(ctx context.Context, model string) (T, error)

// FailoverResult is the outcome of HandleModelFailure.
type FailoverResult[T any] struct {
	Success          bool
	Result           T
	Err              error
	RecoveryMethod   RecoveryMethod
	DegradationLevel DegradationLevel
	FallbackModel    string
	TotalTime        time.Duration
}

// FailoverUsecase re-routes a failed model call to a cheaper or faster
// alternative chosen by the model selector.
type FailoverUsecase struct {
	selector ModelSelector
	logger   *log.Helper
}

// NewFailoverUsecase creates the model failover controller.
func NewFailoverUsecase(selector ModelSelector, logger log.Logger) *FailoverUsecase {
	return &FailoverUsecase{
		selector: selector,
		logger:   log.NewHelper(logger),
	}
}

// HandleModelFailure asks the selector for an alternative to originalModel and
// re-invokes the operation with it. The selector returning the original model
// means no alternative exists, which is a terminal failure for this path.
// Every result from this entry point reports fallback_model: partial
// degradation on success, full on failure.
func HandleModelFailure[T any](
	ctx context.Context,
	uc *FailoverUsecase,
	originalModel string,
	op ModelOperation[T],
	ectx ExecutionContext,
) *FailoverResult[T] {
	start := time.Now()
	result := &FailoverResult[T]{
		RecoveryMethod:   RecoveryFallbackModel,
		DegradationLevel: DegradationFull,
	}

	selection, err := uc.selector.SelectOptimalModel(ctx, ectx.Query, ectx.ConversationContext, model.ModelConstraints{
		MaxCost:         ectx.MaxCost,
		PrioritizeSpeed: true,
	})
	if err != nil {
		result.Err = fmt.Errorf("model selection failed: %w", err)
		result.TotalTime = time.Since(start)

		uc.logger.Errorw("model failover aborted: selector unavailable",
			"original_model", originalModel,
			"error", err)
		return result
	}

	if selection.Model == originalModel {
		result.Err = aierrors.ErrNoAlternativeModel
		result.TotalTime = time.Since(start)

		uc.logger.Warnw("model failover aborted: no alternative model",
			"original_model", originalModel)
		return result
	}

	uc.logger.Infow("failing over to alternative model",
		"original_model", originalModel,
		"fallback_model", selection.Model,
		"reason", selection.Reason)

	result.FallbackModel = selection.Model
	value, err := op(ctx, selection.Model)
	if err != nil {
		result.Err = err
		result.TotalTime = time.Since(start)

		uc.logger.Errorw("fallback model also failed",
			"fallback_model", selection.Model,
			"error", err)
		return result
	}

	result.Success = true
	result.Result = value
	result.DegradationLevel = DegradationPartial
	result.TotalTime = time.Since(start)
	return result
}
