// Package biz contains the AI-operation resilience core: retry with backoff,
// per-service circuit breaking, budget gating, model failover and graceful
// degradation. This layer holds the recovery rules; collaborators (budget
// status, model selection, fallback content) are injected as interfaces.
package biz

import (
	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/data"

	"github.com/google/wire"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewHealthRegistry,
	NewRecoveryUsecase,
	NewBudgetUsecase,
	NewFailoverUsecase,
	NewMetricsCollector,
	NewDegradationUsecase,
	NewRateLimiterUsecase,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(BudgetStatusProvider), new(*data.BudgetRepo)),
	wire.Bind(new(ModelSelector), new(*data.ModelCatalogRepo)),
	wire.Bind(new(RateLimitStore), new(*data.RateLimitRepo)),
)
