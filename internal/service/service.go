package service

import (
	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/data"

	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(
	NewAssistantService,
	NewOpsService,
	wire.Bind(new(FallbackStore), new(*data.FallbackRepo)),
	wire.Bind(new(BudgetLedger), new(*data.BudgetRepo)),
	wire.Bind(new(ModelPricer), new(*data.ModelCatalogRepo)),
)
