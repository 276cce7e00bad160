package data

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"
)

// AIModelInfo is a catalog row describing one model reachable through the
// routing API.
type AIModelInfo struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Model        string `gorm:"size:128;uniqueIndex;not null"`
	Provider     string `gorm:"size:64"`
	CostPer1K    float64
	AvgLatencyMs int
	Active       bool `gorm:"index"`
	Priority     int
	UpdatedAt    time.Time
}

// TableName sets the table name for GORM.
func (AIModelInfo) TableName() string {
	return "ai_models"
}

const catalogCacheKey = "active"

// ModelCatalogRepo implements the biz ModelSelector interface over the model
// catalog table, with an in-process expiring cache in front of the database.
type ModelCatalogRepo struct {
	db     *gorm.DB
	cache  *expirable.LRU[string, []AIModelInfo]
	logger *log.Helper
}

// NewModelCatalogRepo creates a new model catalog repository.
func NewModelCatalogRepo(db *gorm.DB, logger log.Logger) *ModelCatalogRepo {
	return &ModelCatalogRepo{
		db:     db,
		cache:  expirable.NewLRU[string, []AIModelInfo](8, nil, TTLCatalog),
		logger: log.NewHelper(logger),
	}
}

// ListActiveModels returns the active catalog, from cache when fresh.
func (r *ModelCatalogRepo) ListActiveModels(ctx context.Context) ([]AIModelInfo, error) {
	if models, ok := r.cache.Get(catalogCacheKey); ok {
		return models, nil
	}

	var models []AIModelInfo
	if err := r.db.WithContext(ctx).Where("active = ?", true).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list active models: %w", err)
	}

	r.cache.Add(catalogCacheKey, models)
	return models, nil
}

// InvalidateCatalog drops the cached catalog snapshot.
func (r *ModelCatalogRepo) InvalidateCatalog() {
	r.cache.Remove(catalogCacheKey)
}

// CostPer1K returns the per-1K-token price of a model, or 0 when the model
// is not in the catalog so spend tracking degrades instead of failing.
func (r *ModelCatalogRepo) CostPer1K(ctx context.Context, modelName string) (float64, error) {
	models, err := r.ListActiveModels(ctx)
	if err != nil {
		return 0, err
	}
	for _, m := range models {
		if m.Model == modelName {
			return m.CostPer1K, nil
		}
	}
	return 0, nil
}

// SelectOptimalModel picks the best active model under the given constraints.
// With PrioritizeSpeed set, lower latency wins; otherwise lower cost wins.
// Ties fall back to the catalog priority.
func (r *ModelCatalogRepo) SelectOptimalModel(ctx context.Context, query, conversationContext string, constraints model.ModelConstraints) (*model.ModelSelection, error) {
	models, err := r.ListActiveModels(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]AIModelInfo, 0, len(models))
	for _, m := range models {
		if constraints.MaxCost > 0 && m.CostPer1K > constraints.MaxCost {
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no active model satisfies constraints (max_cost=%.4f)", constraints.MaxCost)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if constraints.PrioritizeSpeed {
			if a.AvgLatencyMs != b.AvgLatencyMs {
				return a.AvgLatencyMs < b.AvgLatencyMs
			}
			if a.CostPer1K != b.CostPer1K {
				return a.CostPer1K < b.CostPer1K
			}
		} else {
			if a.CostPer1K != b.CostPer1K {
				return a.CostPer1K < b.CostPer1K
			}
			if a.AvgLatencyMs != b.AvgLatencyMs {
				return a.AvgLatencyMs < b.AvgLatencyMs
			}
		}
		return a.Priority < b.Priority
	})

	best := candidates[0]
	reason := "lowest cost"
	if constraints.PrioritizeSpeed {
		reason = "lowest latency"
	}

	r.logger.Debugw("model selected",
		"model", best.Model,
		"cost_per_1k", best.CostPer1K,
		"avg_latency_ms", best.AvgLatencyMs,
		"reason", reason)

	return &model.ModelSelection{
		Model:         best.Model,
		EstimatedCost: best.CostPer1K,
		Reason:        reason,
	}, nil
}
