package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// UserBudget is the per-user AI spend record for the current billing period.
type UserBudget struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	UserID      string `gorm:"size:64;uniqueIndex;not null"`
	TotalBudget float64
	SpentAmount float64
	PeriodStart time.Time
	PeriodEnd   time.Time
	UpdatedAt   time.Time
}

// TableName sets the table name for GORM.
func (UserBudget) TableName() string {
	return "ai_user_budgets"
}

// BudgetRepo implements the biz BudgetStatusProvider interface. Persistent
// spend lives in MySQL; a Redis counter absorbs in-flight spend between
// database flushes so the utilization snapshot stays current.
type BudgetRepo struct {
	db     *gorm.DB
	rdb    *redis.Client
	logger *log.Helper
}

// NewBudgetRepo creates a new budget repository.
func NewBudgetRepo(data *Data, db *gorm.DB, logger log.Logger) *BudgetRepo {
	return &BudgetRepo{
		db:     db,
		rdb:    data.GetRedisClient(),
		logger: log.NewHelper(logger),
	}
}

func budgetSpendKey(userID string) string {
	return fmt.Sprintf("%s:spend:%s", CacheKeyBudget, userID)
}

// GetBudgetStatus returns the caller's budget snapshot. A user without a
// budget row is treated as unconstrained. Redis failures degrade to the
// database figure alone.
func (r *BudgetRepo) GetBudgetStatus(ctx context.Context, userID string) (*model.BudgetStatus, error) {
	var budget UserBudget
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&budget).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No budget configured for this user: unconstrained
			return &model.BudgetStatus{BudgetUtilization: 0}, nil
		}
		return nil, fmt.Errorf("failed to get budget for user %s: %w", userID, err)
	}

	spent := budget.SpentAmount

	// Overlay pending in-period spend from Redis
	if r.rdb != nil {
		pending, err := r.rdb.Get(ctx, budgetSpendKey(userID)).Float64()
		if err != nil && !errors.Is(err, redis.Nil) {
			r.logger.Warnf("Redis pending spend read failed for user %s: %v (using database figure)", userID, err)
		} else if err == nil {
			spent += pending
		}
	}

	status := &model.BudgetStatus{
		TotalBudget:     budget.TotalBudget,
		RemainingBudget: budget.TotalBudget - spent,
	}
	if budget.TotalBudget > 0 {
		status.BudgetUtilization = spent / budget.TotalBudget
		if status.BudgetUtilization > 1 {
			status.BudgetUtilization = 1
		}
	}
	return status, nil
}

// AddSpend records the cost of a completed AI call. The Redis counter is
// incremented first for freshness; the database update is the durable record.
func (r *BudgetRepo) AddSpend(ctx context.Context, userID string, cost float64) error {
	if cost <= 0 {
		return nil
	}

	if r.rdb != nil {
		if err := r.rdb.IncrByFloat(ctx, budgetSpendKey(userID), cost).Err(); err != nil {
			r.logger.Warnf("Redis spend increment failed for user %s: %v", userID, err)
		}
	}

	result := r.db.WithContext(ctx).
		Model(&UserBudget{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"spent_amount": gorm.Expr("spent_amount + ?", cost),
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record spend for user %s: %w", userID, result.Error)
	}

	// Database is authoritative once updated: drop the Redis overlay so the
	// pending counter is not double counted.
	if result.RowsAffected > 0 && r.rdb != nil {
		if err := r.rdb.Del(ctx, budgetSpendKey(userID)).Err(); err != nil {
			r.logger.Warnf("failed to clear pending spend for user %s: %v", userID, err)
		}
	}

	return nil
}

// ResetExpiredPeriods rolls budgets whose period has ended into a fresh
// period with zero spend. Called by the periodic maintenance job.
func (r *BudgetRepo) ResetExpiredPeriods(ctx context.Context) (int, error) {
	now := time.Now()

	var expired []UserBudget
	if err := r.db.WithContext(ctx).Where("period_end < ?", now).Find(&expired).Error; err != nil {
		return 0, fmt.Errorf("failed to list expired budgets: %w", err)
	}

	reset := 0
	for _, budget := range expired {
		periodLen := budget.PeriodEnd.Sub(budget.PeriodStart)
		if periodLen <= 0 {
			periodLen = 30 * 24 * time.Hour
		}

		result := r.db.WithContext(ctx).
			Model(&UserBudget{}).
			Where("id = ? AND period_end < ?", budget.ID, now).
			Updates(map[string]interface{}{
				"spent_amount": 0,
				"period_start": now,
				"period_end":   now.Add(periodLen),
				"updated_at":   now,
			})
		if result.Error != nil {
			r.logger.Warnf("failed to reset budget period for user %s: %v", budget.UserID, result.Error)
			continue
		}
		if result.RowsAffected == 0 {
			continue
		}

		if r.rdb != nil {
			if err := r.rdb.Del(ctx, budgetSpendKey(budget.UserID)).Err(); err != nil {
				r.logger.Warnf("failed to clear pending spend for user %s: %v", budget.UserID, err)
			}
		}
		reset++
	}

	r.logger.Infow("budget period reset completed",
		"expired", len(expired),
		"reset", reset)
	return reset, nil
}
