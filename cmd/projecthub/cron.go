package main

import (
	"context"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/biz"
	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/data"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// healthRetention bounds how long an idle service's health record is kept.
const healthRetention = 24 * time.Hour

// StartMaintenanceCron starts the periodic housekeeping jobs: sweeping stale
// health records, rolling expired budget periods forward and refreshing the
// model catalog cache.
func StartMaintenanceCron(
	registry *biz.HealthRegistry,
	budgets *data.BudgetRepo,
	catalog *data.ModelCatalogRepo,
	logger log.Logger,
) *cron.Cron {
	helper := log.NewHelper(logger)

	c := cron.New(cron.WithSeconds())

	// Hourly: drop health records for services idle longer than the retention.
	if _, err := c.AddFunc("0 0 * * * *", func() {
		removed := registry.SweepStale(healthRetention)
		if removed > 0 {
			helper.Infow("msg", "swept stale service health records", "removed", removed)
		}
	}); err != nil {
		helper.Errorw("msg", "failed to register health sweep job", "error", err)
	}

	// Every 15 minutes: roll budget periods that have expired.
	if _, err := c.AddFunc("0 */15 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		rolled, err := budgets.ResetExpiredPeriods(ctx)
		if err != nil {
			helper.Errorw("msg", "budget period reset failed", "error", err)
			return
		}
		if rolled > 0 {
			helper.Infow("msg", "reset expired budget periods", "count", rolled)
		}
	}); err != nil {
		helper.Errorw("msg", "failed to register budget reset job", "error", err)
	}

	// Every 10 minutes: force the next catalog read to hit the database.
	if _, err := c.AddFunc("0 */10 * * * *", func() {
		catalog.InvalidateCatalog()
	}); err != nil {
		helper.Errorw("msg", "failed to register catalog refresh job", "error", err)
	}

	c.Start()
	helper.Infow("msg", "maintenance cron started",
		"jobs", "health_sweep,budget_reset,catalog_refresh")

	return c
}
