package biz

import (
	"context"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/conf"
	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/aierrors"

	"github.com/go-kratos/kratos/v2/log"
)

// RateLimitStore tracks per-user request and token counters over a fixed
// one-minute window.
type RateLimitStore interface {
	IncrementRequests(ctx context.Context, userID string) (int32, error)
	GetRequestCount(ctx context.Context, userID string) (int32, error)
	IncrementTokens(ctx context.Context, userID string, tokens int32) (int32, error)
	GetTokenCount(ctx context.Context, userID string) (int32, error)
}

// rateLimitRetryAfter is the wait hint for a rejected request: at most one
// full window.
const rateLimitRetryAfter = 60 * time.Second

// RateLimiterUsecase throttles assistant requests per user before they reach
// the AI upstream. Rejections carry the same rate-limit error kind as
// provider 429s, so the rest of the core treats both identically.
//
// Redis unavailability degrades to allowing the request: local throttling is
// protective, not billing-critical.
type RateLimiterUsecase struct {
	store RateLimitStore

	userRPM int32
	userTPM int32

	logger *log.Helper
}

// NewRateLimiterUsecase creates the per-user request throttle.
func NewRateLimiterUsecase(rc *conf.Resilience, store RateLimitStore, logger log.Logger) *RateLimiterUsecase {
	var rpm, tpm int32
	if rc != nil && rc.RateLimit != nil {
		rpm = rc.RateLimit.UserRPM
		tpm = rc.RateLimit.UserTPM
	}

	return &RateLimiterUsecase{
		store:   store,
		userRPM: rpm,
		userTPM: tpm,
		logger:  log.NewHelper(logger),
	}
}

// Allow checks the user's request and token budgets and reserves
// estimatedTokens when both pass. A zero limit disables that check.
func (uc *RateLimiterUsecase) Allow(ctx context.Context, userID string, estimatedTokens int32) error {
	if uc.userRPM > 0 {
		count, err := uc.store.IncrementRequests(ctx, userID)
		if err != nil {
			uc.logger.Warnf("request counter unavailable for user %s: %v (request allowed)", userID, err)
		} else if count > uc.userRPM {
			uc.logger.Warnw("request rate limit exceeded",
				"user_id", userID,
				"current", count,
				"limit", uc.userRPM)
			return &aierrors.RateLimitError{
				RetryAfter: rateLimitRetryAfter,
				Message:    "too many assistant requests this minute",
			}
		}
	}

	if uc.userTPM > 0 && estimatedTokens > 0 {
		current, err := uc.store.GetTokenCount(ctx, userID)
		if err != nil {
			uc.logger.Warnf("token counter unavailable for user %s: %v (request allowed)", userID, err)
			return nil
		}
		if current+estimatedTokens > uc.userTPM {
			uc.logger.Warnw("token rate limit exceeded",
				"user_id", userID,
				"current", current,
				"estimated", estimatedTokens,
				"limit", uc.userTPM)
			return &aierrors.RateLimitError{
				RetryAfter: rateLimitRetryAfter,
				Message:    "token budget for this minute exhausted",
			}
		}
		if _, err := uc.store.IncrementTokens(ctx, userID, estimatedTokens); err != nil {
			uc.logger.Warnf("token reservation failed for user %s: %v (request allowed)", userID, err)
		}
	}

	return nil
}

// SettleTokens corrects the reserved token count once the actual usage is
// known. Best effort.
func (uc *RateLimiterUsecase) SettleTokens(ctx context.Context, userID string, estimated, actual int32) {
	if uc.userTPM <= 0 {
		return
	}
	delta := actual - estimated
	if delta == 0 {
		return
	}
	if _, err := uc.store.IncrementTokens(ctx, userID, delta); err != nil {
		uc.logger.Warnf("token settlement failed for user %s: %v", userID, err)
	}
}
