package data

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// rateLimitWindow is the fixed counting window for both counters.
const rateLimitWindow = 60 * time.Second

// RateLimitRepo implements the biz RateLimitStore interface. It tracks
// per-user request and token counters in Redis using fixed one-minute
// windows.
type RateLimitRepo struct {
	rdb    *redis.Client
	logger *log.Helper
}

// NewRateLimitRepo creates a new rate limit repository.
func NewRateLimitRepo(data *Data, logger log.Logger) *RateLimitRepo {
	return &RateLimitRepo{
		rdb:    data.GetRedisClient(),
		logger: log.NewHelper(logger),
	}
}

func rateLimitKey(userID, limitType string) string {
	return fmt.Sprintf("rate:%s:%s", userID, limitType)
}

// IncrementRequests increments the per-minute request counter for a user and
// returns the new count. The window TTL is set on the first increment.
func (r *RateLimitRepo) IncrementRequests(ctx context.Context, userID string) (int32, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := rateLimitKey(userID, "rpm")
	count, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment request counter: %w", err)
	}

	if count == 1 {
		if err := r.rdb.Expire(ctx, key, rateLimitWindow).Err(); err != nil {
			r.logger.Warnf("failed to set request window expiry for user %s: %v", userID, err)
		}
	}

	return clampInt32(count), nil
}

// GetRequestCount returns the current request count for the user's window.
func (r *RateLimitRepo) GetRequestCount(ctx context.Context, userID string) (int32, error) {
	return r.getCount(ctx, rateLimitKey(userID, "rpm"))
}

// IncrementTokens adds tokens to the user's per-minute token counter and
// returns the new total. Negative deltas correct an earlier over-estimate.
func (r *RateLimitRepo) IncrementTokens(ctx context.Context, userID string, tokens int32) (int32, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	key := rateLimitKey(userID, "tpm")
	count, err := r.rdb.IncrBy(ctx, key, int64(tokens)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to increment token counter: %w", err)
	}

	if count == int64(tokens) {
		if err := r.rdb.Expire(ctx, key, rateLimitWindow).Err(); err != nil {
			r.logger.Warnf("failed to set token window expiry for user %s: %v", userID, err)
		}
	}

	return clampInt32(count), nil
}

// GetTokenCount returns the current token count for the user's window.
func (r *RateLimitRepo) GetTokenCount(ctx context.Context, userID string) (int32, error) {
	return r.getCount(ctx, rateLimitKey(userID, "tpm"))
}

func (r *RateLimitRepo) getCount(ctx context.Context, key string) (int32, error) {
	if r.rdb == nil {
		return 0, fmt.Errorf("redis client is nil")
	}

	raw, err := r.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get counter: %w", err)
	}

	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse counter: %w", err)
	}
	return clampInt32(count), nil
}

func clampInt32(n int64) int32 {
	if n > 2147483647 {
		return 2147483647
	}
	if n < -2147483648 {
		return -2147483648
	}
	return int32(n) // #nosec G115 -- overflow is handled above
}
