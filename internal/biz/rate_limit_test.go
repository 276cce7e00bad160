package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/conf"
	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/aierrors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLimitStore struct {
	requests map[string]int32
	tokens   map[string]int32
	err      error
}

func newMemoryLimitStore() *memoryLimitStore {
	return &memoryLimitStore{requests: make(map[string]int32), tokens: make(map[string]int32)}
}

func (s *memoryLimitStore) IncrementRequests(ctx context.Context, userID string) (int32, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.requests[userID]++
	return s.requests[userID], nil
}

func (s *memoryLimitStore) GetRequestCount(ctx context.Context, userID string) (int32, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.requests[userID], nil
}

func (s *memoryLimitStore) IncrementTokens(ctx context.Context, userID string, tokens int32) (int32, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.tokens[userID] += tokens
	return s.tokens[userID], nil
}

func (s *memoryLimitStore) GetTokenCount(ctx context.Context, userID string) (int32, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.tokens[userID], nil
}

func newTestLimiter(store RateLimitStore, rpm, tpm int32) *RateLimiterUsecase {
	rc := &conf.Resilience{RateLimit: &conf.RateLimit{UserRPM: rpm, UserTPM: tpm}}
	return NewRateLimiterUsecase(rc, store, log.DefaultLogger)
}

func TestRateLimiter_AllowWithinLimits(t *testing.T) {
	store := newMemoryLimitStore()
	uc := newTestLimiter(store, 2, 1000)
	ctx := context.Background()

	require.NoError(t, uc.Allow(ctx, "u1", 300))
	require.NoError(t, uc.Allow(ctx, "u1", 300))
	assert.Equal(t, int32(2), store.requests["u1"])
	assert.Equal(t, int32(600), store.tokens["u1"])
}

func TestRateLimiter_RequestLimitExceeded(t *testing.T) {
	store := newMemoryLimitStore()
	uc := newTestLimiter(store, 2, 0)
	ctx := context.Background()

	require.NoError(t, uc.Allow(ctx, "u1", 0))
	require.NoError(t, uc.Allow(ctx, "u1", 0))

	err := uc.Allow(ctx, "u1", 0)
	var rlErr *aierrors.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, 60*time.Second, rlErr.RetryAfter)
	assert.Equal(t, aierrors.KindRateLimit, aierrors.Classify(err))

	// Other users keep their own window.
	assert.NoError(t, uc.Allow(ctx, "u2", 0))
}

func TestRateLimiter_TokenLimitExceeded(t *testing.T) {
	store := newMemoryLimitStore()
	uc := newTestLimiter(store, 0, 1000)
	ctx := context.Background()

	require.NoError(t, uc.Allow(ctx, "u1", 800))

	err := uc.Allow(ctx, "u1", 300)
	var rlErr *aierrors.RateLimitError
	require.ErrorAs(t, err, &rlErr)
	// The rejected request reserves nothing.
	assert.Equal(t, int32(800), store.tokens["u1"])
}

func TestRateLimiter_ZeroLimitsDisableChecks(t *testing.T) {
	store := newMemoryLimitStore()
	uc := newTestLimiter(store, 0, 0)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, uc.Allow(ctx, "u1", 10000))
	}
	assert.Empty(t, store.requests)
	assert.Empty(t, store.tokens)
}

func TestRateLimiter_StoreFailureAllowsRequest(t *testing.T) {
	store := newMemoryLimitStore()
	store.err = errors.New("redis down")
	uc := newTestLimiter(store, 2, 1000)

	// Availability wins when the counters are unreachable.
	assert.NoError(t, uc.Allow(context.Background(), "u1", 300))
}

func TestRateLimiter_SettleTokens(t *testing.T) {
	store := newMemoryLimitStore()
	uc := newTestLimiter(store, 0, 1000)
	ctx := context.Background()

	require.NoError(t, uc.Allow(ctx, "u1", 500))
	assert.Equal(t, int32(500), store.tokens["u1"])

	// Actual usage was lower: the surplus is released.
	uc.SettleTokens(ctx, "u1", 500, 200)
	assert.Equal(t, int32(200), store.tokens["u1"])

	// Failed upstream call releases the whole reservation.
	require.NoError(t, uc.Allow(ctx, "u1", 300))
	uc.SettleTokens(ctx, "u1", 300, 0)
	assert.Equal(t, int32(200), store.tokens["u1"])

	// Equal estimate and actual is a no-op.
	uc.SettleTokens(ctx, "u1", 100, 100)
	assert.Equal(t, int32(200), store.tokens["u1"])
}
