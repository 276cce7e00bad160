package biz

import (
	"context"
	"testing"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/internal/model"
	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/aierrors"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// newTestOrchestrator wires the full core with a stubbed budget provider and
// model selector, instant backoff sleeps and an isolated metrics registry.
func newTestOrchestrator(t *testing.T, utilization float64) *DegradationUsecase {
	t.Helper()
	rc := fastResilienceConf()

	registry := NewHealthRegistry(rc, log.DefaultLogger)
	recovery := NewRecoveryUsecase(rc, registry, log.DefaultLogger)
	recovery.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	provider := new(mockBudgetProvider)
	provider.On("GetBudgetStatus", mock.Anything, mock.Anything).Return(budgetStatus(utilization), nil)
	budget := NewBudgetUsecase(rc, provider, log.DefaultLogger)

	selector := &stubSelector{selection: &model.ModelSelection{Model: "anthropic/claude-3-haiku"}}
	failover := NewFailoverUsecase(selector, log.DefaultLogger)

	metrics := NewMetricsCollector(prometheus.NewRegistry(), log.DefaultLogger)

	return NewDegradationUsecase(rc, recovery, budget, failover, metrics, log.DefaultLogger)
}

func askCtx() ExecutionContext {
	return ExecutionContext{
		UserID:      "user-1",
		Query:       "how do I structure my final report?",
		ServiceName: "openrouter",
		Label:       "chat",
		Model:       "openai/gpt-4o-mini",
	}
}

func TestExecuteWithErrorHandling_PrimarySucceeds(t *testing.T) {
	uc := newTestOrchestrator(t, 0.2)

	res := ExecuteWithErrorHandling(context.Background(), uc, func(ctx context.Context) (string, error) {
		return "answer", nil
	}, askCtx(), nil)

	require.True(t, res.Success)
	assert.Equal(t, "answer", res.Result)
	assert.Equal(t, RecoveryNone, res.RecoveryMethod)
	assert.Equal(t, DegradationNone, res.DegradationLevel)
	assert.Empty(t, res.UserMessage)
}

func TestExecuteWithErrorHandling_BudgetPrecheckRejects(t *testing.T) {
	uc := newTestOrchestrator(t, 0.97)

	invoked := false
	res := ExecuteWithErrorHandling(context.Background(), uc, func(ctx context.Context) (string, error) {
		invoked = true
		return "", nil
	}, askCtx(), nil)

	require.False(t, res.Success)
	assert.False(t, invoked)
	assert.Equal(t, DegradationFull, res.DegradationLevel)
	assert.Contains(t, res.UserMessage, "budget")

	var bcErr *aierrors.BudgetConstraintError
	assert.ErrorAs(t, res.Err, &bcErr)

	// The rejection is recorded against the user.
	m, ok := uc.Metrics().GetMetrics("user-1")
	require.True(t, ok)
	assert.Equal(t, uint(1), m.ErrorsByKind[string(aierrors.KindBudgetConstraint)])
}

func TestExecuteWithErrorHandling_RetryRecovers(t *testing.T) {
	uc := newTestOrchestrator(t, 0.2)

	calls := 0
	res := ExecuteWithErrorHandling(context.Background(), uc, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", transientErr()
		}
		return "answer", nil
	}, askCtx(), nil)

	require.True(t, res.Success)
	assert.Equal(t, RecoveryRetry, res.RecoveryMethod)
	assert.Len(t, res.Attempts, 2)
}

func TestExecuteWithErrorHandling_FallbackServes(t *testing.T) {
	uc := newTestOrchestrator(t, 0.2)

	fallbackCalls := 0
	res := ExecuteWithErrorHandling(context.Background(), uc, func(ctx context.Context) (string, error) {
		return "", transientErr()
	}, askCtx(), func(ctx context.Context) (string, error) {
		fallbackCalls++
		return "cached answer", nil
	})

	require.True(t, res.Success)
	assert.Equal(t, "cached answer", res.Result)
	assert.Equal(t, RecoveryFallbackResponse, res.RecoveryMethod)
	assert.Equal(t, DegradationPartial, res.DegradationLevel)
	// The fallback is invoked once, never retried.
	assert.Equal(t, 1, fallbackCalls)
	// Attempt history from the exhausted primary is preserved.
	assert.Len(t, res.Attempts, 3)
}

func TestExecuteWithErrorHandling_FallbackAlsoFails(t *testing.T) {
	uc := newTestOrchestrator(t, 0.2)

	fallbackErr := &aierrors.UpstreamError{StatusCode: 500, Message: "cache miss"}
	res := ExecuteWithErrorHandling(context.Background(), uc, func(ctx context.Context) (string, error) {
		return "", transientErr()
	}, askCtx(), func(ctx context.Context) (string, error) {
		return "", fallbackErr
	})

	require.False(t, res.Success)
	assert.ErrorIs(t, res.Err, fallbackErr)
	assert.Equal(t, RecoveryFallbackResponse, res.RecoveryMethod)
	assert.Equal(t, DegradationFull, res.DegradationLevel)
	assert.NotEmpty(t, res.UserMessage)

	m, _ := uc.Metrics().GetMetrics("user-1")
	// Primary exhaustion plus fallback failure.
	assert.Equal(t, uint(2), m.TotalErrors)
}

func TestExecuteWithErrorHandling_NoFallbackTerminal(t *testing.T) {
	uc := newTestOrchestrator(t, 0.2)

	res := ExecuteWithErrorHandling(context.Background(), uc, func(ctx context.Context) (string, error) {
		return "", &aierrors.TimeoutError{Timeout: time.Second}
	}, askCtx(), nil)

	require.False(t, res.Success)
	assert.Equal(t, DegradationFull, res.DegradationLevel)
	assert.Contains(t, res.UserMessage, "too long")
}

func TestExecuteWithErrorHandling_AutoFallbackDisabled(t *testing.T) {
	uc := newTestOrchestrator(t, 0.2)
	uc.autoFallback = false

	fallbackInvoked := false
	res := ExecuteWithErrorHandling(context.Background(), uc, func(ctx context.Context) (string, error) {
		return "", transientErr()
	}, askCtx(), func(ctx context.Context) (string, error) {
		fallbackInvoked = true
		return "cached answer", nil
	})

	require.False(t, res.Success)
	assert.False(t, fallbackInvoked)
}

func TestExecuteWithErrorHandling_CircuitOpenSkipsFallbackRetryLoop(t *testing.T) {
	uc := newTestOrchestrator(t, 0.2)
	uc.Recovery().Registry().Open("openrouter", time.Minute)

	res := ExecuteWithErrorHandling(context.Background(), uc, func(ctx context.Context) (string, error) {
		t.Fatal("primary must not run while the breaker is open")
		return "", nil
	}, askCtx(), func(ctx context.Context) (string, error) {
		return "cached answer", nil
	})

	// The open breaker exhausts the primary path; the fallback still serves.
	require.True(t, res.Success)
	assert.Equal(t, "cached answer", res.Result)
	assert.Equal(t, RecoveryFallbackResponse, res.RecoveryMethod)
}

func TestExecuteWithGracefulDegradation(t *testing.T) {
	uc := newTestOrchestrator(t, 0.2)

	res := ExecuteWithGracefulDegradation(context.Background(), uc, func(ctx context.Context) (string, error) {
		return "primary", nil
	}, func(ctx context.Context) (string, error) {
		return "fallback", nil
	}, "openrouter", "chat")
	require.NoError(t, res.Err)
	assert.Equal(t, "primary", res.Result)
	assert.False(t, res.UsedFallback)

	res = ExecuteWithGracefulDegradation(context.Background(), uc, func(ctx context.Context) (string, error) {
		return "", transientErr()
	}, func(ctx context.Context) (string, error) {
		return "fallback", nil
	}, "openrouter", "chat")
	require.NoError(t, res.Err)
	assert.Equal(t, "fallback", res.Result)
	assert.True(t, res.UsedFallback)

	fallbackErr := transientErr()
	res = ExecuteWithGracefulDegradation(context.Background(), uc, func(ctx context.Context) (string, error) {
		return "", transientErr()
	}, func(ctx context.Context) (string, error) {
		return "", fallbackErr
	}, "openrouter", "chat")
	assert.ErrorIs(t, res.Err, fallbackErr)
	assert.True(t, res.UsedFallback)
}

func TestCreateUserFriendlyErrorMessage(t *testing.T) {
	uc := newTestOrchestrator(t, 0.2)

	cases := []struct {
		name string
		err  error
		want string
	}{
		{"timeout", &aierrors.TimeoutError{Timeout: time.Second}, "took too long"},
		{"rate limit", &aierrors.RateLimitError{}, "too many requests"},
		{"circuit open", &aierrors.CircuitBreakerOpenError{Service: "openrouter"}, "temporarily unavailable"},
		{"budget", &aierrors.BudgetConstraintError{BudgetUtilization: 0.99}, "budget"},
		{"model failure", &aierrors.ModelFailureError{Model: "openai/gpt-4o"}, "model"},
		{"transient", transientErr(), "temporary problem"},
		{"validation", &aierrors.ValidationError{Field: "query"}, "rephrase"},
		{"unknown", assert.AnError, "unexpected problem"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := uc.CreateUserFriendlyErrorMessage(tc.err, "openrouter")
			assert.Contains(t, msg, tc.want)
			// Provider error text never leaks into user messages.
			assert.NotContains(t, msg, "upstream overloaded")
		})
	}
}

func TestGetRecoveryRecommendations(t *testing.T) {
	uc := newTestOrchestrator(t, 0.2)
	registry := uc.Recovery().Registry()

	recs := uc.GetRecoveryRecommendations("never-seen")
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "no activity")

	registry.RecordSuccess("openrouter")
	recs = uc.GetRecoveryRecommendations("openrouter")
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "healthy")

	registry.RecordFailure("openrouter")
	recs = uc.GetRecoveryRecommendations("openrouter")
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0], "monitor")

	for i := 0; i < 5; i++ {
		registry.RecordFailure("embedding")
	}
	recs = uc.GetRecoveryRecommendations("embedding")
	assert.GreaterOrEqual(t, len(recs), 2)
	assert.Contains(t, recs[0], "circuit breaker is open until")
	joined := ""
	for _, r := range recs {
		joined += r + "\n"
	}
	assert.Contains(t, joined, "never succeeded")
}
