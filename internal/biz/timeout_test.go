package biz

import (
	"context"
	"testing"
	"time"

	"github.com/Enochthedev/ProjectHub-backend-sub007/pkg/aierrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTimeout_CompletesInTime(t *testing.T) {
	value, err := WithTimeout(context.Background(), func(ctx context.Context) (int, error) {
		return 42, nil
	}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestWithTimeout_PropagatesOperationError(t *testing.T) {
	wantErr := transientErr()
	_, err := WithTimeout(context.Background(), func(ctx context.Context) (int, error) {
		return 0, wantErr
	}, time.Second)

	assert.ErrorIs(t, err, wantErr)
}

func TestWithTimeout_Expires(t *testing.T) {
	started := make(chan struct{})
	_, err := WithTimeout(context.Background(), func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}, 20*time.Millisecond)

	<-started
	var terr *aierrors.TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 20*time.Millisecond, terr.Timeout)
	assert.GreaterOrEqual(t, terr.Elapsed, 20*time.Millisecond)
	assert.Equal(t, aierrors.KindTimeout, aierrors.Classify(err))
}

func TestWithTimeout_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := WithTimeout(ctx, func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}, time.Minute)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("WithTimeout did not return after parent cancellation")
	}
}

func TestWithTimeout_DeadlineVisibleToOperation(t *testing.T) {
	_, err := WithTimeout(context.Background(), func(ctx context.Context) (bool, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			t.Error("operation context has no deadline")
		}
		return deadline.After(time.Now()), nil
	}, time.Second)
	require.NoError(t, err)
}

func TestHandleTimeout_RetryThenSuccess(t *testing.T) {
	uc := newTestRecovery(t, nil)

	calls := 0
	res := HandleTimeout(context.Background(), uc, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second):
				return "too late", nil
			}
		}
		return "ok", nil
	}, "openrouter", "chat", 10*time.Millisecond, 3)

	require.True(t, res.Success)
	assert.Equal(t, "ok", res.Result)
	assert.Equal(t, RecoveryRetry, res.RecoveryMethod)
	assert.Len(t, res.Attempts, 2)
	assert.Equal(t, aierrors.KindTimeout, aierrors.Classify(res.Attempts[0].Err))
}

func TestHandleTimeout_NonRetryableStops(t *testing.T) {
	uc := newTestRecovery(t, nil)

	calls := 0
	res := HandleTimeout(context.Background(), uc, func(ctx context.Context) (string, error) {
		calls++
		return "", &aierrors.ValidationError{Field: "query", Message: "empty"}
	}, "openrouter", "chat", time.Second, 3)

	require.False(t, res.Success)
	assert.Equal(t, 1, calls)
	assert.Equal(t, RecoveryNone, res.RecoveryMethod)
}

func TestHandleTimeout_ExhaustedReportsRetry(t *testing.T) {
	uc := newTestRecovery(t, nil)

	res := HandleTimeout(context.Background(), uc, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, "openrouter", "chat", 5*time.Millisecond, 3)

	require.False(t, res.Success)
	assert.Len(t, res.Attempts, 3)
	// Multiple attempts ran, so the chain reports retry even on failure.
	assert.Equal(t, RecoveryRetry, res.RecoveryMethod)

	var terr *aierrors.TimeoutError
	assert.ErrorAs(t, res.Err, &terr)
}

func TestHandleTimeout_TransientRetried(t *testing.T) {
	uc := newTestRecovery(t, nil)

	calls := 0
	res := HandleTimeout(context.Background(), uc, func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", transientErr()
		}
		return "ok", nil
	}, "openrouter", "chat", time.Second, 3)

	require.True(t, res.Success)
	assert.Equal(t, 2, calls)
	assert.Equal(t, RecoveryRetry, res.RecoveryMethod)
}

func TestHandleTimeout_ZeroMaxAttemptsUsesDefault(t *testing.T) {
	uc := newTestRecovery(t, nil)

	calls := 0
	res := HandleTimeout(context.Background(), uc, func(ctx context.Context) (string, error) {
		calls++
		return "", transientErr()
	}, "openrouter", "chat", time.Second, 0)

	require.False(t, res.Success)
	assert.Equal(t, uc.Defaults().MaxAttempts, calls)
}
