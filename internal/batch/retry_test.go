package batch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylr/migrate/internal/errors"
)

func TestIsRetriable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"http 429", &HTTPStatusError{StatusCode: HTTPTooManyRequests}, true},
		{"http 502", &HTTPStatusError{StatusCode: HTTPBadGateway}, true},
		{"http 503", &HTTPStatusError{StatusCode: HTTPServiceUnavail}, true},
		{"http 504", &HTTPStatusError{StatusCode: HTTPGatewayTimeout}, true},
		{"http 400", &HTTPStatusError{StatusCode: 400}, false},
		{"http 404", &HTTPStatusError{StatusCode: 404}, false},
		{"connection reset", fmt.Errorf("read tcp: connection reset by peer"), true},
		{"timeout text", fmt.Errorf("i/o timeout"), true},
		{"dns", fmt.Errorf("dial tcp: lookup api.example.com: no such host"), true},
		{"rate limit phrase", fmt.Errorf("Rate limit exceeded, slow down"), true},
		{"plain failure", fmt.Errorf("record does not exist"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsRetriable(tt.err))
		})
	}
}

func TestRetryWithBackoffSucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	out, err := RetryWithBackoff(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", &HTTPStatusError{StatusCode: HTTPServiceUnavail}
		}
		return "ok", nil
	}, RetryOptions{MaxRetries: 3, BaseDelay: time.Millisecond})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls, "fails twice then succeeds, exactly 3 invocations")
}

func TestRetryWithBackoffNonRetriablePropagatesImmediately(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := RetryWithBackoff(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, fmt.Errorf("validation failed")
	}, RetryOptions{MaxRetries: 5, BaseDelay: time.Millisecond})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoffCallsOnRetry(t *testing.T) {
	t.Parallel()

	retries := 0
	calls := 0
	out, err := RetryWithBackoff(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", &HTTPStatusError{StatusCode: HTTPBadGateway}
		}
		return "ok", nil
	}, RetryOptions{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		OnRetry:    func() { retries++ },
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, retries, "one callback per retry attempt")
}

func TestRetryWithBackoffExhaustion(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := RetryWithBackoff(context.Background(), func(context.Context) (int, error) {
		calls++
		return 0, &HTTPStatusError{StatusCode: HTTPTooManyRequests}
	}, RetryOptions{MaxRetries: 2, BaseDelay: time.Millisecond})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "1 + MaxRetries total invocations")

	assert.True(t, errors.IsCategory(err, errors.CategoryRetry))
}

func TestRetryWithBackoffCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := RetryWithBackoff(ctx, func(context.Context) (int, error) {
		calls++
		return 0, nil
	}, RetryOptions{MaxRetries: 3, BaseDelay: time.Millisecond})

	require.Error(t, err)
	assert.Zero(t, calls, "cancelled context short-circuits before the first call")
}

func TestBackoffDelayGrowsExponentially(t *testing.T) {
	t.Parallel()

	opts := RetryOptions{BaseDelay: 100 * time.Millisecond}
	for attempt := 0; attempt < 4; attempt++ {
		delay := backoffDelay(opts, attempt)
		base := time.Duration(float64(opts.BaseDelay) * float64(int(1)<<attempt))
		assert.GreaterOrEqual(t, delay, base, "attempt %d", attempt)
		assert.LessOrEqual(t, delay, base+base/10+time.Millisecond, "jitter stays within 10%%, attempt %d", attempt)
	}
}

func TestBackoffDelayCap(t *testing.T) {
	t.Parallel()

	opts := RetryOptions{BaseDelay: time.Second, MaxDelay: 2 * time.Second}
	assert.Equal(t, 2*time.Second, backoffDelay(opts, 10))
}
