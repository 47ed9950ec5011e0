package batch

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/stylr/migrate/internal/errors"
	"github.com/stylr/migrate/internal/logger"
)

// HTTP status codes classified as transient.
const (
	HTTPTooManyRequests = 429
	HTTPBadGateway      = 502
	HTTPServiceUnavail  = 503
	HTTPGatewayTimeout  = 504
)

// jitterFraction caps the random addition to each backoff delay at 10%.
const jitterFraction = 0.1

// HTTPStatusError is an error carrying an HTTP status code, used by storage
// and API clients so retry classification can act on the status.
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// transientErrorPatterns contains substrings that indicate a transient,
// retriable error.
var transientErrorPatterns = []string{
	"connection reset",
	"connection refused",
	"connection closed",
	"timeout",
	"temporary",
	"broken pipe",
	"no such host",
	"no route to host",
	"rate limit",
	"too many requests",
	"resource temporarily unavailable",
}

// IsRetriable reports whether an error is transient and worth retrying:
// rate-limit and gateway HTTP statuses, connection resets, timeouts, DNS
// failures, or a message containing a rate-limit phrase.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case HTTPTooManyRequests, HTTPBadGateway, HTTPServiceUnavail, HTTPGatewayTimeout:
			return true
		default:
			return false
		}
	}

	if os.IsTimeout(err) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range transientErrorPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// RetryOptions configures RetryWithBackoff.
type RetryOptions struct {
	MaxRetries int           // retry attempts after the first call
	BaseDelay  time.Duration // base for the exponential backoff
	MaxDelay   time.Duration // optional cap on a single delay; 0 means uncapped
	Logger     logger.Logger // optional; retries are logged at debug level
	// OnRetry is invoked once per retry attempt, before the backoff sleep.
	OnRetry func()
}

// backoffDelay computes baseDelay * 2^attempt plus up to 10% jitter.
func backoffDelay(opts RetryOptions, attempt int) time.Duration {
	delay := float64(opts.BaseDelay) * math.Pow(2, float64(attempt))
	delay += delay * jitterFraction * rand.Float64()
	if opts.MaxDelay > 0 && delay > float64(opts.MaxDelay) {
		delay = float64(opts.MaxDelay)
	}
	return time.Duration(delay)
}

// RetryWithBackoff runs op, retrying classified-retriable failures with
// exponential backoff and jitter. Non-retriable errors and retry exhaustion
// both propagate immediately. Total invocations are bounded by
// 1 + MaxRetries.
func RetryWithBackoff[R any](ctx context.Context, op func(context.Context) (R, error), opts RetryOptions) (R, error) {
	var zero R
	var lastErr error

	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return zero, errors.New(ctx.Err()).
				Component("batch").
				Category(errors.CategoryCancellation).
				Build()
		}

		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if !IsRetriable(err) {
			return zero, err
		}
		lastErr = err

		if attempt == opts.MaxRetries {
			break
		}

		if opts.OnRetry != nil {
			opts.OnRetry()
		}

		delay := backoffDelay(opts, attempt)
		if opts.Logger != nil {
			opts.Logger.Debug("retrying after transient error",
				logger.Error(err),
				logger.Int("attempt", attempt+1),
				logger.Int("max_retries", opts.MaxRetries),
				logger.Duration("delay", delay))
		}

		select {
		case <-ctx.Done():
			return zero, errors.New(ctx.Err()).
				Component("batch").
				Category(errors.CategoryCancellation).
				Build()
		case <-time.After(delay):
		}
	}

	return zero, errors.New(lastErr).
		Component("batch").
		Category(errors.CategoryRetry).
		Context("max_retries", opts.MaxRetries).
		Build()
}
