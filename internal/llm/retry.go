package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"semantic-memory/internal/contextutil"
	"semantic-memory/internal/memerr"
)

// RetryConfig bounds the retries of one endpoint call.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig returns three attempts starting at 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// statusError is a non-200 response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("bad status %d: %s", e.code, e.body)
}

// retryable reports whether a status is worth another attempt.
func retryable(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

// withRetry runs fn with exponential backoff. Non-retryable statuses stop immediately.
// Malformed responses come back as *memerr.ParseError, every other failure as a
// *memerr.TransportError.
func withRetry[T any](ctx context.Context, cfg RetryConfig, op, endpoint string, fn func(context.Context) (T, error)) (T, error) {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	b := backoff.NewExponentialBackOff()
	if cfg.InitialDelay > 0 {
		b.InitialInterval = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		b.MaxInterval = cfg.MaxDelay
	}

	logger := contextutil.LoggerFromContext(ctx)
	attempts := 0
	result, err := backoff.Retry(ctx, func() (T, error) {
		attempts++
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		var se *statusError
		if errors.As(err, &se) && !retryable(se.code) {
			return v, backoff.Permanent(err)
		}
		var pe *memerr.ParseError
		if errors.As(err, &pe) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.WarnContext(ctx, "endpoint call failed, retrying",
				slog.String("op", op), slog.String("endpoint", endpoint),
				slog.Int("attempt", attempts), slog.Duration("next", next), slog.Any("error", err))
		}),
	)
	if err == nil {
		return result, nil
	}
	var zero T
	var pe *memerr.ParseError
	if errors.As(err, &pe) {
		return zero, pe
	}

	te := &memerr.TransportError{Op: op, Endpoint: endpoint, Attempts: attempts, Err: err}
	var se *statusError
	if errors.As(err, &se) {
		te.StatusCode = se.code
	}
	return zero, te
}
