package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.URL, e.Code)
}

// transient reports whether a status code is worth retrying.
func transient(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// linearBackOff waits base, 2*base, 3*base, ... between attempts.
type linearBackOff struct {
	base    time.Duration
	attempt int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.base
}

func (l *linearBackOff) Reset() { l.attempt = 0 }

// withRetry calls op up to maxAttempts times. op marks errors that must not
// be retried with backoff.Permanent.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, logger *zap.Logger, op func() error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var policy backoff.BackOff = &linearBackOff{base: base}
	policy = backoff.WithMaxRetries(policy, uint64(maxAttempts-1)) //nolint:gosec // maxAttempts >= 1
	policy = backoff.WithContext(policy, ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		return op()
	}, policy, func(err error, wait time.Duration) {
		logger.Warn("transient REST error, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}
