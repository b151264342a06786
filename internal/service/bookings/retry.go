package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"chronobook/backend/internal/domain"
)

const DefaultRetryAttempts = 3

// RetryBusy runs op again while it fails with domain.ErrBusy. Any other error, or success,
// ends the retries.
func RetryBusy[T any](ctx context.Context, attempts int, op func() (T, error)) (T, error) {
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !errors.Is(err, domain.ErrBusy) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(attempts)))
}
