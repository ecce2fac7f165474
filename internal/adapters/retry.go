package adapters

import (
	"context"
	"errors"
	"time"
)

// retry calls fn up to maxAttempts times, doubling the delay after each
// failure. Errors that are not retryable QuoteErrors end the loop early.
func retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		var qe *QuoteError
		if errors.As(err, &qe) && !qe.Retryable() {
			return err
		}
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return err
}
