// internal/common/database/retry.go
package database

import (
	"context"
	"fmt"
	"time"

	"ops-notifications/internal/common/logger"
)

// RetryWithBackoff runs op until it succeeds, doubling the delay after each failure.
func RetryWithBackoff(ctx context.Context, op func(context.Context) error, maxAttempts int, initialDelay time.Duration, log logger.Logger, name string) error {
	var err error
	delay := initialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		log.Warn(fmt.Sprintf("%s failed, retrying", name), map[string]interface{}{
			"error":       err.Error(),
			"attempt":     attempt,
			"maxAttempts": maxAttempts,
			"nextRetryIn": delay.String(),
		})

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", name, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, maxAttempts, err)
}
