package utils

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/krrrr38/github-2-gitea/pkg/logger"
)

var (
	// InitialDelay is the wait before the first retry
	InitialDelay = 1 * time.Second
	// MaxDelay caps a single backoff wait
	MaxDelay      = 60 * time.Second
	backoffFactor = 2.0
)

// RetryableOperation runs operation once and then retries it up to retries
// more times while isRetryable reports the returned error as transient.
// With retries == 0 the first error is returned as is.
func RetryableOperation(ctx context.Context, retries int, isRetryable func(error) bool, operation func() error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		err = operation()
		if err == nil {
			return nil
		}
		if attempt == retries || !isRetryable(err) {
			break
		}

		delay := calculateBackoff(attempt, InitialDelay, backoffFactor, MaxDelay)
		logger.Warn("Retryable error, retrying", "error", err, "delay", delay.String(), "attempt", attempt+1, "retries", retries)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if retries > 0 && isRetryable(err) {
		return fmt.Errorf("operation failed after %d attempts: %w", retries+1, err)
	}
	return err
}

// calculateBackoff computes the backoff duration using exponential backoff with jitter
func calculateBackoff(attempt int, initialDelay time.Duration, factor float64, maxDelay time.Duration) time.Duration {
	backoff := float64(initialDelay) * math.Pow(factor, float64(attempt))

	// ±20%
	jitter := backoff * 0.2 * (rand.Float64()*2 - 1)
	backoff = backoff + jitter

	if backoff > float64(maxDelay) {
		backoff = float64(maxDelay)
	}

	return time.Duration(backoff)
}
