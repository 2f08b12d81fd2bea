package errors

import (
	"context"
	"math/rand"
	"time"
)

// RetryController retries transient transport failures with exponential
// backoff and jitter, bounded by the caller's context. Router-level
// status-code retries are never delayed; those re-resolve ownership
// immediately.
type RetryController struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	maxRetries   int
}

// NewRetryController returns a controller with the client dial defaults:
// 10ms initial delay doubling up to 1s, five retries.
func NewRetryController() *RetryController {
	return &RetryController{
		initialDelay: 10 * time.Millisecond,
		maxDelay:     1 * time.Second,
		maxRetries:   5,
	}
}

// Retry runs fn until it succeeds, its error classifies as non-retryable,
// the attempt budget is spent, or ctx expires. Backoff sleeps are cut short
// when ctx is done; the last attempt's error is what comes back.
func (rc *RetryController) Retry(ctx context.Context, fn func() error, classifier *Classifier) error {
	var lastErr error

	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !classifier.ShouldRetry(classifier.Classify(err)) {
			return err
		}
		if attempt >= rc.maxRetries {
			return err
		}

		timer := time.NewTimer(rc.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}

// backoff doubles the initial delay per attempt, capped at maxDelay, with
// +-25% jitter to spread reconnect storms.
func (rc *RetryController) backoff(attempt int) time.Duration {
	delay := rc.initialDelay * time.Duration(1<<uint(attempt))
	if delay > rc.maxDelay {
		delay = rc.maxDelay
	}

	jitter := time.Duration(float64(delay) * 0.25 * (rand.Float64()*2 - 1))
	delay += jitter
	if delay < 0 {
		delay = rc.initialDelay
	}
	return delay
}
