package chain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/rindexer-go/rindexer/pkg/config"
)

// rateLimitedMaxAttempts and transientMaxAttempts are the independent
// attempt ceilings for the two retryable error classes a provider call
// can fail with; they override cfg.MaxAttempts once an error has been
// classified as one or the other.
const (
	rateLimitedMaxAttempts = 50
	transientMaxAttempts   = 10
)

// classifyRetryableError inspects err and, if it looks like a rate
// limit rejection or a transient hiccup (network error, timeout,
// temporary 5xx, connection pool exhaustion), wraps it in the matching
// typed error. Returns nil if err doesn't look retryable.
func classifyRetryableError(err error) error {
	if err == nil {
		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &TransientError{cause: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return &TransientError{cause: err}
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "429"), strings.Contains(errStr, "too many requests"), strings.Contains(errStr, "rate limit"):
		return &RateLimitedError{cause: err}
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return &TransientError{cause: err}
	case strings.Contains(errStr, "502"), strings.Contains(errStr, "503"), strings.Contains(errStr, "504"),
		strings.Contains(errStr, "bad gateway"), strings.Contains(errStr, "service unavailable"), strings.Contains(errStr, "gateway timeout"):
		return &TransientError{cause: err}
	case strings.Contains(errStr, "connection pool"), strings.Contains(errStr, "no available connection"):
		return &TransientError{cause: err}
	default:
		return nil
	}
}

// maxAttemptsFor returns the attempt ceiling for a classified
// retryable error: the typed RateLimited/Transient caps take
// precedence over the manifest's generic cfg.MaxAttempts.
func maxAttemptsFor(classified error, cfg config.RetryConfig) int {
	var rl *RateLimitedError
	if errors.As(classified, &rl) {
		return rateLimitedMaxAttempts
	}
	var tr *TransientError
	if errors.As(classified, &tr) {
		return transientMaxAttempts
	}
	return cfg.MaxAttempts
}

func calculateBackoff(attempt int, cfg config.RetryConfig) time.Duration {
	if attempt <= 1 {
		return 0
	}

	backoff := float64(cfg.InitialBackoff.Duration) * math.Pow(cfg.BackoffMultiplier, float64(attempt-2))
	if max := float64(cfg.MaxBackoff.Duration); backoff > max {
		backoff = max
	}

	jitterRange := backoff * 0.25
	backoff += (rand.Float64() * 2 * jitterRange) - jitterRange
	if backoff < 0 {
		backoff = 0
	}

	return time.Duration(backoff)
}

// retryWithBackoff runs fn, retrying transient failures with
// exponential backoff and jitter, honoring ctx cancellation. A
// RangeTooLargeError is never retried here — the fetch worker handles
// it by shrinking the window and calling again. RateLimited and
// Transient errors are retried with the same backoff curve but under
// independent attempt ceilings (50 and 10 respectively); any other
// error is treated as non-retryable and returned immediately.
func retryWithBackoff(ctx context.Context, cfg config.RetryConfig, operation string, fn func() error) error {
	var lastErr error
	start := time.Now()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled before attempt %d: %w", attempt, err)
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				RPCRetryInc(operation)
			}
			return nil
		}

		var rte *RangeTooLargeError
		if errors.As(err, &rte) {
			return err
		}

		classified := classifyRetryableError(err)
		if classified == nil {
			return fmt.Errorf("non-retryable error on attempt %d: %w", attempt, err)
		}
		lastErr = classified

		maxAttempts := maxAttemptsFor(classified, cfg)
		if attempt >= maxAttempts {
			return fmt.Errorf("all %d attempts failed after %v (last error: %w)", maxAttempts, time.Since(start), lastErr)
		}

		if d := calculateBackoff(attempt, cfg); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return fmt.Errorf("context cancelled during backoff (attempt %d/%d): %w", attempt, maxAttempts, ctx.Err())
			}
		}
		RPCRetryInc(operation)
	}
}
