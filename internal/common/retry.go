package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/attendance-engine/internal/service"
)

var (
	// ErrRateLimit indicates that the API rate limit has been exceeded.
	ErrRateLimit = errors.New("rate limit exceeded")
	// ErrMaxRetries indicates that all retry attempts have been exhausted.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// RateLimitError reports a throttled request. RetryAfter is zero when the
// server gave no hint.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", ErrRateLimit, e.RetryAfter)
	}
	return ErrRateLimit.Error()
}

// Is reports ErrRateLimit so callers can match with errors.Is.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimit
}

// WithRetry executes an operation with configurable retry behavior.
//
// Failures count against MaxAttempts. Rate limit errors do not: they reset
// the attempt counter and back off, bounded only by MaxRateLimitWaits.
func WithRetry(ctx context.Context, operation func() error, opts service.RetryOptions) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Multiplier <= 0 {
		opts.Multiplier = 2.0
	}
	if opts.MaxRateLimitWaits <= 0 {
		opts.MaxRateLimitWaits = 20
	}

	delay := opts.InitialDelay
	attempt := 0
	rateLimitWaits := 0

	for {
		err := operation()
		if err == nil {
			return nil
		}

		if IsPermanent(err) {
			return err
		}

		wait := delay
		if errors.Is(err, ErrRateLimit) {
			rateLimitWaits++
			if rateLimitWaits > opts.MaxRateLimitWaits {
				return fmt.Errorf("%w after %d rate limited attempts: %v", ErrMaxRetries, rateLimitWaits, err)
			}
			attempt = 0

			var rl *RateLimitError
			if errors.As(err, &rl) && rl.RetryAfter > wait {
				wait = min(rl.RetryAfter, opts.MaxDelay)
			}
		} else {
			attempt++
			if attempt >= opts.MaxAttempts {
				return fmt.Errorf("%w after %d attempts: %v", ErrMaxRetries, opts.MaxAttempts, err)
			}
		}

		slog.Warn("Operation failed, retrying",
			"attempt", attempt,
			"max_attempts", opts.MaxAttempts,
			"rate_limit_waits", rateLimitWaits,
			"delay", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			delay = time.Duration(float64(delay) * opts.Multiplier)
			if delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}
	}
}
