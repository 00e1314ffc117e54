package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/factcheck/internal/model"
	"go.uber.org/zap"
)

// Policy is the retry policy applied identically to every external call
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy returns 3 attempts with exponential backoff between 4s and 10s
func DefaultPolicy() Policy {
	return FromConfig(model.DefaultConfig().Retry)
}

// FromConfig converts the configuration section into a Policy
func FromConfig(cfg model.RetryConfig) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
	}
}

// Delay returns the wait before attempt n+1, given that attempt n (1-based) failed.
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	if n > 30 {
		n = 30
	}
	delay := p.BaseDelay * time.Duration(1<<uint(n-1))
	if p.MaxDelay > 0 && (delay > p.MaxDelay || delay < 0) {
		delay = p.MaxDelay
	}
	return delay
}

// sleepFunc waits between attempts; overridden in tests
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, the context ends,
// or the policy's attempts are exhausted. The last error is returned wrapped.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for n := 1; n <= attempts; n++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%s: %w (last error: %v)", op, err, lastErr)
			}
			return fmt.Errorf("%s: %w", op, err)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRetryable(err) {
			return fmt.Errorf("%s: %w", op, unwrapPermanent(err))
		}
		if n == attempts {
			break
		}

		delay := p.Delay(n)
		zap.L().Debug("retrying external call",
			zap.String("op", op),
			zap.Int("attempt", n),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := sleepFunc(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w (last error: %v)", op, err, lastErr)
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, lastErr)
}

// Permanent marks an error as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

func unwrapPermanent(err error) error {
	var pe *permanentError
	if errors.As(err, &pe) {
		return pe.err
	}
	return err
}

// IsRetryable reports whether err should be retried.
// Permanent errors, cancellation, and errors whose IsRetryable method
// returns false are final. A per-attempt deadline is retried as long as
// the caller's context is still live.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var r interface{ IsRetryable() bool }
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return true
}
