// Package retry provides the single backoff wrapper applied to every
// outbound source call. Classification is carried by the errors themselves,
// so the wrapper stays generic and policy lives in one place.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Class partitions failures into retryable and non-retryable.
type Class int

const (
	// ClassTransient covers network errors, timeouts, 5xx and 429 responses.
	ClassTransient Class = iota
	// ClassPermanent covers client errors that retrying cannot fix.
	ClassPermanent
)

// Classified is implemented by errors that know their own retry class.
// Errors that do not implement it are treated as transient, matching the
// behavior for raw connection failures.
type Classified interface {
	RetryClass() Class
}

// AfterHinter is implemented by errors carrying a server-provided delay
// (an HTTP 429 Retry-After header). The hint replaces the backoff schedule
// for that attempt.
type AfterHinter interface {
	RetryAfterHint() (time.Duration, bool)
}

// Policy holds the backoff parameters.
type Policy struct {
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // cap on any single delay
	MaxAttempts int           // total attempts, including the first
	Jitter      float64       // fractional jitter, 0.2 means +/-20%
}

// DefaultPolicy mirrors the documented defaults: 500ms base, x2 growth,
// 8s cap, +/-20% jitter, 3 attempts.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
		MaxAttempts: 3,
		Jitter:      0.2,
	}
}

func (p Policy) normalized() Policy {
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 8 * time.Second
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		p.Jitter = 0.2
	}
	return p
}

// delay computes the backoff before attempt n (n starts at 1 for the first
// retry): base * 2^(n-1), capped, with symmetric jitter.
func (p Policy) delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter > 0 {
		spread := 1 + p.Jitter*(2*rand.Float64()-1)
		d = time.Duration(float64(d) * spread)
	}
	return d
}

// Do runs op under the policy. Transient failures are retried with
// exponential backoff; permanent failures and context cancellation return
// immediately. After exhausting attempts the last error is returned as-is,
// so callers keep access to its classification.
func Do[T any](ctx context.Context, p Policy, logger *zap.Logger, op func(context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if c, ok := asClassified(err); ok && c.RetryClass() == ClassPermanent {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		wait := p.delay(attempt)
		if h, ok := asAfterHinter(err); ok {
			if hint, present := h.RetryAfterHint(); present && hint > 0 {
				wait = hint
			}
		}

		if logger != nil {
			logger.Debug("Retrying after transient failure",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", p.MaxAttempts),
				zap.Duration("delay", wait),
				zap.Error(err),
			)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func asClassified(err error) (Classified, bool) {
	var c Classified
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

func asAfterHinter(err error) (AfterHinter, bool) {
	var h AfterHinter
	if errors.As(err, &h) {
		return h, true
	}
	return nil, false
}
