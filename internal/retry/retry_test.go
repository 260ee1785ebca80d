package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// classifiedError is a scriptable error for exercising the wrapper.
type classifiedError struct {
	class Class
	hint  time.Duration
}

func (e *classifiedError) Error() string { return "scripted failure" }

func (e *classifiedError) RetryClass() Class { return e.class }

func (e *classifiedError) RetryAfterHint() (time.Duration, bool) {
	return e.hint, e.hint > 0
}

func fastPolicy() Policy {
	return Policy{
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		MaxAttempts: 3,
		Jitter:      0,
	}
}

func TestSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(), zap.NewNop(), func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
}

func TestTransientFailureIsRetried(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(), zap.NewNop(), func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, &classifiedError{class: ClassTransient}
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestTransientFailureExhaustsAttempts(t *testing.T) {
	calls := 0
	scripted := &classifiedError{class: ClassTransient}
	_, err := Do(context.Background(), fastPolicy(), zap.NewNop(), func(ctx context.Context) (int, error) {
		calls++
		return 0, scripted
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Same(t, error(scripted), err, "the last error comes back unwrapped")
}

func TestPermanentFailureIsNotRetried(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), zap.NewNop(), func(ctx context.Context) (int, error) {
		calls++
		return 0, &classifiedError{class: ClassPermanent}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestUnclassifiedErrorIsTreatedAsTransient(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), zap.NewNop(), func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("connection reset")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestContextCancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := Do(ctx, Policy{BaseDelay: time.Hour, MaxDelay: time.Hour, MaxAttempts: 3}, zap.NewNop(), func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, &classifiedError{class: ClassTransient}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "the backoff wait must observe cancellation")
}

func TestContextErrorReturnsImmediately(t *testing.T) {
	_, err := Do(context.Background(), fastPolicy(), zap.NewNop(), func(ctx context.Context) (int, error) {
		return 0, context.DeadlineExceeded
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryAfterHintOverridesBackoff(t *testing.T) {
	calls := 0
	start := time.Now()
	_, err := Do(context.Background(), Policy{BaseDelay: time.Hour, MaxDelay: time.Hour, MaxAttempts: 2}, zap.NewNop(), func(ctx context.Context) (int, error) {
		calls++
		return 0, &classifiedError{class: ClassTransient, hint: 5 * time.Millisecond}
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Less(t, time.Since(start), time.Minute, "the hinted delay replaces the hour-long schedule")
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, MaxAttempts: 5, Jitter: 0}

	assert.Equal(t, 100*time.Millisecond, p.delay(1))
	assert.Equal(t, 200*time.Millisecond, p.delay(2))
	assert.Equal(t, 300*time.Millisecond, p.delay(3), "growth is capped at MaxDelay")
	assert.Equal(t, 300*time.Millisecond, p.delay(4))
}

func TestJitterStaysWithinSpread(t *testing.T) {
	p := Policy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, MaxAttempts: 3, Jitter: 0.2}

	for i := 0; i < 100; i++ {
		d := p.delay(1)
		assert.GreaterOrEqual(t, d, 80*time.Millisecond)
		assert.LessOrEqual(t, d, 120*time.Millisecond)
	}
}
