package bond

import (
	"context"
	"fmt"
	"time"
)

// DefaultBackoffStep is the linear backoff unit of DefaultRetryPolicy.
const DefaultBackoffStep = 300 * time.Second

// RetryPolicy bounds how often an item is attempted per wake event.
// Delay(i) is slept after failed attempt i, counting from zero.
type RetryPolicy struct {
	MaxAttempts int
	Delay       func(attempt int) time.Duration
}

// DefaultRetryPolicy is three attempts with 0s, 300s and 600s pauses.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       LinearDelay(DefaultBackoffStep),
	}
}

// LinearDelay returns a delay of attempt×step.
func LinearDelay(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// Validate checks the policy.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return &ConfigurationError{Field: "retry.max_attempts", Message: fmt.Sprintf("must be at least 1, got %d", p.MaxAttempts)}
	}
	if p.Delay == nil {
		return &ConfigurationError{Field: "retry.delay", Message: "must be set"}
	}
	return nil
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.Delay == nil {
		return 0
	}
	if d := p.Delay(attempt); d > 0 {
		return d
	}
	return 0
}

// Sleeper pauses the pipeline between attempts.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// TimerSleeper sleeps on a real timer and wakes early when ctx is done.
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
})
