package engine

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout is the default per-descriptor operation timeout.
const DefaultTimeout = 5 * time.Minute

// Waiter blocks for a fixed settle period after a resource whose dependents
// fail transiently when used too early (an IAM role that Lambda cannot assume
// yet). There is no visibility query to poll, so the wait is not adaptive.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// SleepWaiter waits on the wall clock and gives up when the context ends.
type SleepWaiter struct{}

func (SleepWaiter) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("wait cancelled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// NoopWaiter skips settle waits. Used when nothing was really created.
type NoopWaiter struct{}

func (NoopWaiter) Wait(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

// WithTimeout wraps a context with a per-descriptor timeout.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
