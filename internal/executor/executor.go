package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pablasso/liftoff/internal/state"
	"github.com/pablasso/liftoff/internal/task"
)

// ErrTimeout indicates a task attempt exceeded its effective timeout. The
// attempt's goroutine is abandoned, not cancelled; only the executor stops
// waiting for it.
var ErrTimeout = errors.New("executor: task timed out")

// TaskPanicError wraps a panic recovered from a task's Run function.
type TaskPanicError struct {
	TaskID string
	Value  any
}

func (e TaskPanicError) Error() string {
	return fmt.Sprintf("executor: panic in task %s: %v", e.TaskID, e.Value)
}

// CriticalError marks the irrecoverable failure of a critical-priority task.
type CriticalError struct {
	TaskID string
	Err    error
}

func (e *CriticalError) Error() string {
	return fmt.Sprintf("critical task %s failed: %v", e.TaskID, e.Err)
}

func (e *CriticalError) Unwrap() error { return e.Err }

// executeTask drives a single task through retry, timeout and fallback
// handling. It returns a non-nil error only for context cancellation or a
// critical-priority failure, so sibling tasks in a batch are never
// short-circuited by an ordinary failure.
func (in *Initializer) executeTask(ctx context.Context, d task.Descriptor) error {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = in.opts.GlobalTimeout
	}
	maxAttempts := d.MaxAttempts()

	in.taskStarted(d)
	started := time.Now()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := in.runAttempt(ctx, d, timeout)
		if err == nil {
			in.taskCompleted(d, attempt, time.Since(started))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		in.logger.Debug("task attempt failed",
			zap.String("task", d.ID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))

		if attempt < maxAttempts {
			if err := sleep(ctx, retryDelay(d.Retry, attempt)); err != nil {
				return err
			}
		}
	}

	return in.failTask(ctx, d, lastErr, maxAttempts, time.Since(started))
}

// runAttempt races one invocation of d.Run against the timeout. On timeout
// the underlying goroutine keeps running to completion, unobserved.
func (in *Initializer) runAttempt(ctx context.Context, d task.Descriptor, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- runRecovered(ctx, d)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("%w: task %s exceeded %s", ErrTimeout, d.ID, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runRecovered converts a panic inside the task body into an error.
func runRecovered(ctx context.Context, d task.Descriptor) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = TaskPanicError{TaskID: d.ID, Value: recovered}
		}
	}()
	return d.Run(ctx)
}

// failTask handles exhausted retries: fallback, error recording, and
// critical-priority propagation.
func (in *Initializer) failTask(ctx context.Context, d task.Descriptor, cause error, attempts int, took time.Duration) error {
	taskErr := state.TaskError{
		TaskID:    d.ID,
		TaskName:  d.DisplayName(),
		Message:   cause.Error(),
		Err:       cause,
		Timestamp: time.Now(),
		Attempts:  attempts,
	}

	if d.Fallback != nil {
		if ferr := d.Fallback(ctx, cause); ferr == nil {
			// The fallback is a successful degraded path.
			in.logger.Info("fallback recovered task",
				zap.String("task", d.ID),
				zap.Error(cause))
			in.taskCompleted(d, attempts, took)
			return nil
		} else {
			in.logger.Warn("fallback failed",
				zap.String("task", d.ID),
				zap.Error(ferr))
		}
	}

	in.taskFailed(d, taskErr, took)

	if d.Priority == task.PriorityCritical {
		return &CriticalError{TaskID: d.ID, Err: cause}
	}
	return nil
}

// retryDelay returns the wait after the given failed attempt (1-based).
// Exponential backoff doubles the delay per attempt.
func retryDelay(p *task.RetryPolicy, attempt int) time.Duration {
	if p == nil || p.Delay <= 0 {
		return 0
	}
	delay := p.Delay
	if p.ExponentialBackoff {
		for i := 1; i < attempt; i++ {
			delay *= 2
		}
	}
	return delay
}

// sleep waits for d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
