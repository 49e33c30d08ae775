// Package demo provides a canned boot sequence so `liftoff run` has
// something realistic to execute and display.
package demo

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/pablasso/liftoff/internal/task"
)

// Speed scales all simulated latencies. 1.0 is real time.
type Speed float64

// Tasks returns the demo boot sequence: four stages of simulated startup
// work, including a retried flaky task with a fallback and a low-priority
// task that fails outright.
func Tasks(speed Speed) []task.Descriptor {
	if speed <= 0 {
		speed = 1.0
	}
	wait := func(d time.Duration) task.Func {
		scaled := time.Duration(float64(d) * float64(speed))
		return func(ctx context.Context) error {
			timer := time.NewTimer(scaled)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// Fails twice, then succeeds, exercising the retry path.
	flakyAttempts := 0
	flaky := func(ctx context.Context) error {
		flakyAttempts++
		if flakyAttempts < 3 {
			return errors.New("connection refused")
		}
		return wait(80 * time.Millisecond)(ctx)
	}

	return []task.Descriptor{
		{
			ID:       "settings",
			Name:     "Load settings",
			Stage:    task.StageCritical,
			Priority: task.PriorityCritical,
			Run:      wait(120 * time.Millisecond),
		},
		{
			ID:           "storage-check",
			Name:         "Verify storage",
			Stage:        task.StageCritical,
			Priority:     task.PriorityCritical,
			Dependencies: []string{"settings"},
			Run:          wait(90 * time.Millisecond),
		},
		{
			ID:           "cache",
			Name:         "Open cache",
			Stage:        task.StageCore,
			Priority:     task.PriorityHigh,
			Dependencies: []string{"storage-check"},
			Run:          wait(150 * time.Millisecond),
		},
		{
			ID:           "migrations",
			Name:         "Run migrations",
			Stage:        task.StageCore,
			Priority:     task.PriorityHigh,
			Dependencies: []string{"cache"},
			Run:          wait(200 * time.Millisecond),
		},
		{
			ID:       "fonts",
			Name:     "Preload fonts",
			Stage:    task.StageCore,
			Priority: task.PriorityLow,
			Run:      wait(60 * time.Millisecond),
		},
		{
			ID:       "providers",
			Name:     "Warm backend providers",
			Stage:    task.StageServices,
			Priority: task.PriorityNormal,
			Run:      flaky,
			Retry: &task.RetryPolicy{
				MaxAttempts:        4,
				Delay:              time.Duration(float64(50*time.Millisecond) * float64(speed)),
				ExponentialBackoff: true,
			},
			Fallback: func(ctx context.Context, cause error) error {
				// Offline mode is an acceptable degraded path.
				return nil
			},
		},
		{
			ID:       "sync",
			Name:     "Background sync",
			Stage:    task.StageServices,
			Priority: task.PriorityNormal,
			Run:      wait(time.Duration(100+rand.Intn(100)) * time.Millisecond),
		},
		{
			ID:       "telemetry",
			Name:     "Start telemetry",
			Stage:    task.StageServices,
			Priority: task.PriorityLow,
			Run: func(ctx context.Context) error {
				// Demonstrates a non-critical failure: recorded, never fatal.
				return errors.New("telemetry endpoint unreachable")
			},
		},
		{
			ID:           "health",
			Name:         "Health probe",
			Stage:        task.StageReady,
			Priority:     task.PriorityNormal,
			Dependencies: []string{"providers"},
			Run:          wait(70 * time.Millisecond),
		},
		{
			ID:       "warmup",
			Name:     "UI warmup",
			Stage:    task.StageReady,
			Priority: task.PriorityLow,
			Run:      wait(50 * time.Millisecond),
		},
	}
}
