// Package task defines startup task descriptors and the registry they live in.
package task

import (
	"context"
	"time"
)

// Stage is one of the four ordered startup phases.
type Stage int

const (
	StageCritical Stage = iota
	StageCore
	StageServices
	StageReady
)

// Stages returns all stages in execution order.
func Stages() []Stage {
	return []Stage{StageCritical, StageCore, StageServices, StageReady}
}

// String returns the stage name used in logs and journal entries.
func (s Stage) String() string {
	switch s {
	case StageCritical:
		return "critical"
	case StageCore:
		return "core"
	case StageServices:
		return "services"
	case StageReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Priority determines failure severity. A Critical task that fails
// irrecoverably aborts the whole initialization; everything else degrades
// gracefully.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

// String returns the priority name used in logs.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Func is a unit of startup work.
type Func func(ctx context.Context) error

// FallbackFunc is invoked once when a task has exhausted its retries.
// If it returns nil the failure is swallowed and the task counts as completed.
type FallbackFunc func(ctx context.Context, cause error) error

// RetryPolicy configures retries for a single task.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Delay is the wait between attempts.
	Delay time.Duration
	// ExponentialBackoff doubles the delay after every failed attempt.
	ExponentialBackoff bool
}

// Descriptor describes one unit of startup work.
type Descriptor struct {
	// ID is globally unique and used as the graph node key.
	ID   string
	Name string

	Stage    Stage
	Priority Priority

	// Dependencies lists task IDs that must complete before this task starts.
	// Dependencies on earlier stages are satisfied by stage ordering.
	Dependencies []string

	Run      Func
	Fallback FallbackFunc

	Retry *RetryPolicy

	// Timeout bounds a single attempt. Zero means the global default applies.
	Timeout time.Duration
}

// DisplayName returns Name, falling back to ID.
func (d Descriptor) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// MaxAttempts returns the effective attempt count for the descriptor.
func (d Descriptor) MaxAttempts() int {
	if d.Retry == nil || d.Retry.MaxAttempts < 1 {
		return 1
	}
	return d.Retry.MaxAttempts
}
