// Package state tracks per-task, per-stage and overall initialization
// progress, and notifies registered listeners on every transition.
package state

import (
	"time"

	"github.com/pablasso/liftoff/internal/task"
)

// Stage weights for the overall progress computation. They sum to 100.
var stageWeights = map[task.Stage]int{
	task.StageCritical: 30,
	task.StageCore:     30,
	task.StageServices: 25,
	task.StageReady:    15,
}

// TaskError is the structured record of a task failure.
type TaskError struct {
	TaskID    string    `json:"task_id"`
	TaskName  string    `json:"task_name"`
	Message   string    `json:"message"`
	Err       error     `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Attempts  int       `json:"attempts"`
}

// TaskState is the execution state of a single task.
type TaskState struct {
	ID        string
	Status    Status
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
	Attempts  int
	Err       *TaskError
}

// StageState is a point-in-time copy of one stage's execution state.
type StageState struct {
	Stage          task.Stage
	Status         Status
	Tasks          map[string]TaskState
	CompletedCount int
	TotalCount     int
	// Progress is 0-100. While the stage runs it is completed/total; a
	// completed stage always reports 100, so failed or skipped tasks cannot
	// keep the overall progress short of its weight.
	Progress int
}

// Snapshot is a consistent copy of the whole initialization state.
type Snapshot struct {
	RunID           string
	CurrentStage    task.Stage
	Stages          map[task.Stage]StageState
	Initializing    bool
	Initialized     bool
	Failed          bool
	OverallProgress int
	Errors          []TaskError
	StartedAt       time.Time
	EndedAt         time.Time
}

// FirstError returns the first recorded task error, or nil.
func (s Snapshot) FirstError() *TaskError {
	if len(s.Errors) == 0 {
		return nil
	}
	e := s.Errors[0]
	return &e
}
