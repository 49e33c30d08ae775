// Package testutil provides testing utilities for the liftoff project.
package testutil

import (
	"sync"

	"github.com/pablasso/liftoff/internal/state"
	"github.com/pablasso/liftoff/internal/task"
)

// Event is one recorded listener callback.
type Event struct {
	Kind     string // task_start, task_complete, task_fail, stage_start, stage_complete, progress, init_complete, init_fail
	Stage    task.Stage
	TaskID   string
	Progress int
	Err      error
}

// Recorder captures every listener callback for assertions. Safe for
// concurrent use; batch members report from separate goroutines.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Listener returns a state.Listener that records into r.
func (r *Recorder) Listener() state.Listener {
	return state.Listener{
		OnTaskStart: func(stage task.Stage, ts state.TaskState) {
			r.append(Event{Kind: "task_start", Stage: stage, TaskID: ts.ID})
		},
		OnTaskComplete: func(stage task.Stage, ts state.TaskState) {
			r.append(Event{Kind: "task_complete", Stage: stage, TaskID: ts.ID})
		},
		OnTaskFail: func(stage task.Stage, ts state.TaskState) {
			var err error
			if ts.Err != nil {
				err = ts.Err.Err
			}
			r.append(Event{Kind: "task_fail", Stage: stage, TaskID: ts.ID, Err: err})
		},
		OnStageStart: func(stage task.Stage) {
			r.append(Event{Kind: "stage_start", Stage: stage})
		},
		OnStageComplete: func(stage task.Stage) {
			r.append(Event{Kind: "stage_complete", Stage: stage})
		},
		OnProgressUpdate: func(overall int) {
			r.append(Event{Kind: "progress", Progress: overall})
		},
		OnInitializationComplete: func(snap state.Snapshot) {
			r.append(Event{Kind: "init_complete"})
		},
		OnInitializationFail: func(snap state.Snapshot, err error) {
			r.append(Event{Kind: "init_fail", Err: err})
		},
	}
}

func (r *Recorder) append(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the recorded event kinds in order.
func (r *Recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// ProgressValues returns every recorded overall-progress value in order.
func (r *Recorder) ProgressValues() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var vals []int
	for _, e := range r.events {
		if e.Kind == "progress" {
			vals = append(vals, e.Progress)
		}
	}
	return vals
}
