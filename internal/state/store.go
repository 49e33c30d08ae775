package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/pablasso/liftoff/internal/task"
)

// stageRecord is the mutable per-stage state owned by the store.
type stageRecord struct {
	status Status
	order  []string
	tasks  map[string]*TaskState
}

func newStageRecord() *stageRecord {
	return &stageRecord{
		status: StatusPending,
		tasks:  make(map[string]*TaskState),
	}
}

func (r *stageRecord) completedCount() int {
	n := 0
	for _, ts := range r.tasks {
		if ts.Status == StatusCompleted {
			n++
		}
	}
	return n
}

func (r *stageRecord) progress() int {
	if r.status == StatusCompleted {
		return 100
	}
	if len(r.tasks) == 0 {
		return 0
	}
	return r.completedCount() * 100 / len(r.tasks)
}

// Store owns the initialization state. The stage runner and task executor
// mutate it exclusively through the transition methods below; every
// transition notifies listeners synchronously, outside the store lock, in
// registration order.
type Store struct {
	mu           sync.Mutex
	runID        string
	currentStage task.Stage
	initializing bool
	initialized  bool
	failed       bool
	startedAt    time.Time
	endedAt      time.Time
	stages       map[task.Stage]*stageRecord
	errs         []TaskError

	listenerMu sync.Mutex
	listeners  []registration
	nextToken  int
}

// NewStore creates a store with all four stages pending.
func NewStore() *Store {
	s := &Store{}
	s.reset()
	return s
}

func (s *Store) reset() {
	s.runID = ""
	s.currentStage = task.StageCritical
	s.initializing = false
	s.initialized = false
	s.failed = false
	s.startedAt = time.Time{}
	s.endedAt = time.Time{}
	s.errs = nil
	s.stages = make(map[task.Stage]*stageRecord, len(task.Stages()))
	for _, st := range task.Stages() {
		s.stages[st] = newStageRecord()
	}
}

// Reset restores the store to its initial state. It exists for test
// harnesses; production code constructs a fresh store per run instead.
func (s *Store) Reset() {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()
}

// InitStarted marks the run as initializing.
func (s *Store) InitStarted(runID string) {
	s.mu.Lock()
	s.runID = runID
	s.initializing = true
	s.startedAt = time.Now()
	s.mu.Unlock()
}

// InitCompleted marks the run as successfully initialized.
func (s *Store) InitCompleted() {
	s.mu.Lock()
	s.initializing = false
	s.initialized = true
	s.endedAt = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(func(l Listener) {
		if l.OnInitializationComplete != nil {
			l.OnInitializationComplete(snap)
		}
	})
}

// InitFailed marks the run as failed.
func (s *Store) InitFailed(err error) {
	s.mu.Lock()
	s.initializing = false
	s.failed = true
	s.endedAt = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(func(l Listener) {
		if l.OnInitializationFail != nil {
			l.OnInitializationFail(snap, err)
		}
	})
}

// StageStarted marks a stage in progress and makes it the current stage.
func (s *Store) StageStarted(st task.Stage) error {
	s.mu.Lock()
	rec := s.stages[st]
	if !allowedTransition(rec.status, StatusInProgress) {
		s.mu.Unlock()
		return fmt.Errorf("state: stage %s cannot start from %s", st, rec.status)
	}
	rec.status = StatusInProgress
	s.currentStage = st
	s.mu.Unlock()

	s.notify(func(l Listener) {
		if l.OnStageStart != nil {
			l.OnStageStart(st)
		}
	})
	return nil
}

// StageCompleted marks a stage completed and recomputes overall progress.
func (s *Store) StageCompleted(st task.Stage) error {
	s.mu.Lock()
	rec := s.stages[st]
	if rec.status != StatusInProgress {
		s.mu.Unlock()
		return fmt.Errorf("state: stage %s cannot complete from %s", st, rec.status)
	}
	rec.status = StatusCompleted
	overall := s.overallLocked()
	s.mu.Unlock()

	s.notify(func(l Listener) {
		if l.OnStageComplete != nil {
			l.OnStageComplete(st)
		}
		if l.OnProgressUpdate != nil {
			l.OnProgressUpdate(overall)
		}
	})
	return nil
}

// RegisterTask creates a pending TaskState in the given stage. Registering
// an existing task is a no-op; statuses only ever move forward.
func (s *Store) RegisterTask(st task.Stage, id string) {
	s.mu.Lock()
	rec := s.stages[st]
	if _, exists := rec.tasks[id]; !exists {
		rec.order = append(rec.order, id)
		rec.tasks[id] = &TaskState{ID: id, Status: StatusPending}
	}
	s.mu.Unlock()
}

// TaskStarted transitions a task to in_progress.
func (s *Store) TaskStarted(st task.Stage, id string) error {
	ts, err := s.transition(st, id, StatusInProgress, func(ts *TaskState) {
		ts.StartedAt = time.Now()
	})
	if err != nil {
		return err
	}

	s.notify(func(l Listener) {
		if l.OnTaskStart != nil {
			l.OnTaskStart(st, ts)
		}
	})
	return nil
}

// TaskCompleted transitions a task to completed and recomputes progress.
func (s *Store) TaskCompleted(st task.Stage, id string, attempts int) error {
	ts, err := s.transition(st, id, StatusCompleted, func(ts *TaskState) {
		ts.EndedAt = time.Now()
		ts.Duration = ts.EndedAt.Sub(ts.StartedAt)
		ts.Attempts = attempts
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	overall := s.overallLocked()
	s.mu.Unlock()

	s.notify(func(l Listener) {
		if l.OnTaskComplete != nil {
			l.OnTaskComplete(st, ts)
		}
		if l.OnProgressUpdate != nil {
			l.OnProgressUpdate(overall)
		}
	})
	return nil
}

// TaskFailed transitions a task to failed and appends to the error list.
func (s *Store) TaskFailed(st task.Stage, id string, taskErr TaskError) error {
	ts, err := s.transition(st, id, StatusFailed, func(ts *TaskState) {
		ts.EndedAt = time.Now()
		ts.Duration = ts.EndedAt.Sub(ts.StartedAt)
		ts.Attempts = taskErr.Attempts
		e := taskErr
		ts.Err = &e
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.errs = append(s.errs, taskErr)
	s.mu.Unlock()

	s.notify(func(l Listener) {
		if l.OnTaskFail != nil {
			l.OnTaskFail(st, ts)
		}
	})
	return nil
}

// TaskSkipped transitions a pending task to skipped.
func (s *Store) TaskSkipped(st task.Stage, id string) error {
	_, err := s.transition(st, id, StatusSkipped, nil)
	return err
}

// transition applies a validated status transition and returns a copy of the
// resulting task state.
func (s *Store) transition(st task.Stage, id string, to Status, mutate func(*TaskState)) (TaskState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.stages[st]
	ts, ok := rec.tasks[id]
	if !ok {
		return TaskState{}, fmt.Errorf("state: unknown task %s in stage %s", id, st)
	}
	if !allowedTransition(ts.Status, to) {
		return TaskState{}, fmt.Errorf("state: task %s: disallowed transition %s -> %s", id, ts.Status, to)
	}
	ts.Status = to
	if mutate != nil {
		mutate(ts)
	}
	return *ts, nil
}

// overallLocked computes the weighted overall progress, 0-100.
func (s *Store) overallLocked() int {
	sum := 0
	for st, rec := range s.stages {
		sum += stageWeights[st] * rec.progress()
	}
	return (sum + 50) / 100
}

// OverallProgress returns the weighted overall progress, 0-100.
func (s *Store) OverallProgress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overallLocked()
}

// Snapshot returns a consistent deep copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		RunID:           s.runID,
		CurrentStage:    s.currentStage,
		Stages:          make(map[task.Stage]StageState, len(s.stages)),
		Initializing:    s.initializing,
		Initialized:     s.initialized,
		Failed:          s.failed,
		OverallProgress: s.overallLocked(),
		Errors:          append([]TaskError(nil), s.errs...),
		StartedAt:       s.startedAt,
		EndedAt:         s.endedAt,
	}
	for st, rec := range s.stages {
		ss := StageState{
			Stage:          st,
			Status:         rec.status,
			Tasks:          make(map[string]TaskState, len(rec.tasks)),
			CompletedCount: rec.completedCount(),
			TotalCount:     len(rec.tasks),
			Progress:       rec.progress(),
		}
		for id, ts := range rec.tasks {
			ss.Tasks[id] = *ts
		}
		snap.Stages[st] = ss
	}
	return snap
}
