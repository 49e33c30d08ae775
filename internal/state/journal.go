package state

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pablasso/liftoff/internal/task"
)

// Event type constants for journal entries.
const (
	EventInitCompleted = "init_completed"
	EventInitFailed    = "init_failed"
	EventStageStarted  = "stage_started"
	EventStageDone     = "stage_completed"
	EventTaskStarted   = "task_started"
	EventTaskCompleted = "task_completed"
	EventTaskFailed    = "task_failed"
)

// JournalEntry is a single journal line.
type JournalEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Event     string                 `json:"event"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Journal appends initialization progress events to a JSON Lines file.
// Register it on a store via Listener().
type Journal struct {
	path string
}

// NewJournal creates a journal writing to path.
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// Log appends one entry to the journal file.
func (j *Journal) Log(event string, data map[string]interface{}) error {
	entry := JournalEntry{
		Timestamp: time.Now(),
		Event:     event,
		Data:      data,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	jsonBytes = append(jsonBytes, '\n')

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(jsonBytes)
	return err
}

// Listener returns a store listener that journals every transition.
// Write errors are dropped; the journal is diagnostic, not authoritative.
func (j *Journal) Listener() Listener {
	return Listener{
		OnTaskStart: func(stage task.Stage, ts TaskState) {
			j.Log(EventTaskStarted, map[string]interface{}{
				"task_id": ts.ID,
				"stage":   stage.String(),
			})
		},
		OnTaskComplete: func(stage task.Stage, ts TaskState) {
			j.Log(EventTaskCompleted, map[string]interface{}{
				"task_id":     ts.ID,
				"stage":       stage.String(),
				"attempts":    ts.Attempts,
				"duration_ms": ts.Duration.Milliseconds(),
			})
		},
		OnTaskFail: func(stage task.Stage, ts TaskState) {
			data := map[string]interface{}{
				"task_id":  ts.ID,
				"stage":    stage.String(),
				"attempts": ts.Attempts,
			}
			if ts.Err != nil {
				data["error"] = ts.Err.Message
			}
			j.Log(EventTaskFailed, data)
		},
		OnStageStart: func(stage task.Stage) {
			j.Log(EventStageStarted, map[string]interface{}{
				"stage": stage.String(),
			})
		},
		OnStageComplete: func(stage task.Stage) {
			j.Log(EventStageDone, map[string]interface{}{
				"stage": stage.String(),
			})
		},
		OnInitializationComplete: func(snap Snapshot) {
			j.Log(EventInitCompleted, map[string]interface{}{
				"run_id":      snap.RunID,
				"duration_ms": snap.EndedAt.Sub(snap.StartedAt).Milliseconds(),
			})
		},
		OnInitializationFail: func(snap Snapshot, err error) {
			j.Log(EventInitFailed, map[string]interface{}{
				"run_id": snap.RunID,
				"error":  err.Error(),
			})
		},
	}
}
