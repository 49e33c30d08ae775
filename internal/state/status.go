package state

// Status is the lifecycle status of a task, a stage, or the whole run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// allowedTransition validates forward-only status transitions. No status may
// ever revert.
func allowedTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusInProgress || to == StatusSkipped
	case StatusInProgress:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}
