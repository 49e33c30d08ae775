package executor

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pablasso/liftoff/internal/state"
	"github.com/pablasso/liftoff/internal/task"
)

// Timing records how long one task took, regardless of the store.
type Timing struct {
	TaskID   string
	Name     string
	Stage    task.Stage
	Status   state.Status
	Duration time.Duration
}

// Report summarizes the last run: total wall time and the slowest tasks.
type Report struct {
	RunID   string
	Total   time.Duration
	Slowest []Timing
}

func (in *Initializer) recordTiming(d task.Descriptor, status state.Status, took time.Duration) {
	in.mu.Lock()
	in.timings = append(in.timings, Timing{
		TaskID:   d.ID,
		Name:     d.DisplayName(),
		Stage:    d.Stage,
		Status:   status,
		Duration: took,
	})
	in.mu.Unlock()
}

// Report returns the timing report for the last (or current) run.
func (in *Initializer) Report() Report {
	in.mu.Lock()
	timings := append([]Timing(nil), in.timings...)
	r := Report{RunID: in.runID, Total: in.total}
	in.mu.Unlock()

	sort.SliceStable(timings, func(i, j int) bool {
		return timings[i].Duration > timings[j].Duration
	})
	if n := in.opts.SlowTaskReportSize; n > 0 && len(timings) > n {
		timings = timings[:n]
	}
	r.Slowest = timings
	return r
}

// String renders the report as a ranked list.
func (r Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "total: %s\n", r.Total.Round(time.Millisecond))
	for i, t := range r.Slowest {
		fmt.Fprintf(&sb, "%2d. %s (%s) %s", i+1, t.Name, t.Stage, t.Duration.Round(time.Millisecond))
		if t.Status != state.StatusCompleted {
			fmt.Fprintf(&sb, " [%s]", t.Status)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
