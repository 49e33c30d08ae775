// Package graph resolves the execution order of one stage's tasks.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pablasso/liftoff/internal/task"
)

var (
	// ErrCycle indicates a dependency cycle among same-stage tasks.
	ErrCycle = errors.New("graph: dependency cycle detected")
	// ErrStageOrder indicates a dependency on a task in the same or a later
	// stage that is not part of the resolved set. Stage ordering cannot
	// satisfy such a dependency, so it is a configuration error.
	ErrStageOrder = errors.New("graph: dependency not satisfied by stage order")
)

// Lookup resolves a task ID to its registered descriptor. *task.Registry
// satisfies it.
type Lookup interface {
	Lookup(id string) (task.Descriptor, bool)
}

// stageGraph is an arena-indexed dependency graph over one stage's tasks.
// Node index = position in the input slice, which doubles as the
// deterministic tie-break for the topological order.
type stageGraph struct {
	tasks    []task.Descriptor
	index    map[string]int
	indegree []int
	// adjacent[i] lists nodes that depend on node i.
	adjacent [][]int
}

func build(tasks []task.Descriptor, reg Lookup, logger *zap.Logger) (*stageGraph, error) {
	g := &stageGraph{
		tasks:    tasks,
		index:    make(map[string]int, len(tasks)),
		indegree: make([]int, len(tasks)),
		adjacent: make([][]int, len(tasks)),
	}
	for i, t := range tasks {
		g.index[t.ID] = i
	}

	for i, t := range tasks {
		for _, depID := range t.Dependencies {
			if j, ok := g.index[depID]; ok {
				g.adjacent[j] = append(g.adjacent[j], i)
				g.indegree[i]++
				continue
			}

			dep, ok := reg.Lookup(depID)
			if !ok {
				// A dependency nobody registered is treated as satisfied.
				// This lenient policy lets optional subsystems unregister
				// their tasks without breaking dependents.
				logger.Warn("dependency not registered, ignoring",
					zap.String("task", t.ID),
					zap.String("dependency", depID))
				continue
			}
			if dep.Stage >= t.Stage {
				return nil, fmt.Errorf("%w: task %s (stage %s) depends on %s (stage %s)",
					ErrStageOrder, t.ID, t.Stage, depID, dep.Stage)
			}
			// Earlier stage: already completed by the time this stage runs.
		}
	}
	return g, nil
}

// Resolve orders one stage's tasks so every task appears after all of its
// same-stage dependencies (Kahn's algorithm, FIFO queue seeded in input
// order). Dependencies on earlier stages add no edges; dependencies on the
// same or a later stage outside the input set are configuration errors;
// unregistered dependencies are ignored with a warning.
func Resolve(tasks []task.Descriptor, reg Lookup, logger *zap.Logger) ([]task.Descriptor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	g, err := build(tasks, reg, logger)
	if err != nil {
		return nil, err
	}

	remaining := make([]int, len(g.indegree))
	copy(remaining, g.indegree)

	queue := make([]int, 0, len(tasks))
	for i := range tasks {
		if remaining[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]task.Descriptor, 0, len(tasks))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, g.tasks[i])

		for _, j := range g.adjacent[i] {
			remaining[j]--
			if remaining[j] == 0 {
				queue = append(queue, j)
			}
		}
	}

	if len(order) != len(tasks) {
		return nil, fmt.Errorf("%w: %s", ErrCycle, strings.Join(g.cyclic(remaining), ", "))
	}
	return order, nil
}

// cyclic names the tasks still holding edges after Kahn's algorithm drained.
func (g *stageGraph) cyclic(remaining []int) []string {
	var ids []string
	for i, deg := range remaining {
		if deg > 0 {
			ids = append(ids, g.tasks[i].ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Batches partitions a resolved order into concurrency batches of at most
// size tasks. A new batch starts whenever a task directly depends on a member
// of the current batch, so no batch ever contains a dependency pair. Checking
// direct edges is enough: the order is topological, so any transitive
// dependency inside a batch would have its intermediate task inside the batch
// too, and that edge splits first.
func Batches(order []task.Descriptor, size int) [][]task.Descriptor {
	if size < 1 {
		size = 1
	}

	var batches [][]task.Descriptor
	var current []task.Descriptor
	members := make(map[string]bool, size)

	flush := func() {
		if len(current) > 0 {
			batches = append(batches, current)
			current = nil
			members = make(map[string]bool, size)
		}
	}

	for _, t := range order {
		split := len(current) >= size
		if !split {
			for _, dep := range t.Dependencies {
				if members[dep] {
					split = true
					break
				}
			}
		}
		if split {
			flush()
		}
		current = append(current, t)
		members[t.ID] = true
	}
	flush()
	return batches
}
