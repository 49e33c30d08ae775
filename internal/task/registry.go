package task

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Registry holds registered task descriptors keyed by ID.
//
// Registration never validates dependencies; unknown or cyclic dependencies
// are only detected when a stage is resolved for execution.
type Registry struct {
	mu     sync.Mutex
	order  []string
	tasks  map[string]Descriptor
	logger *zap.Logger
}

// NewRegistry creates an empty registry. A nil logger disables logging.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tasks:  make(map[string]Descriptor),
		logger: logger,
	}
}

// Register adds a descriptor, overwriting (with a warning) any existing entry
// with the same ID. Overwriting keeps the original registration position so
// resolution order stays stable.
func (r *Registry) Register(d Descriptor) error {
	if d.ID == "" {
		return fmt.Errorf("task: descriptor has empty ID")
	}
	if d.Run == nil {
		return fmt.Errorf("task %s: descriptor has nil Run", d.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[d.ID]; exists {
		r.logger.Warn("task already registered, overwriting",
			zap.String("task", d.ID),
			zap.Stringer("stage", d.Stage))
	} else {
		r.order = append(r.order, d.ID)
	}
	r.tasks[d.ID] = d
	return nil
}

// RegisterAll registers descriptors in order, stopping at the first error.
func (r *Registry) RegisterAll(ds []Descriptor) error {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// TasksForStage returns the stage's descriptors in registration order.
// Registration order is the deterministic tie-break the resolver relies on.
func (r *Registry) TasksForStage(s Stage) []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Descriptor
	for _, id := range r.order {
		if d := r.tasks[id]; d.Stage == s {
			out = append(out, d)
		}
	}
	return out
}

// Lookup returns the descriptor registered under id.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.tasks[id]
	return d, ok
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
