package state

import (
	"github.com/google/uuid"

	"github.com/pablasso/liftoff/internal/task"
)

// Listener aggregates optional lifecycle callbacks. Any nil callback is
// simply not invoked. Callbacks run synchronously on the goroutine performing
// the transition and must not block for long.
type Listener struct {
	OnTaskStart    func(stage task.Stage, ts TaskState)
	OnTaskComplete func(stage task.Stage, ts TaskState)
	OnTaskFail     func(stage task.Stage, ts TaskState)

	OnStageStart    func(stage task.Stage)
	OnStageComplete func(stage task.Stage)

	OnProgressUpdate func(overall int)

	OnInitializationComplete func(snap Snapshot)
	OnInitializationFail     func(snap Snapshot, err error)
}

type registration struct {
	token string
	l     Listener
}

// AddListener registers a listener and returns a token for removal.
func (s *Store) AddListener(l Listener) string {
	token := uuid.NewString()
	s.listenerMu.Lock()
	s.listeners = append(s.listeners, registration{token: token, l: l})
	s.listenerMu.Unlock()
	return token
}

// RemoveListener unregisters the listener added under token.
func (s *Store) RemoveListener(token string) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	for i, reg := range s.listeners {
		if reg.token == token {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// notify invokes fn for every listener in registration order.
func (s *Store) notify(fn func(Listener)) {
	s.listenerMu.Lock()
	regs := append([]registration(nil), s.listeners...)
	s.listenerMu.Unlock()

	for _, reg := range regs {
		fn(reg.l)
	}
}
