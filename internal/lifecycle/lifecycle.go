// Package lifecycle starts and stops editor instances and tracks the state of
// each instance directory.
package lifecycle

import (
	"sync"

	"github.com/neboloop/switchyard/internal/logging"
)

// Event types for lifecycle hooks
type Event string

const (
	EventStarting    Event = "instance_starting"
	EventRunning     Event = "instance_running"
	EventStartFailed Event = "instance_start_failed"
	EventStopping    Event = "instance_stopping"
	EventStopped     Event = "instance_stopped"
	EventStopFailed  Event = "instance_stop_failed"
)

// Transition describes one state change of an instance directory.
type Transition struct {
	Dir  string // Normalized data directory ("" when only the pid is known)
	PID  int
	From State
	To   State
	Err  error // Set for the failure events
}

// Handler is a function that handles a lifecycle event
type Handler func(event Event, t Transition)

// Manager manages lifecycle event subscriptions and dispatching
type Manager struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler
}

// NewManager returns an empty hook manager.
func NewManager() *Manager {
	return &Manager{handlers: make(map[Event][]Handler)}
}

// On registers a handler for a lifecycle event
func (m *Manager) On(event Event, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], handler)
}

// Emit dispatches an event to all registered handlers
func (m *Manager) Emit(event Event, t Transition) {
	m.mu.RLock()
	handlers := m.handlers[event]
	m.mu.RUnlock()

	logging.Debugf("[lifecycle] %s dir=%q pid=%d", event, t.Dir, t.PID)
	for _, h := range handlers {
		// Run handlers synchronously (they can spawn goroutines if needed)
		h(event, t)
	}
}
