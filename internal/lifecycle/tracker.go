package lifecycle

import "sync"

// State of an instance directory as seen by this process.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

type tracked struct {
	state State
	pid   int
}

// Tracker records the last known state of every instance directory and
// emits a hook event on each transition.
type Tracker struct {
	mu    sync.Mutex
	dirs  map[string]tracked
	hooks *Manager
}

// NewTracker returns a Tracker with its own hook manager.
func NewTracker() *Tracker {
	return &Tracker{dirs: make(map[string]tracked), hooks: NewManager()}
}

// On subscribes to transitions.
func (t *Tracker) On(event Event, h Handler) {
	t.hooks.On(event, h)
}

// State returns the state and pid last recorded for dir.
func (t *Tracker) State(dir string) (State, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.dirs[dir]
	if !ok {
		return StateStopped, 0
	}
	return e.state, e.pid
}

// dirOf finds the directory currently associated with pid.
func (t *Tracker) dirOf(pid int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for dir, e := range t.dirs {
		if e.pid == pid && e.state != StateStopped {
			return dir, true
		}
	}
	return "", false
}

func (t *Tracker) set(event Event, dir string, to State, pid int, err error) {
	t.mu.Lock()
	from := StateStopped
	if e, ok := t.dirs[dir]; ok {
		from = e.state
	}
	if dir != "" {
		if to == StateStopped {
			delete(t.dirs, dir)
		} else {
			t.dirs[dir] = tracked{state: to, pid: pid}
		}
	}
	t.mu.Unlock()

	t.hooks.Emit(event, Transition{Dir: dir, PID: pid, From: from, To: to, Err: err})
}

// setPID records a transition for a pid whose directory may be unknown.
func (t *Tracker) setPID(event Event, pid int, to State, err error) {
	dir, _ := t.dirOf(pid)
	t.set(event, dir, to, pid, err)
}
