package dialogue

import "fmt"

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateRunning
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// MarshalText lets State appear by name in JSON and YAML.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for _, st := range []State{StateIdle, StateRunning, StatePaused, StateStopped} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// stateMachine holds the allowed transitions. Callers serialize access.
type stateMachine struct {
	current     State
	transitions map[State][]State
	onEnter     map[State]func()
}

func newStateMachine() *stateMachine {
	return &stateMachine{
		current: StateIdle,
		transitions: map[State][]State{
			StateIdle:    {StateRunning},
			StateRunning: {StatePaused, StateStopped},
			StatePaused:  {StateRunning, StateStopped},
			StateStopped: {StateRunning},
		},
		onEnter: make(map[State]func()),
	}
}

// transition moves to the given state and reports whether it was allowed.
func (sm *stateMachine) transition(to State) bool {
	valid := false
	for _, s := range sm.transitions[sm.current] {
		if s == to {
			valid = true
			break
		}
	}
	if !valid {
		return false
	}

	sm.current = to
	if fn := sm.onEnter[to]; fn != nil {
		fn()
	}
	return true
}
