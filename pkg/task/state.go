package task

import "fmt"

// State is the lifecycle state published for a tracked task.
type State uint8

const (
	StateInitial State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateError
)

var stateNames = [...]string{
	StateInitial:   "INITIAL",
	StateRunning:   "RUNNING",
	StateCompleted: "COMPLETED",
	StateCancelled: "CANCELLED",
	StateError:     "ERROR",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// IsTerminal reports whether no further transitions follow s.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateError:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	if int(s) >= len(stateNames) {
		return nil, fmt.Errorf("invalid state %d", s)
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState parses the text form produced by String.
func ParseState(name string) (State, error) {
	for i, n := range stateNames {
		if n == name {
			return State(i), nil
		}
	}
	return StateInitial, fmt.Errorf("unknown state %q", name)
}
