package lifecycle

import "fmt"

// State is the lifecycle state of an instance.
type State int

// Lifecycle states.
const (
	Created State = iota
	Starting
	Running
	Stopping
	Stopped
	Disposed
)

var stateNames = [...]string{
	Created:  "created",
	Starting: "starting",
	Running:  "running",
	Stopping: "stopping",
	Stopped:  "stopped",
	Disposed: "disposed",
}

// String returns the lowercase state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown lifecycle state %q", string(b))
}

// States lists every state in declaration order.
func States() []State {
	return []State{Created, Starting, Running, Stopping, Stopped, Disposed}
}
