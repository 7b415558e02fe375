package scan

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-badgescan/pkg/identifier"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateScanning
	StateSuccess
	StateError
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateInitializing: "initializing",
	StateScanning:     "scanning",
	StateSuccess:      "success",
	StateError:        "error",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether the state ends the session.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateError
}

// Active reports whether the session is acquiring or reading the camera.
func (s State) Active() bool {
	return s == StateInitializing || s == StateScanning
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("scan: unknown state %q", b)
}

// Outcome is the current status of a session.
// Identifier is set only in StateSuccess; Error and Reason only in StateError.
type Outcome struct {
	State      State         `json:"state"`
	Identifier identifier.ID `json:"identifier"`
	Error      ErrorKind     `json:"error,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Since      time.Time     `json:"since"`
}

func (o Outcome) String() string {
	switch o.State {
	case StateSuccess:
		return fmt.Sprintf("success(%s)", o.Identifier)
	case StateError:
		return fmt.Sprintf("error(%s: %s)", o.Error, o.Reason)
	}
	return o.State.String()
}
