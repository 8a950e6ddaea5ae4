package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// State is the lifecycle state of a table stream.
type State int

const (
	StateUnstarted State = iota
	StateRunning
	StateStopped
	StateFailed
)

var stateNames = map[State]string{
	StateUnstarted: "UNSTARTED",
	StateRunning:   "RUNNING",
	StateStopped:   "STOPPED",
	StateFailed:    "FAILED",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for k, v := range stateNames {
		if strings.EqualFold(v, name) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown stream state %q", name)
}

// IsTerminal returns true for STOPPED and FAILED.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}
