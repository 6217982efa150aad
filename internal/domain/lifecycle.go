package domain

import (
	"fmt"
	"time"
)

// State is a planner lifecycle state.
type State int

const (
	StateEmpty State = iota
	StatePathsComputed
	StateTourComputed
	StateTourMutated
)

var stateNames = map[State]string{
	StateEmpty:         "empty",
	StatePathsComputed: "paths_computed",
	StateTourComputed:  "tour_computed",
	StateTourMutated:   "tour_mutated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// HasTour reports whether a computed tour is exposed in this state.
func (s State) HasTour() bool {
	return s == StateTourComputed || s == StateTourMutated
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for k, v := range stateNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("parse state %q: %w", b, ErrInvalidInput)
}

// Transition records one lifecycle change of the planner.
type Transition struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Operation string    `json:"operation"`
	Version   uint64    `json:"version"`
	At        time.Time `json:"at"`
}
