package sandbox

import (
	"fmt"
	"slices"
)

type State uint8

const (
	StateIdle State = iota
	StateLoaded
	StateRunning
	StateCompleted
	StateFailed
	StateTimedOut
)

var stateNames = map[State]string{
	StateIdle:      "idle",
	StateLoaded:    "loaded",
	StateRunning:   "running",
	StateCompleted: "completed",
	StateFailed:    "failed",
	StateTimedOut:  "timed-out",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", s)
}

// Terminal reports whether a run ended in this state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateTimedOut
}

var transitions = map[State][]State{
	StateIdle:      {StateLoaded},
	StateLoaded:    {StateRunning, StateFailed},
	StateRunning:   {StateCompleted, StateFailed, StateTimedOut},
	StateCompleted: {StateLoaded},
	StateFailed:    {StateLoaded},
	StateTimedOut:  {StateLoaded},
}

func (s State) CanTransit(to State) bool {
	return slices.Contains(transitions[s], to)
}

// endState is the terminal state a run with the outcome ends in.
func endState(outcome *Outcome) State {
	switch {
	case outcome.Failure == nil:
		return StateCompleted
	case outcome.Failure.Kind == FailureTimeout:
		return StateTimedOut
	}
	return StateFailed
}
