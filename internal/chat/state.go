package chat

import "slices"

// State is a session's position in the send/classify cycle.
type State string

const (
	StateIdle                   State = "idle"
	StateComposing              State = "composing"
	StateAwaitingClassification State = "awaiting_classification"
	StateDisplayed              State = "displayed"
	StateFailed                 State = "failed"
)

var transitions = map[State][]State{
	StateIdle:                   {StateComposing},
	StateComposing:              {StateIdle, StateAwaitingClassification},
	StateAwaitingClassification: {StateDisplayed, StateFailed},
	StateFailed:                 {StateDisplayed},
	StateDisplayed:              {StateComposing},
}

// CanTransition reports whether a session may move from s to next.
func (s State) CanTransition(next State) bool {
	return slices.Contains(transitions[s], next)
}
