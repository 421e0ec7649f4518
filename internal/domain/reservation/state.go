package reservation

import "fmt"

// State represents the lifecycle state of a reservation. A HELD reservation
// contributes its seat count to seatsHeld on every segment instance in its
// range; an OCCUPIED one contributes to seatsOccupied instead; RELEASED
// contributes to neither and is terminal.
type State string

const (
	StateHeld     State = "held"
	StateOccupied State = "occupied"
	StateReleased State = "released"
)

// validTransitions defines the state machine for reservations.
var validTransitions = map[State][]State{
	StateHeld:     {StateOccupied, StateReleased},
	StateOccupied: {StateReleased},
	StateReleased: {},
}

// IsValid returns true if the state is a recognized reservation state.
func (s State) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this state to the target is allowed.
func (s State) CanTransitionTo(target State) bool {
	for _, t := range validTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this state.
func (s State) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// ParseState converts a string to a State, returning an error if invalid.
func ParseState(s string) (State, error) {
	state := State(s)
	if !state.IsValid() {
		return "", fmt.Errorf("invalid reservation state: %s", s)
	}
	return state, nil
}
