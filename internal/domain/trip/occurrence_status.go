package trip

import "fmt"

// OccurrenceStatus represents the lifecycle state of a scheduled trip run.
type OccurrenceStatus string

const (
	StatusScheduled  OccurrenceStatus = "scheduled"
	StatusInProgress OccurrenceStatus = "in_progress"
	StatusCompleted  OccurrenceStatus = "completed"
	StatusCancelled  OccurrenceStatus = "cancelled"
)

// validOccurrenceTransitions defines the state machine for trip occurrences.
var validOccurrenceTransitions = map[OccurrenceStatus][]OccurrenceStatus{
	StatusScheduled:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// IsValid returns true if the status is a recognized occurrence status.
func (s OccurrenceStatus) IsValid() bool {
	_, exists := validOccurrenceTransitions[s]
	return exists
}

// CanTransitionTo returns true if a transition from this status to the target is allowed.
func (s OccurrenceStatus) CanTransitionTo(target OccurrenceStatus) bool {
	for _, t := range validOccurrenceTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible from this status.
func (s OccurrenceStatus) IsTerminal() bool {
	allowed, exists := validOccurrenceTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// AcceptsReservations returns true if new reservations may be created against
// an occurrence in this status. Boarding mid-route keeps late segments
// bookable after departure, so in-progress runs still accept reservations.
func (s OccurrenceStatus) AcceptsReservations() bool {
	return s == StatusScheduled || s == StatusInProgress
}

// String returns the string representation of the status.
func (s OccurrenceStatus) String() string {
	return string(s)
}

// ParseOccurrenceStatus converts a string to an OccurrenceStatus, returning an error if invalid.
func ParseOccurrenceStatus(s string) (OccurrenceStatus, error) {
	status := OccurrenceStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid occurrence status: %s", s)
	}
	return status, nil
}
