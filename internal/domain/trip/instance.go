package trip

import (
	"time"

	"github.com/google/uuid"
)

// SegmentInstance is the live, per-occurrence copy of a template segment
// carrying the seat counters and progress state. Counters are mutated only
// through the ledger; everything else reads snapshots.
type SegmentInstance struct {
	ID               uuid.UUID  `json:"id"`
	TripOccurrenceID uuid.UUID  `json:"trip_occurrence_id"`
	OrderIndex       int        `json:"order_index"`
	SeatsHeld        int        `json:"seats_held"`
	SeatsOccupied    int        `json:"seats_occupied"`
	Completed        bool       `json:"completed"`
	ETA              *time.Time `json:"eta,omitempty"`
}

// Available returns the number of seats still free on this instance for a
// vehicle of the given capacity.
func (si SegmentInstance) Available(capacity int) int {
	return capacity - si.SeatsHeld - si.SeatsOccupied
}
