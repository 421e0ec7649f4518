package trip

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LocationRepository defines the persistence contract for stop reference data.
type LocationRepository interface {
	// Save persists a new location.
	Save(ctx context.Context, loc Location) error

	// FindByID retrieves a location by its identifier.
	FindByID(ctx context.Context, id uuid.UUID) (Location, error)

	// List retrieves all locations ordered by name.
	List(ctx context.Context) ([]Location, error)
}

// TemplateRepository defines the persistence contract for trip templates.
type TemplateRepository interface {
	// Save persists a new template together with its segment chain.
	Save(ctx context.Context, template *Template) error

	// FindByID retrieves a template with its segments.
	FindByID(ctx context.Context, id uuid.UUID) (*Template, error)

	// List retrieves templates with pagination.
	List(ctx context.Context, page, limit int) ([]*Template, int64, error)
}

// OccurrenceRepository defines the persistence contract for trip occurrences.
type OccurrenceRepository interface {
	// Save persists a new occurrence and its materialized segment instances
	// as a single unit.
	Save(ctx context.Context, occurrence *Occurrence, instances []SegmentInstance) error

	// FindByID retrieves an occurrence by its identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Occurrence, error)

	// Update persists changes to an occurrence with optimistic locking.
	Update(ctx context.Context, occurrence *Occurrence) error

	// ListByTemplate retrieves occurrences of a template with pagination.
	ListByTemplate(ctx context.Context, templateID uuid.UUID, page, limit int) ([]*Occurrence, int64, error)
}

// Ledger is the segment-occupancy ledger: the single source of truth for
// per-segment seat counters. All counter writes funnel through the
// reservation coordinator; each range operation applies atomically across
// [from, to] with no observable intermediate state, and guarantees
// seatsHeld + seatsOccupied never exceeds the vehicle capacity on any
// instance it touches.
type Ledger interface {
	// Snapshot returns the ordered segment instances of an occurrence with
	// live counters.
	Snapshot(ctx context.Context, occurrenceID uuid.UUID) ([]SegmentInstance, error)

	// Reserve validates availability and increments seatsHeld by seatCount on
	// every instance in [from, to]. On a capacity violation nothing changes
	// and a CapacityExceeded error is returned.
	Reserve(ctx context.Context, occurrenceID uuid.UUID, from, to, seatCount int) error

	// ConfirmHold moves seatCount seats from held to occupied on every
	// instance in [from, to]. When apply is non-nil it runs inside the same
	// atomic unit as the counter move; if it fails the counters stay
	// untouched.
	ConfirmHold(ctx context.Context, occurrenceID uuid.UUID, from, to, seatCount int, apply func(ctx context.Context) error) error

	// Release decrements seatCount seats from the held counter (fromHeld) or
	// the occupied counter on every instance in [from, to]. When apply is
	// non-nil it runs inside the same atomic unit as the counter move; if it
	// fails the counters stay untouched.
	Release(ctx context.Context, occurrenceID uuid.UUID, from, to, seatCount int, fromHeld bool, apply func(ctx context.Context) error) error

	// MarkCompleted sets the completed flag on one segment instance.
	MarkCompleted(ctx context.Context, occurrenceID uuid.UUID, orderIndex int) error

	// SetETA records a predicted arrival time on an incomplete segment instance.
	SetETA(ctx context.Context, occurrenceID uuid.UUID, orderIndex int, eta time.Time) error
}
