package reservation

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for reservation aggregates.
type Repository interface {
	// FindByID retrieves a reservation by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// FindByNumber retrieves a reservation by its human-readable number.
	FindByNumber(ctx context.Context, number string) (*Reservation, error)

	// FindByGuestID retrieves reservations belonging to a guest with pagination.
	FindByGuestID(ctx context.Context, guestID uuid.UUID, page, limit int) ([]*Reservation, int64, error)

	// FindActiveByOccurrence retrieves all held or occupied reservations on a
	// trip occurrence.
	FindActiveByOccurrence(ctx context.Context, occurrenceID uuid.UUID) ([]*Reservation, error)

	// ListAll retrieves all reservations with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Reservation, int64, error)

	// CountByState returns reservation counts grouped by state (admin).
	CountByState(ctx context.Context) (map[string]int64, error)

	// Save persists a new reservation.
	Save(ctx context.Context, r *Reservation) error

	// Update persists changes to an existing reservation with optimistic locking.
	Update(ctx context.Context, r *Reservation) error
}
