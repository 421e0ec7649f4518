package reservation

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/shuttlehq/service-reservation/internal/domain"
)

const reservationNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Reservation is the aggregate root for a seat booking on a trip occurrence.
// Its segment range and seat count are immutable after creation; rebooking a
// different range is modelled as cancel plus create.
type Reservation struct {
	id                uuid.UUID
	reservationNumber string
	tripOccurrenceID  uuid.UUID
	guestID           uuid.UUID
	seatCount         int
	fromIndex         int
	toIndex           int
	fromLocationID    uuid.UUID
	toLocationID      uuid.UUID
	state             State

	fareCents int64
	currency  string

	confirmedAt *time.Time
	releasedAt  *time.Time
	releaseNote string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// generateReservationNumber creates a reservation number in the format "RS-XXXXXX".
func generateReservationNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(reservationNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate reservation number: %w", err)
		}
		result[i] = reservationNumberChars[n.Int64()]
	}
	return "RS-" + string(result), nil
}

// NewReservation creates a new Reservation aggregate in the held state.
func NewReservation(
	tripOccurrenceID uuid.UUID,
	guestID uuid.UUID,
	seatCount int,
	fromIndex, toIndex int,
	fromLocationID, toLocationID uuid.UUID,
	fareCents int64,
	currency string,
) (*Reservation, error) {
	if tripOccurrenceID == uuid.Nil {
		return nil, domain.NewValidationError("trip occurrence ID is required")
	}
	if guestID == uuid.Nil {
		return nil, domain.NewValidationError("guest ID is required")
	}
	if seatCount <= 0 {
		return nil, domain.NewValidationError("seat count must be positive")
	}
	if fromIndex < 0 || fromIndex > toIndex {
		return nil, domain.NewValidationError("invalid segment range")
	}
	if fareCents < 0 {
		return nil, domain.NewValidationError("fare cannot be negative")
	}

	number, err := generateReservationNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Reservation{
		id:                uuid.New(),
		reservationNumber: number,
		tripOccurrenceID:  tripOccurrenceID,
		guestID:           guestID,
		seatCount:         seatCount,
		fromIndex:         fromIndex,
		toIndex:           toIndex,
		fromLocationID:    fromLocationID,
		toLocationID:      toLocationID,
		state:             StateHeld,
		fareCents:         fareCents,
		currency:          currency,
		version:           1,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// ReconstructReservation rebuilds a Reservation from persistence data (no validation).
func ReconstructReservation(
	id uuid.UUID,
	reservationNumber string,
	tripOccurrenceID uuid.UUID,
	guestID uuid.UUID,
	seatCount int,
	fromIndex, toIndex int,
	fromLocationID, toLocationID uuid.UUID,
	state State,
	fareCents int64,
	currency string,
	confirmedAt *time.Time,
	releasedAt *time.Time,
	releaseNote string,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Reservation {
	return &Reservation{
		id:                id,
		reservationNumber: reservationNumber,
		tripOccurrenceID:  tripOccurrenceID,
		guestID:           guestID,
		seatCount:         seatCount,
		fromIndex:         fromIndex,
		toIndex:           toIndex,
		fromLocationID:    fromLocationID,
		toLocationID:      toLocationID,
		state:             state,
		fareCents:         fareCents,
		currency:          currency,
		confirmedAt:       confirmedAt,
		releasedAt:        releasedAt,
		releaseNote:       releaseNote,
		version:           version,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

// ID returns the reservation's unique identifier.
func (r *Reservation) ID() uuid.UUID { return r.id }

// ReservationNumber returns the human-readable reservation number.
func (r *Reservation) ReservationNumber() string { return r.reservationNumber }

// TripOccurrenceID returns the trip occurrence this reservation is booked on.
func (r *Reservation) TripOccurrenceID() uuid.UUID { return r.tripOccurrenceID }

// GuestID returns the booking guest's user ID.
func (r *Reservation) GuestID() uuid.UUID { return r.guestID }

// SeatCount returns the number of seats reserved.
func (r *Reservation) SeatCount() int { return r.seatCount }

// FromIndex returns the first segment index the reservation occupies.
func (r *Reservation) FromIndex() int { return r.fromIndex }

// ToIndex returns the last segment index the reservation occupies.
func (r *Reservation) ToIndex() int { return r.toIndex }

// FromLocationID returns the boarding location.
func (r *Reservation) FromLocationID() uuid.UUID { return r.fromLocationID }

// ToLocationID returns the alighting location.
func (r *Reservation) ToLocationID() uuid.UUID { return r.toLocationID }

// State returns the current reservation state.
func (r *Reservation) State() State { return r.state }

// FareCents returns the captured fare in cents.
func (r *Reservation) FareCents() int64 { return r.fareCents }

// Currency returns the fare currency code.
func (r *Reservation) Currency() string { return r.currency }

// ConfirmedAt returns the time the reservation was confirmed, if it was.
func (r *Reservation) ConfirmedAt() *time.Time { return r.confirmedAt }

// ReleasedAt returns the time the reservation was released, if it was.
func (r *Reservation) ReleasedAt() *time.Time { return r.releasedAt }

// ReleaseNote returns the release reason.
func (r *Reservation) ReleaseNote() string { return r.releaseNote }

// Version returns the entity version for optimistic locking.
func (r *Reservation) Version() int64 { return r.version }

// CreatedAt returns the creation timestamp.
func (r *Reservation) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (r *Reservation) UpdatedAt() time.Time { return r.updatedAt }

// Confirm transitions the reservation from held to occupied.
func (r *Reservation) Confirm() error {
	if !r.state.CanTransitionTo(StateOccupied) {
		return domain.NewInvalidTransitionError(string(r.state), string(StateOccupied))
	}
	now := time.Now().UTC()
	r.state = StateOccupied
	r.confirmedAt = &now
	r.updatedAt = now
	return nil
}

// Release transitions the reservation to released from either held or
// occupied. Releasing an already-released reservation fails with the
// idempotency guard so counters are never decremented twice.
func (r *Reservation) Release(reason string) error {
	if r.state == StateReleased {
		return domain.NewAlreadyReleasedError(r.id.String())
	}
	if !r.state.CanTransitionTo(StateReleased) {
		return domain.NewInvalidTransitionError(string(r.state), string(StateReleased))
	}
	now := time.Now().UTC()
	r.state = StateReleased
	r.releaseNote = reason
	r.releasedAt = &now
	r.updatedAt = now
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (r *Reservation) IncrementVersion() {
	r.version++
	r.updatedAt = time.Now().UTC()
}
