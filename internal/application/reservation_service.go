package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shuttlehq/service-reservation/internal/domain"
	resDomain "github.com/shuttlehq/service-reservation/internal/domain/reservation"
	"github.com/shuttlehq/service-reservation/internal/domain/trip"
	"github.com/shuttlehq/service-reservation/internal/events"
	"github.com/shuttlehq/service-reservation/internal/metrics"
)

// CreateReservationRequest holds the data needed to create a new reservation.
type CreateReservationRequest struct {
	TripOccurrenceID uuid.UUID `json:"trip_occurrence_id" binding:"required"`
	FromLocationID   uuid.UUID `json:"from_location_id" binding:"required"`
	ToLocationID     uuid.UUID `json:"to_location_id" binding:"required"`
	SeatCount        int       `json:"seat_count" binding:"required,min=1"`
}

// ReservationDTO is the response representation of a reservation.
type ReservationDTO struct {
	ID                uuid.UUID  `json:"id"`
	ReservationNumber string     `json:"reservation_number"`
	TripOccurrenceID  uuid.UUID  `json:"trip_occurrence_id"`
	GuestID           uuid.UUID  `json:"guest_id"`
	SeatCount         int        `json:"seat_count"`
	FromIndex         int        `json:"from_index"`
	ToIndex           int        `json:"to_index"`
	FromLocationID    uuid.UUID  `json:"from_location_id"`
	ToLocationID      uuid.UUID  `json:"to_location_id"`
	State             string     `json:"state"`
	FareCents         int64      `json:"fare_cents"`
	Currency          string     `json:"currency"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	ReleasedAt        *time.Time `json:"released_at,omitempty"`
	ReleaseNote       string     `json:"release_note,omitempty"`
	Version           int64      `json:"version"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// EventPublisher publishes CloudEvents to the outbound event stream.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, event events.CloudEvent) error
}

// ReservationService is the sole writer of ledger counters. It orchestrates
// the reservation lifecycle: seats are held, confirmed into occupancy, or
// released, each step applied to the ledger as one atomic range update.
type ReservationService struct {
	reservations resDomain.Repository
	occurrences  trip.OccurrenceRepository
	templates    trip.TemplateRepository
	ledger       trip.Ledger
	producer     EventPublisher
	collector    *metrics.Collector
	logger       *zap.Logger
}

// NewReservationService creates a new ReservationService.
func NewReservationService(
	reservations resDomain.Repository,
	occurrences trip.OccurrenceRepository,
	templates trip.TemplateRepository,
	ledger trip.Ledger,
	producer EventPublisher,
	collector *metrics.Collector,
	logger *zap.Logger,
) *ReservationService {
	return &ReservationService{
		reservations: reservations,
		occurrences:  occurrences,
		templates:    templates,
		ledger:       ledger,
		producer:     producer,
		collector:    collector,
		logger:       logger,
	}
}

// CreateReservation resolves the guest's boarding and alighting locations to a
// segment range, atomically holds seats across that range, and persists the
// reservation as held. On a capacity failure no counter changes.
func (s *ReservationService) CreateReservation(ctx context.Context, guestID uuid.UUID, req CreateReservationRequest) (*ReservationDTO, error) {
	occ, err := s.occurrences.FindByID(ctx, req.TripOccurrenceID)
	if err != nil {
		return nil, err
	}
	if !occ.Status().AcceptsReservations() {
		return nil, domain.NewConflictError(
			fmt.Sprintf("trip occurrence is %s and not accepting reservations", occ.Status()))
	}

	template, err := s.templates.FindByID(ctx, occ.TemplateID())
	if err != nil {
		return nil, err
	}

	topology := template.Topology()
	from, to, err := topology.ResolveRange(req.FromLocationID, req.ToLocationID)
	if err != nil {
		return nil, err
	}

	fareCents := topology.FareCents(from, to, req.SeatCount)
	res, err := resDomain.NewReservation(
		occ.ID(),
		guestID,
		req.SeatCount,
		from, to,
		req.FromLocationID,
		req.ToLocationID,
		fareCents,
		domain.CurrencyMYR,
	)
	if err != nil {
		return nil, err
	}

	// The hold and its capacity check commit together; the reservation row is
	// written after, so a failed save must give the seats back.
	if err := s.ledger.Reserve(ctx, occ.ID(), from, to, req.SeatCount); err != nil {
		if domain.IsCode(err, domain.CodeCapacityExceeded) {
			s.collector.CapacityRejections.Inc()
		}
		return nil, err
	}

	if err := s.reservations.Save(ctx, res); err != nil {
		if relErr := s.ledger.Release(ctx, occ.ID(), from, to, req.SeatCount, true, nil); relErr != nil {
			s.logger.Error("failed to release seats after save failure",
				zap.String("trip_occurrence_id", occ.ID().String()),
				zap.Error(relErr),
			)
		}
		return nil, fmt.Errorf("failed to save reservation: %w", err)
	}

	s.collector.ReservationsHeld.Inc()
	s.publishHeld(ctx, res)

	result := toReservationDTO(res)
	return &result, nil
}

// ConfirmReservation moves a held reservation's seats into occupancy.
func (s *ReservationService) ConfirmReservation(ctx context.Context, reservationID uuid.UUID) (*ReservationDTO, error) {
	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	if err := res.Confirm(); err != nil {
		return nil, err
	}

	// The optimistic-locked state write runs inside the ledger transaction, so
	// losing a race against a concurrent transition rolls the transfer back and
	// a released reservation can never keep seats occupied.
	res.IncrementVersion()
	err = s.ledger.ConfirmHold(ctx, res.TripOccurrenceID(), res.FromIndex(), res.ToIndex(), res.SeatCount(),
		func(txCtx context.Context) error {
			return s.reservations.Update(txCtx, res)
		})
	if err != nil {
		return nil, err
	}

	s.collector.ReservationsConfirmed.Inc()
	evt := events.ReservationConfirmedEvent{
		ReservationID:     res.ID(),
		ReservationNumber: res.ReservationNumber(),
		TripOccurrenceID:  res.TripOccurrenceID(),
		GuestID:           res.GuestID(),
		SeatCount:         res.SeatCount(),
		OccurredAt:        time.Now().UTC(),
	}
	s.publishEvent(ctx, events.ReservationConfirmed, res.ID().String(), evt)

	result := toReservationDTO(res)
	return &result, nil
}

// RejectReservation releases a reservation on behalf of staff or an external
// sweeper, regardless of who created it.
func (s *ReservationService) RejectReservation(ctx context.Context, reservationID, actorID uuid.UUID, reason string) (*ReservationDTO, error) {
	return s.release(ctx, reservationID, actorID, reason, false, uuid.Nil)
}

// CancelReservation releases a reservation. Guests may only cancel their own;
// pass restrictTo = uuid.Nil for actors allowed to cancel any reservation.
func (s *ReservationService) CancelReservation(ctx context.Context, reservationID, actorID uuid.UUID, restrictTo uuid.UUID, reason string) (*ReservationDTO, error) {
	return s.release(ctx, reservationID, actorID, reason, restrictTo != uuid.Nil, restrictTo)
}

// release is the shared transition to the terminal state. It decrements the
// counter bucket the reservation currently occupies: held if still held,
// occupied if it was confirmed.
func (s *ReservationService) release(ctx context.Context, reservationID, actorID uuid.UUID, reason string, restricted bool, restrictTo uuid.UUID) (*ReservationDTO, error) {
	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	if restricted && res.GuestID() != restrictTo {
		return nil, domain.NewForbiddenError("reservation does not belong to this user")
	}

	releasedFrom := res.State()
	if err := res.Release(reason); err != nil {
		return nil, err
	}

	// Same transaction as the counter decrement; see ConfirmReservation.
	res.IncrementVersion()
	fromHeld := releasedFrom == resDomain.StateHeld
	err = s.ledger.Release(ctx, res.TripOccurrenceID(), res.FromIndex(), res.ToIndex(), res.SeatCount(), fromHeld,
		func(txCtx context.Context) error {
			return s.reservations.Update(txCtx, res)
		})
	if err != nil {
		return nil, err
	}

	s.collector.ReservationsReleased.Inc()
	evt := events.ReservationReleasedEvent{
		ReservationID:     res.ID(),
		ReservationNumber: res.ReservationNumber(),
		TripOccurrenceID:  res.TripOccurrenceID(),
		GuestID:           res.GuestID(),
		SeatCount:         res.SeatCount(),
		ReleasedFrom:      string(releasedFrom),
		ReleasedBy:        actorID,
		Reason:            reason,
		OccurredAt:        time.Now().UTC(),
	}
	s.publishEvent(ctx, events.ReservationReleased, res.ID().String(), evt)

	result := toReservationDTO(res)
	return &result, nil
}

// ReleaseAllForOccurrence releases every active reservation on a trip
// occurrence, used when the scheduler withdraws a run. A failed release does
// not block the rest of the sweep, but the error surfaces so the caller can
// retry the sweep; a reservation released by a concurrent actor counts as
// done.
func (s *ReservationService) ReleaseAllForOccurrence(ctx context.Context, occurrenceID, actorID uuid.UUID, reason string) error {
	active, err := s.reservations.FindActiveByOccurrence(ctx, occurrenceID)
	if err != nil {
		return err
	}

	var failed int
	for _, res := range active {
		_, err := s.release(ctx, res.ID(), actorID, reason, false, uuid.Nil)
		if err != nil && !domain.IsCode(err, domain.CodeAlreadyReleased) {
			failed++
			s.logger.Error("failed to release reservation for cancelled occurrence",
				zap.String("reservation_id", res.ID().String()),
				zap.String("trip_occurrence_id", occurrenceID.String()),
				zap.Error(err),
			)
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to release %d of %d reservations on occurrence %s", failed, len(active), occurrenceID)
	}
	return nil
}

// GetReservation retrieves a single reservation by ID.
func (s *ReservationService) GetReservation(ctx context.Context, reservationID uuid.UUID) (*ReservationDTO, error) {
	res, err := s.reservations.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	result := toReservationDTO(res)
	return &result, nil
}

// GetGuestReservations retrieves paginated reservations for a guest.
func (s *ReservationService) GetGuestReservations(ctx context.Context, guestID uuid.UUID, page, limit int) (*domain.PaginatedResult[ReservationDTO], error) {
	reservations, total, err := s.reservations.FindByGuestID(ctx, guestID, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]ReservationDTO, len(reservations))
	for i, res := range reservations {
		dtos[i] = toReservationDTO(res)
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// --- Admin methods ---

// ReservationStatsDTO holds reservation statistics for the admin dashboard.
type ReservationStatsDTO struct {
	TotalReservations int64            `json:"total_reservations"`
	ByState           map[string]int64 `json:"by_state"`
}

// ListAllReservations returns a paginated list of all reservations (admin).
func (s *ReservationService) ListAllReservations(ctx context.Context, page, limit int) ([]ReservationDTO, int64, error) {
	reservations, total, err := s.reservations.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list reservations: %w", err)
	}

	dtos := make([]ReservationDTO, len(reservations))
	for i, res := range reservations {
		dtos[i] = toReservationDTO(res)
	}
	return dtos, total, nil
}

// GetReservationStats returns aggregate reservation statistics (admin).
func (s *ReservationService) GetReservationStats(ctx context.Context) (*ReservationStatsDTO, error) {
	counts, err := s.reservations.CountByState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &ReservationStatsDTO{
		TotalReservations: total,
		ByState:           counts,
	}, nil
}

// --- Helpers ---

func toReservationDTO(res *resDomain.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:                res.ID(),
		ReservationNumber: res.ReservationNumber(),
		TripOccurrenceID:  res.TripOccurrenceID(),
		GuestID:           res.GuestID(),
		SeatCount:         res.SeatCount(),
		FromIndex:         res.FromIndex(),
		ToIndex:           res.ToIndex(),
		FromLocationID:    res.FromLocationID(),
		ToLocationID:      res.ToLocationID(),
		State:             string(res.State()),
		FareCents:         res.FareCents(),
		Currency:          res.Currency(),
		ConfirmedAt:       res.ConfirmedAt(),
		ReleasedAt:        res.ReleasedAt(),
		ReleaseNote:       res.ReleaseNote(),
		Version:           res.Version(),
		CreatedAt:         res.CreatedAt(),
		UpdatedAt:         res.UpdatedAt(),
	}
}

func (s *ReservationService) publishHeld(ctx context.Context, res *resDomain.Reservation) {
	evt := events.ReservationHeldEvent{
		ReservationID:     res.ID(),
		ReservationNumber: res.ReservationNumber(),
		TripOccurrenceID:  res.TripOccurrenceID(),
		GuestID:           res.GuestID(),
		SeatCount:         res.SeatCount(),
		FromIndex:         res.FromIndex(),
		ToIndex:           res.ToIndex(),
		FareCents:         res.FareCents(),
		Currency:          res.Currency(),
		OccurredAt:        time.Now().UTC(),
	}
	s.publishEvent(ctx, events.ReservationHeld, res.ID().String(), evt)
}

// publishEvent is fire and forget: transition events feed notifications, and
// a publish failure must never affect ledger correctness.
func (s *ReservationService) publishEvent(ctx context.Context, eventType, subject string, data interface{}) {
	cloudEvent, err := events.NewCloudEvent("service-reservation", eventType, subject, data)
	if err != nil {
		s.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := s.producer.PublishEvent(ctx, events.TopicReservationEvents, cloudEvent); err != nil {
		s.collector.EventsPublishErrs.Inc()
		s.logger.Error("failed to publish event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}
	s.collector.EventsPublished.Inc()
}
