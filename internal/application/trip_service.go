package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shuttlehq/service-reservation/internal/domain"
	"github.com/shuttlehq/service-reservation/internal/domain/trip"
	"github.com/shuttlehq/service-reservation/internal/events"
	"github.com/shuttlehq/service-reservation/internal/metrics"
)

// CreateLocationRequest holds the data needed to register a stop.
type CreateLocationRequest struct {
	Name      string  `json:"name" binding:"required"`
	Latitude  float64 `json:"latitude" binding:"required"`
	Longitude float64 `json:"longitude" binding:"required"`
}

// SegmentInput is one leg of a template in authoring order. Order indices are
// assigned from the list position, so callers submit the chain as travelled.
type SegmentInput struct {
	StartLocationID uuid.UUID `json:"start_location_id" binding:"required"`
	EndLocationID   uuid.UUID `json:"end_location_id" binding:"required"`
	ChargeCents     int64     `json:"charge_cents" binding:"min=0"`
}

// CreateTemplateRequest holds the data needed to create a trip template.
type CreateTemplateRequest struct {
	Name     string         `json:"name" binding:"required"`
	Segments []SegmentInput `json:"segments" binding:"required,min=1,dive"`
}

// ScheduleOccurrenceRequest holds the data needed to schedule a trip run.
type ScheduleOccurrenceRequest struct {
	TemplateID      uuid.UUID `json:"template_id" binding:"required"`
	DepartsAt       time.Time `json:"departs_at" binding:"required"`
	VehicleCapacity int       `json:"vehicle_capacity" binding:"required,min=1"`
}

// CheckAvailabilityRequest is the read-only validation query: can seatCount
// seats travel between the two stops right now.
type CheckAvailabilityRequest struct {
	FromLocationID uuid.UUID `json:"from_location_id" binding:"required"`
	ToLocationID   uuid.UUID `json:"to_location_id" binding:"required"`
	SeatCount      int       `json:"seat_count" binding:"required,min=1"`
}

// TemplateDTO is the response representation of a trip template.
type TemplateDTO struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Segments  []trip.Segment `json:"segments"`
	CreatedAt time.Time      `json:"created_at"`
}

// OccurrenceDTO is the response representation of a trip occurrence.
type OccurrenceDTO struct {
	ID              uuid.UUID `json:"id"`
	TemplateID      uuid.UUID `json:"template_id"`
	DepartsAt       time.Time `json:"departs_at"`
	VehicleCapacity int       `json:"vehicle_capacity"`
	Status          string    `json:"status"`
	CancelNote      string    `json:"cancel_note,omitempty"`
	Version         int64     `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SegmentAvailabilityDTO is one row of the availability board: a segment
// instance with its live counters resolved against the vehicle capacity.
type SegmentAvailabilityDTO struct {
	OrderIndex    int        `json:"order_index"`
	StartName     string     `json:"start_name"`
	EndName       string     `json:"end_name"`
	SeatsHeld     int        `json:"seats_held"`
	SeatsOccupied int        `json:"seats_occupied"`
	Available     int        `json:"available"`
	Completed     bool       `json:"completed"`
	ETA           *time.Time `json:"eta,omitempty"`
}

// AvailabilityDTO is the full availability board of one trip occurrence.
type AvailabilityDTO struct {
	TripOccurrenceID uuid.UUID                `json:"trip_occurrence_id"`
	Status           string                   `json:"status"`
	VehicleCapacity  int                      `json:"vehicle_capacity"`
	Segments         []SegmentAvailabilityDTO `json:"segments"`
}

// AvailabilityCheckDTO is the answer to a read-only availability query.
type AvailabilityCheckDTO struct {
	Available bool   `json:"available"`
	FromIndex int    `json:"from_index"`
	ToIndex   int    `json:"to_index"`
	FareCents int64  `json:"fare_cents"`
	Reason    string `json:"reason,omitempty"`
}

// TripService manages stop reference data, trip templates and the scheduling
// lifecycle of trip occurrences. Counter writes stay with the reservation
// coordinator; this service only reads ledger snapshots.
type TripService struct {
	locations    trip.LocationRepository
	templates    trip.TemplateRepository
	occurrences  trip.OccurrenceRepository
	ledger       trip.Ledger
	reservations *ReservationService
	collector    *metrics.Collector
	logger       *zap.Logger
}

// NewTripService creates a new TripService.
func NewTripService(
	locations trip.LocationRepository,
	templates trip.TemplateRepository,
	occurrences trip.OccurrenceRepository,
	ledger trip.Ledger,
	reservations *ReservationService,
	collector *metrics.Collector,
	logger *zap.Logger,
) *TripService {
	return &TripService{
		locations:    locations,
		templates:    templates,
		occurrences:  occurrences,
		ledger:       ledger,
		reservations: reservations,
		collector:    collector,
		logger:       logger,
	}
}

// CreateLocation registers a new stop.
func (s *TripService) CreateLocation(ctx context.Context, req CreateLocationRequest) (*trip.Location, error) {
	loc, err := trip.NewLocation(req.Name, req.Latitude, req.Longitude)
	if err != nil {
		return nil, err
	}
	if err := s.locations.Save(ctx, loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// ListLocations returns all registered stops.
func (s *TripService) ListLocations(ctx context.Context) ([]trip.Location, error) {
	return s.locations.List(ctx)
}

// CreateTemplate builds and persists a trip template from an ordered list of
// legs. Each leg's stops must exist; the chain is validated as a single linear
// path before anything is written.
func (s *TripService) CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*TemplateDTO, error) {
	segments := make([]trip.Segment, len(req.Segments))
	for i, in := range req.Segments {
		start, err := s.locations.FindByID(ctx, in.StartLocationID)
		if err != nil {
			return nil, err
		}
		end, err := s.locations.FindByID(ctx, in.EndLocationID)
		if err != nil {
			return nil, err
		}
		segments[i] = trip.Segment{
			ID:              uuid.New(),
			StartLocationID: start.ID,
			EndLocationID:   end.ID,
			StartName:       start.Name,
			EndName:         end.Name,
			OrderIndex:      i,
			ChargeCents:     in.ChargeCents,
		}
	}

	template, err := trip.NewTemplate(req.Name, segments)
	if err != nil {
		return nil, err
	}
	if err := s.templates.Save(ctx, template); err != nil {
		return nil, err
	}

	result := toTemplateDTO(template)
	return &result, nil
}

// GetTemplate retrieves a trip template with its segment chain.
func (s *TripService) GetTemplate(ctx context.Context, templateID uuid.UUID) (*TemplateDTO, error) {
	template, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	result := toTemplateDTO(template)
	return &result, nil
}

// ListTemplates returns paginated trip templates.
func (s *TripService) ListTemplates(ctx context.Context, page, limit int) (*domain.PaginatedResult[TemplateDTO], error) {
	templates, total, err := s.templates.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]TemplateDTO, len(templates))
	for i, t := range templates {
		dtos[i] = toTemplateDTO(t)
	}
	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// ScheduleOccurrence creates a trip occurrence and materializes one zeroed
// segment instance per template segment, all in a single write.
func (s *TripService) ScheduleOccurrence(ctx context.Context, req ScheduleOccurrenceRequest) (*OccurrenceDTO, error) {
	template, err := s.templates.FindByID(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	occ, err := trip.NewOccurrence(template.ID(), req.DepartsAt, req.VehicleCapacity)
	if err != nil {
		return nil, err
	}

	instances := occ.MaterializeInstances(template.Topology())
	if err := s.occurrences.Save(ctx, occ, instances); err != nil {
		return nil, fmt.Errorf("failed to save trip occurrence: %w", err)
	}

	s.collector.OccurrencesScheduled.Inc()
	s.logger.Info("trip occurrence scheduled",
		zap.String("trip_occurrence_id", occ.ID().String()),
		zap.String("template_id", template.ID().String()),
		zap.Int("segments", len(instances)),
	)

	result := toOccurrenceDTO(occ)
	return &result, nil
}

// GetOccurrence retrieves a trip occurrence by ID.
func (s *TripService) GetOccurrence(ctx context.Context, occurrenceID uuid.UUID) (*OccurrenceDTO, error) {
	occ, err := s.occurrences.FindByID(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	result := toOccurrenceDTO(occ)
	return &result, nil
}

// ListOccurrences returns paginated occurrences of a template.
func (s *TripService) ListOccurrences(ctx context.Context, templateID uuid.UUID, page, limit int) (*domain.PaginatedResult[OccurrenceDTO], error) {
	occurrences, total, err := s.occurrences.ListByTemplate(ctx, templateID, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]OccurrenceDTO, len(occurrences))
	for i, occ := range occurrences {
		dtos[i] = toOccurrenceDTO(occ)
	}
	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// StartOccurrence marks a scheduled occurrence as departed.
func (s *TripService) StartOccurrence(ctx context.Context, occurrenceID uuid.UUID) (*OccurrenceDTO, error) {
	return s.transition(ctx, occurrenceID, func(occ *trip.Occurrence) error {
		return occ.Start()
	})
}

// CompleteOccurrence marks an in-progress occurrence as finished.
func (s *TripService) CompleteOccurrence(ctx context.Context, occurrenceID uuid.UUID) (*OccurrenceDTO, error) {
	return s.transition(ctx, occurrenceID, func(occ *trip.Occurrence) error {
		return occ.Complete()
	})
}

// CancelOccurrence withdraws a trip run and releases every active reservation
// riding on it. Cancelling an occurrence that is already cancelled re-runs
// the release sweep, so a retry after a partial sweep still drains the
// remaining reservations; a failed sweep surfaces as the call's error.
func (s *TripService) CancelOccurrence(ctx context.Context, occurrenceID, actorID uuid.UUID, reason string) (*OccurrenceDTO, error) {
	occ, err := s.occurrences.FindByID(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}

	if occ.Status() != trip.StatusCancelled {
		if err := occ.Cancel(reason); err != nil {
			return nil, err
		}
		occ.IncrementVersion()
		if err := s.occurrences.Update(ctx, occ); err != nil {
			return nil, err
		}
		s.collector.OccurrencesCancelled.Inc()
	}

	if reason == "" {
		reason = "trip cancelled"
	}
	if err := s.reservations.ReleaseAllForOccurrence(ctx, occurrenceID, actorID, reason); err != nil {
		return nil, err
	}

	result := toOccurrenceDTO(occ)
	return &result, nil
}

func (s *TripService) transition(ctx context.Context, occurrenceID uuid.UUID, apply func(*trip.Occurrence) error) (*OccurrenceDTO, error) {
	occ, err := s.occurrences.FindByID(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	if err := apply(occ); err != nil {
		return nil, err
	}

	occ.IncrementVersion()
	if err := s.occurrences.Update(ctx, occ); err != nil {
		return nil, err
	}

	result := toOccurrenceDTO(occ)
	return &result, nil
}

// GetAvailability returns the live availability board of an occurrence: every
// segment instance with its counters, free seats and progress state.
func (s *TripService) GetAvailability(ctx context.Context, occurrenceID uuid.UUID) (*AvailabilityDTO, error) {
	occ, err := s.occurrences.FindByID(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}
	template, err := s.templates.FindByID(ctx, occ.TemplateID())
	if err != nil {
		return nil, err
	}
	instances, err := s.ledger.Snapshot(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}

	segments := template.Topology().Segments()
	rows := make([]SegmentAvailabilityDTO, len(instances))
	for i, inst := range instances {
		row := SegmentAvailabilityDTO{
			OrderIndex:    inst.OrderIndex,
			SeatsHeld:     inst.SeatsHeld,
			SeatsOccupied: inst.SeatsOccupied,
			Available:     inst.Available(occ.VehicleCapacity()),
			Completed:     inst.Completed,
			ETA:           inst.ETA,
		}
		if inst.OrderIndex < len(segments) {
			row.StartName = segments[inst.OrderIndex].StartName
			row.EndName = segments[inst.OrderIndex].EndName
		}
		rows[i] = row
	}

	return &AvailabilityDTO{
		TripOccurrenceID: occurrenceID,
		Status:           occ.Status().String(),
		VehicleCapacity:  occ.VehicleCapacity(),
		Segments:         rows,
	}, nil
}

// CheckAvailability answers whether a request could be satisfied right now
// without touching any counter. The answer is advisory: only the atomic
// reserve path decides for real.
func (s *TripService) CheckAvailability(ctx context.Context, occurrenceID uuid.UUID, req CheckAvailabilityRequest) (*AvailabilityCheckDTO, error) {
	occ, err := s.occurrences.FindByID(ctx, occurrenceID)
	if err != nil {
		return nil, err
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

	instances, err := s.ledger.Snapshot(ctx, occurrenceID)
	if err != nil {
		return nil, err
	}

	result := &AvailabilityCheckDTO{
		FromIndex: from,
		ToIndex:   to,
		FareCents: topology.FareCents(from, to, req.SeatCount),
	}
	if err := trip.CheckAvailability(occ.VehicleCapacity(), instances, topology.Segments(), from, to, req.SeatCount); err != nil {
		if domain.IsCode(err, domain.CodeCapacityExceeded) {
			result.Available = false
			result.Reason = err.Error()
			return result, nil
		}
		return nil, err
	}

	result.Available = true
	return result, nil
}

// --- Scheduling event handlers ---

// HandleTripScheduled creates an occurrence from an upstream scheduler event.
func (s *TripService) HandleTripScheduled(ctx context.Context, evt events.TripScheduledEvent) error {
	_, err := s.ScheduleOccurrence(ctx, ScheduleOccurrenceRequest{
		TemplateID:      evt.TemplateID,
		DepartsAt:       evt.DepartsAt,
		VehicleCapacity: evt.VehicleCapacity,
	})
	if err != nil {
		// Bad reference data will never succeed on redelivery; drop it.
		if domain.IsCode(err, domain.CodeNotFound) || domain.IsCode(err, domain.CodeValidation) {
			s.logger.Warn("dropping unprocessable trip.scheduled event",
				zap.String("template_id", evt.TemplateID.String()),
				zap.Error(err),
			)
			return nil
		}
		return err
	}
	return nil
}

// HandleTripCancelled withdraws an occurrence on an upstream scheduler event.
func (s *TripService) HandleTripCancelled(ctx context.Context, evt events.TripCancelledEvent) error {
	reason := evt.Reason
	if reason == "" {
		reason = "trip cancelled by scheduler"
	}
	_, err := s.CancelOccurrence(ctx, evt.TripOccurrenceID, uuid.Nil, reason)
	if err != nil {
		// A completed or unknown occurrence will never cancel; drop it. An
		// already-cancelled one re-runs the release sweep instead of erroring,
		// so redeliveries after a partial sweep make progress.
		if domain.IsCode(err, domain.CodeNotFound) || domain.IsCode(err, domain.CodeInvalidTransition) {
			s.logger.Warn("dropping unprocessable trip.cancelled event",
				zap.String("trip_occurrence_id", evt.TripOccurrenceID.String()),
				zap.Error(err),
			)
			return nil
		}
		return err
	}
	return nil
}

// --- Helpers ---

func toTemplateDTO(t *trip.Template) TemplateDTO {
	return TemplateDTO{
		ID:        t.ID(),
		Name:      t.Name(),
		Segments:  t.Topology().Segments(),
		CreatedAt: t.CreatedAt(),
	}
}

func toOccurrenceDTO(occ *trip.Occurrence) OccurrenceDTO {
	return OccurrenceDTO{
		ID:              occ.ID(),
		TemplateID:      occ.TemplateID(),
		DepartsAt:       occ.DepartsAt(),
		VehicleCapacity: occ.VehicleCapacity(),
		Status:          occ.Status().String(),
		CancelNote:      occ.CancelNote(),
		Version:         occ.Version(),
		CreatedAt:       occ.CreatedAt(),
		UpdatedAt:       occ.UpdatedAt(),
	}
}
