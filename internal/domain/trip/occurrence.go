package trip

import (
	"time"

	"github.com/google/uuid"

	"github.com/shuttlehq/service-reservation/internal/domain"
)

// Occurrence is the aggregate root for one scheduled, dated run of a trip
// template, bound to the capacity of the vehicle assigned to it.
type Occurrence struct {
	id              uuid.UUID
	templateID      uuid.UUID
	departsAt       time.Time
	vehicleCapacity int
	status          OccurrenceStatus

	cancelNote string

	version   int64
	createdAt time.Time
	updatedAt time.Time
}

// NewOccurrence schedules a new run of a template with the given vehicle capacity.
func NewOccurrence(templateID uuid.UUID, departsAt time.Time, vehicleCapacity int) (*Occurrence, error) {
	if templateID == uuid.Nil {
		return nil, domain.NewValidationError("template ID is required")
	}
	if departsAt.IsZero() {
		return nil, domain.NewValidationError("departure time is required")
	}
	if vehicleCapacity <= 0 {
		return nil, domain.NewValidationError("vehicle capacity must be positive")
	}

	now := time.Now().UTC()
	return &Occurrence{
		id:              uuid.New(),
		templateID:      templateID,
		departsAt:       departsAt.UTC(),
		vehicleCapacity: vehicleCapacity,
		status:          StatusScheduled,
		version:         1,
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// ReconstructOccurrence rebuilds an Occurrence from persistence data (no validation).
func ReconstructOccurrence(
	id uuid.UUID,
	templateID uuid.UUID,
	departsAt time.Time,
	vehicleCapacity int,
	status OccurrenceStatus,
	cancelNote string,
	version int64,
	createdAt time.Time,
	updatedAt time.Time,
) *Occurrence {
	return &Occurrence{
		id:              id,
		templateID:      templateID,
		departsAt:       departsAt,
		vehicleCapacity: vehicleCapacity,
		status:          status,
		cancelNote:      cancelNote,
		version:         version,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// ID returns the occurrence's unique identifier.
func (o *Occurrence) ID() uuid.UUID { return o.id }

// TemplateID returns the identifier of the template this run was scheduled from.
func (o *Occurrence) TemplateID() uuid.UUID { return o.templateID }

// DepartsAt returns the scheduled departure time.
func (o *Occurrence) DepartsAt() time.Time { return o.departsAt }

// VehicleCapacity returns the total seats of the assigned vehicle.
func (o *Occurrence) VehicleCapacity() int { return o.vehicleCapacity }

// Status returns the current occurrence status.
func (o *Occurrence) Status() OccurrenceStatus { return o.status }

// CancelNote returns the cancellation reason, if any.
func (o *Occurrence) CancelNote() string { return o.cancelNote }

// Version returns the entity version for optimistic locking.
func (o *Occurrence) Version() int64 { return o.version }

// CreatedAt returns the creation timestamp.
func (o *Occurrence) CreatedAt() time.Time { return o.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (o *Occurrence) UpdatedAt() time.Time { return o.updatedAt }

// MaterializeInstances creates one zero-counter segment instance per template
// segment. Called exactly once, when the occurrence is scheduled.
func (o *Occurrence) MaterializeInstances(topology Topology) []SegmentInstance {
	instances := make([]SegmentInstance, topology.Len())
	for i, seg := range topology.Segments() {
		instances[i] = SegmentInstance{
			ID:               uuid.New(),
			TripOccurrenceID: o.id,
			OrderIndex:       seg.OrderIndex,
		}
	}
	return instances
}

// Start transitions the occurrence from scheduled to in_progress.
func (o *Occurrence) Start() error {
	if !o.status.CanTransitionTo(StatusInProgress) {
		return domain.NewInvalidTransitionError(string(o.status), string(StatusInProgress))
	}
	o.status = StatusInProgress
	o.updatedAt = time.Now().UTC()
	return nil
}

// Complete transitions the occurrence from in_progress to completed.
func (o *Occurrence) Complete() error {
	if !o.status.CanTransitionTo(StatusCompleted) {
		return domain.NewInvalidTransitionError(string(o.status), string(StatusCompleted))
	}
	o.status = StatusCompleted
	o.updatedAt = time.Now().UTC()
	return nil
}

// Cancel transitions the occurrence to cancelled if it is not in a terminal state.
func (o *Occurrence) Cancel(reason string) error {
	if !o.status.CanTransitionTo(StatusCancelled) {
		return domain.NewInvalidTransitionError(string(o.status), string(StatusCancelled))
	}
	o.status = StatusCancelled
	o.cancelNote = reason
	o.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (o *Occurrence) IncrementVersion() {
	o.version++
	o.updatedAt = time.Now().UTC()
}
