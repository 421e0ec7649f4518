package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topic and event type constants shared with the surrounding services.
const (
	TopicReservationEvents = "reservation.events"
	TopicTripEvents        = "trip.events"

	ReservationHeld      = "reservation.held"
	ReservationConfirmed = "reservation.confirmed"
	ReservationReleased  = "reservation.released"

	TripScheduled = "trip.scheduled"
	TripCancelled = "trip.cancelled"
)

// CloudEvent is the envelope every published message is wrapped in.
type CloudEvent struct {
	ID      string          `json:"id"`
	Source  string          `json:"source"`
	Type    string          `json:"type"`
	Subject string          `json:"subject,omitempty"`
	Time    time.Time       `json:"time"`
	Data    json.RawMessage `json:"data"`
}

// NewCloudEvent wraps a payload in a CloudEvent envelope. The subject becomes
// the Kafka message key, so events about one aggregate stay ordered.
func NewCloudEvent(source, eventType, subject string, data interface{}) (CloudEvent, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return CloudEvent{}, fmt.Errorf("failed to marshal event data: %w", err)
	}
	return CloudEvent{
		ID:      uuid.New().String(),
		Source:  source,
		Type:    eventType,
		Subject: subject,
		Time:    time.Now().UTC(),
		Data:    raw,
	}, nil
}

// ParseCloudEvent decodes a CloudEvent from raw bytes.
func ParseCloudEvent(b []byte) (CloudEvent, error) {
	var ce CloudEvent
	if err := json.Unmarshal(b, &ce); err != nil {
		return CloudEvent{}, fmt.Errorf("failed to parse cloud event: %w", err)
	}
	return ce, nil
}

// ParseData decodes the event payload into v.
func (e CloudEvent) ParseData(v interface{}) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("failed to parse event data: %w", err)
	}
	return nil
}

// ReservationHeldEvent is published when seats are held for a new reservation.
type ReservationHeldEvent struct {
	ReservationID     uuid.UUID `json:"reservation_id"`
	ReservationNumber string    `json:"reservation_number"`
	TripOccurrenceID  uuid.UUID `json:"trip_occurrence_id"`
	GuestID           uuid.UUID `json:"guest_id"`
	SeatCount         int       `json:"seat_count"`
	FromIndex         int       `json:"from_index"`
	ToIndex           int       `json:"to_index"`
	FareCents         int64     `json:"fare_cents"`
	Currency          string    `json:"currency"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// ReservationConfirmedEvent is published when a hold becomes occupancy.
type ReservationConfirmedEvent struct {
	ReservationID     uuid.UUID `json:"reservation_id"`
	ReservationNumber string    `json:"reservation_number"`
	TripOccurrenceID  uuid.UUID `json:"trip_occurrence_id"`
	GuestID           uuid.UUID `json:"guest_id"`
	SeatCount         int       `json:"seat_count"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// ReservationReleasedEvent is published when a reservation reaches its
// terminal state, whether cancelled or rejected.
type ReservationReleasedEvent struct {
	ReservationID     uuid.UUID `json:"reservation_id"`
	ReservationNumber string    `json:"reservation_number"`
	TripOccurrenceID  uuid.UUID `json:"trip_occurrence_id"`
	GuestID           uuid.UUID `json:"guest_id"`
	SeatCount         int       `json:"seat_count"`
	ReleasedFrom      string    `json:"released_from"`
	ReleasedBy        uuid.UUID `json:"released_by"`
	Reason            string    `json:"reason"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// TripScheduledEvent is consumed from the trip scheduling service when a new
// run is put on the timetable.
type TripScheduledEvent struct {
	TemplateID      uuid.UUID `json:"template_id"`
	DepartsAt       time.Time `json:"departs_at"`
	VehicleCapacity int       `json:"vehicle_capacity"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// TripCancelledEvent is consumed when the scheduler withdraws a run.
type TripCancelledEvent struct {
	TripOccurrenceID uuid.UUID `json:"trip_occurrence_id"`
	Reason           string    `json:"reason"`
	OccurredAt       time.Time `json:"occurred_at"`
}
