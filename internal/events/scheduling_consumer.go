package events

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// TripScheduler is the slice of the trip application service the scheduling
// consumer drives.
type TripScheduler interface {
	HandleTripScheduled(ctx context.Context, evt TripScheduledEvent) error
	HandleTripCancelled(ctx context.Context, evt TripCancelledEvent) error
}

// SchedulingEventConsumer listens to the external trip scheduler's events and
// materializes or cancels trip occurrences accordingly.
type SchedulingEventConsumer struct {
	consumer *Consumer
	service  TripScheduler
	logger   *zap.Logger
}

// NewSchedulingEventConsumer creates a SchedulingEventConsumer.
func NewSchedulingEventConsumer(
	brokers []string,
	groupID string,
	service TripScheduler,
	logger *zap.Logger,
) *SchedulingEventConsumer {
	consumer := NewConsumer(brokers, groupID, TopicTripEvents, logger)
	return &SchedulingEventConsumer{
		consumer: consumer,
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming scheduling events. This blocks until the context is cancelled.
func (c *SchedulingEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *SchedulingEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *SchedulingEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from trip topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case TripScheduled:
		return c.handleScheduled(ctx, cloudEvent)
	case TripCancelled:
		return c.handleCancelled(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled trip event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *SchedulingEventConsumer) handleScheduled(ctx context.Context, cloudEvent CloudEvent) error {
	var evt TripScheduledEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse TripScheduledEvent data", zap.Error(err))
		return nil // Don't retry malformed data
	}

	c.logger.Info("processing trip scheduled event",
		zap.String("template_id", evt.TemplateID.String()),
		zap.Time("departs_at", evt.DepartsAt),
		zap.Int("vehicle_capacity", evt.VehicleCapacity),
	)

	if err := c.service.HandleTripScheduled(ctx, evt); err != nil {
		c.logger.Error("failed to materialize trip occurrence",
			zap.String("template_id", evt.TemplateID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (c *SchedulingEventConsumer) handleCancelled(ctx context.Context, cloudEvent CloudEvent) error {
	var evt TripCancelledEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse TripCancelledEvent data", zap.Error(err))
		return nil // Don't retry malformed data
	}

	c.logger.Info("processing trip cancelled event",
		zap.String("trip_occurrence_id", evt.TripOccurrenceID.String()),
	)

	if err := c.service.HandleTripCancelled(ctx, evt); err != nil {
		c.logger.Error("failed to cancel trip occurrence",
			zap.String("trip_occurrence_id", evt.TripOccurrenceID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
